package main

import (
	"log"
	"net/http"

	httphandlers "banksync/internal/interfaces/http"
	"banksync/internal/shared/config"
	"banksync/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Connections
	mux.HandleFunc("/api/connections", deps.ConnectionHandler.HandleConnections)
	mux.HandleFunc("/api/connections/{id}", deps.ConnectionHandler.HandleConnectionByID)
	mux.HandleFunc("/api/connections/{id}/sync", deps.ConnectionHandler.HandleSyncConnection)
	mux.HandleFunc("/api/connections/{id}/logs", deps.ConnectionHandler.HandleConnectionLogs)
	mux.HandleFunc("/api/sync/all", deps.ConnectionHandler.HandleSyncAll)

	// Category rules
	mux.HandleFunc("/api/category-rules", deps.CategoryRuleHandler.HandleCategoryRules)
	mux.HandleFunc("/api/category-rules/{id}", deps.CategoryRuleHandler.HandleCategoryRuleByID)

	// Apply global middleware
	var handler http.Handler = mux
	handler = middleware.CORS(cfg.Server.AllowedHosts)(handler)
	handler = middleware.Tracing(handler)
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}
	handler = middleware.Logging(handler)

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(handler)
		log.Println("TLS security middleware enabled (HSTS)")
	}

	return handler
}
