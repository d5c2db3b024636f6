package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"banksync/internal/scheduler"
	"banksync/internal/shared/config"
	"banksync/internal/shared/middleware"
)

// StartServers starts the API server and, when TLS redirect is configured, a
// plain HTTP server that bounces everything to HTTPS. The redirect server is
// nil when not enabled.
func StartServers(handler http.Handler, cfg *config.Config) (*http.Server, *http.Server) {
	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var redirectSrv *http.Server
	if cfg.TLS.Enabled && cfg.TLS.RedirectHTTP {
		redirectSrv = newRedirectServer(cfg.Server.AllowedHosts)
		go func() {
			log.Println("HTTP redirect server starting on :80")
			if err := redirectSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("HTTP redirect server error: %v", err)
			}
		}()
	}

	go func() {
		if cfg.TLS.Enabled {
			log.Printf("HTTPS server starting on %s", srv.Addr)
			if err := srv.ListenAndServeTLS(cfg.TLS.CertPath, cfg.TLS.KeyPath); err != nil && err != http.ErrServerClosed {
				log.Fatalf("HTTPS server error: %v", err)
			}
			return
		}

		log.Printf("HTTP server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	return srv, redirectSrv
}

// GracefulShutdown stops the scheduler first so no sync pass starts mid
// shutdown, then drains the HTTP servers.
func GracefulShutdown(srv, redirectSrv *http.Server, sched *scheduler.Scheduler, timeout time.Duration) {
	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if sched != nil {
		sched.Shutdown(timeout)
	}

	stopServer(ctx, "redirect", redirectSrv)
	stopServer(ctx, "main", srv)

	log.Println("Server stopped")
}

func stopServer(ctx context.Context, name string, srv *http.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down %s server: %v", name, err)
	}
}

// newRedirectServer answers every HTTP request with a redirect to the HTTPS
// equivalent, refusing hosts outside the allow list.
func newRedirectServer(allowedHosts []string) *http.Server {
	redirect := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Header.Get("X-Forwarded-Host")
		if host == "" {
			host = r.Host
		}

		if !middleware.IsHostAllowed(host, allowedHosts) {
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		}

		if idx := strings.Index(host, ":"); idx != -1 {
			host = host[:idx]
		}

		http.Redirect(w, r, "https://"+host+r.RequestURI, http.StatusMovedPermanently)
	})

	return &http.Server{
		Addr:         ":80",
		Handler:      redirect,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
