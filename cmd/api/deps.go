package main

import (
	"log"

	syncdomain "banksync/internal/domain/sync"
	"banksync/internal/infrastructure/crypto"
	"banksync/internal/infrastructure/firefly"
	"banksync/internal/infrastructure/postgres"
	"banksync/internal/infrastructure/simplefin"
	httphandlers "banksync/internal/interfaces/http"
	"banksync/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	ConnectionHandler   *httphandlers.ConnectionHandler
	CategoryRuleHandler *httphandlers.CategoryRuleHandler

	// Sync service (for scheduler)
	SyncService *syncdomain.Service
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Initialize encryptor
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	connectionRepo := postgres.NewConnectionRepository(db)
	syncLogRepo := postgres.NewSyncLogRepository(db)
	categoryRuleRepo := postgres.NewCategoryRuleRepository(db)

	// Initialize upstream clients
	bridgeClient := simplefin.NewClient(cfg.SimpleFIN.Timeout)
	ledgerClient := firefly.NewClient(cfg.Firefly.BaseURL, cfg.Firefly.Token, cfg.Firefly.Timeout)

	// Initialize sync service
	syncService := syncdomain.NewService(
		connectionRepo, syncLogRepo, bridgeClient, ledgerClient, encryptor,
		cfg.Sync.LookbackDays,
	)

	// Initialize handlers
	connectionHandler := httphandlers.NewConnectionHandler(
		connectionRepo, syncLogRepo, bridgeClient, encryptor, syncService,
		cfg.Sync.ManualSyncsPerDay,
	)
	categoryRuleHandler := httphandlers.NewCategoryRuleHandler(categoryRuleRepo)

	return &Dependencies{
		DB:                  db,
		ConnectionHandler:   connectionHandler,
		CategoryRuleHandler: categoryRuleHandler,
		SyncService:         syncService,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.ConnectionHandler != nil {
		d.ConnectionHandler.Stop()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
