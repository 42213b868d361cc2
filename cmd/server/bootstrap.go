package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sitebridgehq/sitebridge/internal/api"
	"github.com/sitebridgehq/sitebridge/internal/app"
	"github.com/sitebridgehq/sitebridge/internal/app/maintenance"
	"github.com/sitebridgehq/sitebridge/internal/assistant"
	iauth "github.com/sitebridgehq/sitebridge/internal/auth"
	"github.com/sitebridgehq/sitebridge/internal/database"
	"github.com/sitebridgehq/sitebridge/internal/erp"
	"github.com/sitebridgehq/sitebridge/internal/middleware"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB      *gorm.DB
	Broker  *iauth.SessionBroker
	Cleaner *maintenance.Cleaner
	Router  *gin.Engine
}

// bootstrapRuntime initialises the database, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	encryptionKey, err := resolveEncryptionKey(ctx, stack.DB, cfg)
	if err != nil {
		return nil, err
	}

	directory, err := services.NewDirectoryService(stack.DB, services.DirectoryConfig{
		FeatureDefaults: cfg.Features.Defaults,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise directory service: %w", err)
	}

	rules, err := cfg.Remote.ClassifierRules()
	if err != nil {
		return nil, fmt.Errorf("parse failure classifier: %w", err)
	}

	metering, err := services.NewMeteringService(stack.DB, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise metering service: %w", err)
	}

	authenticator := &erp.Authenticator{
		ClientTag: cfg.Remote.ClientTag,
		Timeout:   cfg.Remote.Timeout,
	}

	brokerCfg := cfg.Auth.BrokerConfig(encryptionKey, rules)
	brokerCfg.Metering = metering
	stack.Broker, err = iauth.NewSessionBroker(stack.DB, directory, authenticator, brokerCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise session broker: %w", err)
	}

	organizations, err := services.NewOrganizationService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise organization service: %w", err)
	}

	tickets, err := services.NewTicketService(stack.DB, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise ticket service: %w", err)
	}

	completer := assistant.NewChatCompleter(assistant.Config{
		Model:      cfg.Assistant.Model,
		MaxHistory: cfg.Assistant.MaxHistory,
	})
	helpdesk, err := services.NewHelpdeskService(stack.DB, completer, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise helpdesk service: %w", err)
	}

	backups, err := services.NewBackupService(stack.DB, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise backup service: %w", err)
	}

	stack.Cleaner = maintenance.NewCleaner(stack.Broker, backups)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:            stack.DB,
		Config:        cfg,
		Broker:        stack.Broker,
		Directory:     directory,
		Organizations: organizations,
		Metering:      metering,
		Tickets:       tickets,
		Helpdesk:      helpdesk,
		Backups:       backups,
		RateStore:     middleware.NewMemoryRateStore(),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

// resolveEncryptionKey loads the delegated-credential encryption key from
// configuration, falling back to a persisted (or newly generated) key in the
// system settings table.
func resolveEncryptionKey(ctx context.Context, db *gorm.DB, cfg *app.Config) ([]byte, error) {
	if configured := strings.TrimSpace(cfg.Auth.EncryptionKey); configured != "" {
		key, err := app.DecodeKey(configured)
		if err != nil {
			return nil, fmt.Errorf("decode auth.encryption_key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("auth.encryption_key must decode to 32 bytes (current: %d)", len(key))
		}
		if err := database.EnsureEncryptionKey(ctx, db, configured); err != nil {
			return nil, err
		}
		return key, nil
	}

	stored, err := database.GetSystemSetting(ctx, db, database.EncryptionKeySetting)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(stored) != "" {
		key, err := app.DecodeKey(stored)
		if err != nil {
			return nil, fmt.Errorf("decode stored encryption key: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("stored encryption key must decode to 32 bytes (current: %d)", len(key))
		}
		return key, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate encryption key: %w", err)
	}
	if err := database.EnsureEncryptionKey(ctx, db, hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.StoreConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
