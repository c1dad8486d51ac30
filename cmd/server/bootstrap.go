package main

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/secure-ai-studio/backend/internal/config"
	"github.com/secure-ai-studio/backend/internal/handlers"
	"github.com/secure-ai-studio/backend/internal/models"
	"github.com/secure-ai-studio/backend/internal/services"
	"github.com/secure-ai-studio/backend/internal/utils"
	"github.com/secure-ai-studio/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg       *config.Config
	ledger    *services.BudgetLedger
	registry  *services.ProviderRegistry
	transfer  *services.SecureTransferManager
	tracker   *services.JobTracker
	usage     *services.UsageService
	scheduler *cron.Cron

	generateHandler *handlers.GenerateHandler
	budgetHandler   *handlers.BudgetHandler
	storageHandler  *handlers.StorageHandler
	usageHandler    *handlers.UsageHandler
	providerHandler *handlers.ProviderHandler
	healthHandler   *handlers.HealthHandler
	metricsHandler  *handlers.MetricsHandler
}

// bootstrap initializes all application dependencies: database, ledger,
// provider clients, job tracker and schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetSigningSecret(cfg.Storage.SigningSecret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	// Budget ledger restores committed spend and open reservations from the
	// database so a restart never loses money already charged.
	ledger, err := services.NewBudgetLedger(db, &cfg.Budget, cfg.Server.Production())
	if err != nil {
		logger.Fatalf("Failed to restore budget ledger: %v", err)
	}

	registry := services.NewProviderRegistry(services.DefaultCatalog())
	clients := buildProviderClients(cfg)

	transfer := services.NewSecureTransferManager(db, cfg.Storage)
	tracker := services.NewJobTracker(db, cfg.Polling, ledger, transfer, clients)
	usage := services.NewUsageService(db)

	orchestrator := services.NewOrchestrator(db, cfg, services.NewConsentGate(services.DefaultConsentGateConfig()),
		services.NewPromptSanitizer(services.DefaultSanitizerConfig()),
		registry, ledger, tracker, clients, usage)

	// Retention sweep and terminal-job purge run on a schedule. The sweep is
	// the backstop for objects nobody resolves after expiry.
	scheduler := cron.New()
	scheduler.AddFunc("@every 1m", func() {
		if n := transfer.Sweep(); n > 0 {
			logger.Infof("[Retention] Swept %d expired object(s)", n)
		}
	})
	grace := time.Duration(cfg.Storage.JobGracePeriodHr) * time.Hour
	scheduler.AddFunc("@every 1h", func() {
		cutoff := time.Now().Add(-grace)
		if n := tracker.PurgeTerminalBefore(cutoff); n > 0 {
			logger.Infof("[Tracker] Purged %d terminal job(s)", n)
		}
	})
	scheduler.Start()

	return &appServices{
		cfg:       cfg,
		ledger:    ledger,
		registry:  registry,
		transfer:  transfer,
		tracker:   tracker,
		usage:     usage,
		scheduler: scheduler,

		generateHandler: handlers.NewGenerateHandler(orchestrator, tracker),
		budgetHandler:   handlers.NewBudgetHandler(ledger),
		storageHandler:  handlers.NewStorageHandler(transfer),
		usageHandler:    handlers.NewUsageHandler(usage),
		providerHandler: handlers.NewProviderHandler(registry),
		healthHandler:   handlers.NewHealthHandler(db, ledger, tracker),
		metricsHandler:  handlers.NewMetricsHandler(db, ledger, tracker),
	}
}

// buildProviderClients wires one client per catalog provider. Providers
// without credentials fall back to the deterministic simulator so the
// gateway stays usable in development.
func buildProviderClients(cfg *config.Config) map[string]services.ProviderClient {
	clients := make(map[string]services.ProviderClient)

	if cfg.Providers.OpenAI.APIKey != "" {
		clients["openai"] = services.NewOpenAIClient(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL)
	} else {
		logger.Warnf("[Providers] OPENAI_API_KEY not set, using simulated openai client")
		clients["openai"] = services.NewSimulatedClient("openai")
	}

	if cfg.Providers.Google.APIKey != "" {
		veo, err := services.NewVeoClient(context.Background(), cfg.Providers.Google.APIKey)
		if err != nil {
			logger.Warnf("[Providers] Veo client init failed (%v), using simulated google client", err)
			clients["google"] = services.NewSimulatedClient("google")
		} else {
			clients["google"] = veo
		}
	} else {
		logger.Warnf("[Providers] GOOGLE_API_KEY not set, using simulated google client")
		clients["google"] = services.NewSimulatedClient("google")
	}

	if cfg.Providers.Luma.APIKey != "" {
		clients["luma"] = services.NewLumaClient(cfg.Providers.Luma.APIKey, cfg.Providers.Luma.BaseURL)
	} else {
		logger.Warnf("[Providers] LUMA_API_KEY not set, using simulated luma client")
		clients["luma"] = services.NewSimulatedClient("luma")
	}

	// No official client exists for kling; it is simulator-only until one
	// ships.
	clients["kling"] = services.NewSimulatedClient("kling")

	return clients
}

// shutdown gracefully stops the schedulers and job watchers.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	s.tracker.Shutdown()
	logger.Info().Msg("Scheduler and job tracker stopped")
}
