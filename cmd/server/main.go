package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/investoscope/investoscope-backend/internal/alerting"
	"github.com/investoscope/investoscope-backend/internal/api"
	"github.com/investoscope/investoscope-backend/internal/config"
	"github.com/investoscope/investoscope-backend/internal/database"
	"github.com/investoscope/investoscope-backend/internal/logging"
	"github.com/investoscope/investoscope-backend/internal/mailer"
	"github.com/investoscope/investoscope-backend/internal/mfapi"
	"github.com/investoscope/investoscope-backend/internal/nse"
	"github.com/investoscope/investoscope-backend/internal/progress"
	"github.com/investoscope/investoscope-backend/internal/quotes"
	"github.com/investoscope/investoscope-backend/internal/repository"
	"github.com/investoscope/investoscope-backend/internal/scheduler"
	"github.com/investoscope/investoscope-backend/internal/secrets"
	"github.com/investoscope/investoscope-backend/internal/service"

	amfivendor "github.com/investoscope/investoscope-backend/internal/amfi"
)

func main() {
	defer logging.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Failed to load configuration", logging.Fields{"error": err.Error()})
	}

	// Open database connection and apply migrations
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal("Failed to open database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logging.Fatal("Failed to run migrations", logging.Fields{"error": err.Error()})
	}

	logging.Info("Connected to database", logging.Fields{"path": cfg.Database.Path})

	// Progress store: in-process by default, Redis when configured
	var store progress.Store = progress.NewMemoryStore()
	if cfg.Redis.URL != "" {
		redisClient, err := database.OpenRedis(cfg.Redis.URL)
		if err != nil {
			logging.Fatal("Failed to connect to redis", logging.Fields{"error": err.Error()})
		}
		defer redisClient.Close()
		store = progress.NewRedisStore(redisClient)
		logging.Info("Using redis progress store", nil)
	}

	codec, err := secrets.NewCodec(cfg.Vendors.FernetKey)
	if err != nil {
		logging.Fatal("Failed to initialize secrets codec", logging.Fields{"error": err.Error()})
	}

	// Create repositories
	optionRepo := repository.NewOptionRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Create services
	notifier := alerting.NewNotifier(cfg.Alerts, mailer.New(cfg.SMTP))
	guard := progress.NewRunGuard()

	credentialService := service.NewCredentialService(cfg.Vendors, settingRepo, codec)
	quoteChain := quotes.NewChain(credentialService)

	catalogueService := service.NewCatalogueService(
		optionRepo, syncLogRepo,
		nse.NewHTTPClient(), amfivendor.NewHTTPClient(), quoteChain,
		store, guard, notifier, cfg.Jobs.FailedAlertThreshold,
	)
	priceService := service.NewPriceService(
		optionRepo, priceRepo, alertRepo, syncLogRepo,
		quoteChain, mfapi.NewHTTPClient(),
		store, guard, notifier, cfg.Jobs.FailedAlertThreshold,
	)
	navService := service.NewNavService(
		optionRepo, priceRepo, syncLogRepo,
		amfivendor.NewHTTPClient(),
		store, guard, notifier,
	)
	maintenanceService := service.NewMaintenanceService(priceRepo, priceService)
	systemService := service.NewSystemService(db, priceRepo)

	// Create router
	router := api.NewRouter(api.Services{
		Catalogue:   catalogueService,
		Prices:      priceService,
		Nav:         navService,
		Maintenance: maintenanceService,
		System:      systemService,
		Credentials: credentialService,
		Progress:    store,
		SyncLogs:    syncLogRepo,
	}, cfg)

	// Start the in-process scheduler when enabled
	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(catalogueService, priceService, navService, maintenanceService)
		if err != nil {
			logging.Fatal("Failed to initialize scheduler", logging.Fields{"error": err.Error()})
		}
		sched.Start()
		defer sched.Stop()
	}

	// Create HTTP server. Write timeout stays disabled: job triggers run the
	// sync synchronously and can legitimately take minutes.
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logging.Info("Starting server", logging.Fields{"addr": cfg.Server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server", nil)

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Fatal("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logging.Info("Server exited", nil)
}
