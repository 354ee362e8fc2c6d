package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"meetsync/internal/browser"
	"meetsync/internal/config"
	"meetsync/internal/crypto"
	"meetsync/internal/database"
	"meetsync/internal/handlers"
	"meetsync/internal/jobs"
	"meetsync/internal/middleware"
	"meetsync/internal/preflight"
	"meetsync/internal/services"
	"meetsync/pkg/auth"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(loadConfig())
	},
}

// storeHandle is the opened session backend plus whatever must be closed with it
type storeHandle struct {
	backend services.SessionBackend
	redis   *services.RedisService
	close   func()
}

// openStore opens the backend named by STORE_BACKEND. Redis is also opened for
// keep-alive locks whenever REDIS_URL is set.
func openStore(cfg *config.Config) (*storeHandle, error) {
	h := &storeHandle{close: func() {}}
	closers := []func(){}

	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL)
		if err != nil {
			if cfg.StoreBackend == "redis" {
				return nil, err
			}
			log.Printf("⚠️  Redis unavailable, keep-alive locks disabled: %v", err)
		} else {
			h.redis = redisService
			closers = append(closers, func() { redisService.Close() })
		}
	}

	switch cfg.StoreBackend {
	case "redis":
		if h.redis == nil {
			return nil, fmt.Errorf("STORE_BACKEND=redis requires REDIS_URL")
		}
		h.backend = services.NewRedisSessionBackend(h.redis)

	case "mongo", "mongodb":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("STORE_BACKEND=mongo requires MONGODB_URI")
		}
		mongoDB, err := database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mongoDB.Initialize(ctx); err != nil {
			return nil, err
		}
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoDB.Close(ctx)
		})
		h.backend = services.NewMongoSessionBackend(mongoDB)

	case "sql", "":
		if path, ok := strings.CutPrefix(cfg.DatabaseURL, "sqlite://"); ok {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Initialize(); err != nil {
			db.Close()
			return nil, err
		}
		closers = append(closers, func() { db.Close() })
		h.backend = services.NewSQLSessionBackend(db)

	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want sql, redis or mongo)", cfg.StoreBackend)
	}

	h.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return h, nil
}

// loadSite returns the built-in profile or the YAML override
func loadSite(cfg *config.Config) (*config.SiteStore, error) {
	if cfg.SiteProfilePath == "" {
		return config.NewSiteStore(config.DefaultSiteProfile()), nil
	}
	profile, err := config.LoadSiteProfile(cfg.SiteProfilePath)
	if err != nil {
		return nil, err
	}
	log.Printf("🌐 Site profile loaded from %s (%s)", cfg.SiteProfilePath, profile.Domain)
	return config.NewSiteStore(profile), nil
}

func runServe(cfg *config.Config) error {
	log.Println("🚀 Starting MeetSync Server...")
	log.Printf("📋 Configuration loaded (Port: %s, Store: %s, Env: %s)", cfg.Port, cfg.StoreBackend, cfg.Environment)

	siteStore, err := loadSite(cfg)
	if err != nil {
		return fmt.Errorf("failed to load site profile: %w", err)
	}
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if cfg.SiteProfilePath != "" {
		go siteStore.Watch(cfg.SiteProfilePath, stopWatch)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.close()

	checker := preflight.NewChecker(store.backend, cfg)
	if preflight.HasFailures(checker.RunAll()) {
		return fmt.Errorf("pre-flight checks failed")
	}

	var encryption *crypto.EncryptionService
	if cfg.EncryptionMasterKey != "" {
		if encryption, err = crypto.NewEncryptionService(cfg.EncryptionMasterKey); err != nil {
			return fmt.Errorf("invalid ENCRYPTION_MASTER_KEY: %w", err)
		}
		log.Println("🔐 Cookie jars encrypted at rest")
	}

	sessions := services.NewSessionService(store.backend, encryption, siteStore.Current, cfg.ExecutionLogLimit)

	var locker services.Locker
	if store.redis != nil {
		locker = store.redis
	}
	keepAlive, err := services.NewKeepAliveScheduler(cfg.KeepAliveInterval, cfg.OperationTimeout, locker)
	if err != nil {
		return err
	}
	sessions.SetArmer(keepAlive)

	slots := browser.NewSlots(cfg.MaxConcurrentPages)
	limiter := services.NewNavigationLimiter(cfg.NavigationRate, cfg.MaxConcurrentPages)
	factory := services.NewBrowserScraperFactory(services.BrowserSettings{
		ChromePath:        cfg.ChromePath,
		Headless:          cfg.BrowserHeadless,
		NavigationTimeout: cfg.NavigationTimeout,
		WaitStrategy:      cfg.WaitStrategy,
		SettleDelay:       cfg.ScrollSettleDelay,
	}, siteStore.Current, slots, limiter)
	captions := services.NewCaptionClient(siteStore.Current, cfg.NavigationTimeout)

	registry := services.NewRegistry(sessions, keepAlive, factory, captions, siteStore.Current, services.RegistryConfig{
		SessionFreshness: cfg.SessionFreshness,
		OperationTimeout: cfg.OperationTimeout,
		ListingCacheTTL:  cfg.ListingCacheTTL,
	})
	keepAlive.SetRunner(registry)

	services.InitMetrics(services.GaugeSources{
		LiveBrowsers: registry.LiveBrowsers,
		PagesInUse:   slots.InUse,
	})

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 30*time.Second)
	restored, err := keepAlive.Restore(restoreCtx, sessions.ActiveUsers)
	cancelRestore()
	if err != nil {
		log.Printf("⚠️  Failed to restore keep-alives: %v", err)
	} else {
		log.Printf("⏰ Restored keep-alive for %d active sessions", restored)
	}
	keepAlive.Start()

	jobScheduler := jobs.NewJobScheduler(time.Minute)
	reaper, err := jobs.NewBrowserReaperJob(registry, cfg.BrowserIdleTimeout, cfg.ReaperSchedule)
	if err != nil {
		return err
	}
	jobScheduler.Register("browser-reaper", reaper)
	jobScheduler.Start()

	var jwtAuth *auth.PlatformJWTAuth
	if cfg.PlatformJWTSecret != "" {
		if jwtAuth, err = auth.NewPlatformJWTAuth(cfg.PlatformJWTSecret, 0); err != nil {
			return err
		}
		log.Println("🔑 Platform bearer auth enabled on /users routes")
	}

	app := newApp(cfg, registry, sessions, keepAlive, jwtAuth)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	shutdownDone := runShutdown(sigChan, []shutdownStep{
		{"server", func() error { return app.ShutdownWithTimeout(30 * time.Second) }},
		{"jobs", func() error { jobScheduler.Stop(); return nil }},
		{"keep-alive scheduler", keepAlive.Stop},
		{"browsers", func() error { registry.CloseAll(); return nil }},
	})

	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	// Listen returns as soon as the server stops; the store closes only after every step has run
	<-shutdownDone
	log.Println("✅ Shutdown complete")
	return nil
}

// shutdownStep is one stage of graceful shutdown
type shutdownStep struct {
	name string
	stop func() error
}

// runShutdown waits for a signal, runs steps in order and closes the returned channel when all have finished
func runShutdown(sig <-chan os.Signal, steps []shutdownStep) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sig

		log.Println("🛑 Shutting down server...")
		for _, step := range steps {
			if err := step.stop(); err != nil {
				log.Printf("⚠️ Error stopping %s: %v", step.name, err)
			}
		}
	}()
	return done
}

func newApp(cfg *config.Config, registry *services.Registry, sessions *services.SessionService, keepAlive *services.KeepAliveScheduler, jwtAuth *auth.PlatformJWTAuth) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "MeetSync",
		ReadTimeout:  cfg.OperationTimeout + 30*time.Second,
		WriteTimeout: cfg.OperationTimeout + 30*time.Second,
		BodyLimit:    4 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("meetsync")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	rateLimitConfig := middleware.LoadRateLimitConfig(cfg.UserRateLimit)
	log.Printf("🛡️  [RATE-LIMIT] Global=%d/min, User=%d/min, Heavy=%d/min",
		rateLimitConfig.GlobalMax, rateLimitConfig.UserMax, rateLimitConfig.HeavyMax)
	app.Use(middleware.GlobalRateLimiter(rateLimitConfig))

	healthHandler := handlers.NewHealthHandler(registry, sessions, keepAlive)
	sessionHandler := handlers.NewSessionHandler(registry)
	extractionHandler := handlers.NewExtractionHandler(registry)
	dashboardHandler := handlers.NewDashboardHandler(registry)

	app.Get("/health", healthHandler.Handle)

	heavy := middleware.HeavyOperationRateLimiter(rateLimitConfig)
	users := app.Group("/users/:userId",
		middleware.ValidateUserID(),
		middleware.PlatformAuthMiddleware(jwtAuth),
		middleware.UserRateLimiter(rateLimitConfig),
	)
	users.Post("/upload-cookies", sessionHandler.UploadCookies)
	users.Get("/health", sessionHandler.Health)
	users.Post("/disconnect", sessionHandler.Disconnect)
	users.Post("/transcript", heavy, extractionHandler.Transcript)
	users.Get("/meetings", extractionHandler.Meetings)
	users.Get("/meeting-transcript", heavy, extractionHandler.MeetingTranscript)
	users.Get("/clips", extractionHandler.Clips)
	users.Post("/sync", heavy, extractionHandler.Sync)
	users.Get("/dashboard-data", dashboardHandler.Dashboard)
	users.Get("/analytics", dashboardHandler.Analytics)

	return app
}
