package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"janus/internal/config"
	"janus/internal/database"
	"janus/internal/handlers"
	"janus/internal/health"
	"janus/internal/jobs"
	"janus/internal/logging"
	"janus/internal/middleware"
	"janus/internal/services"
	"janus/internal/store"
	"janus/pkg/auth"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Janus AI Butler...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s)", cfg.Port, cfg.Environment)

	tracker := health.NewTracker(0)
	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	healthChecker := jobs.NewUpstreamHealthChecker(tracker, 5*time.Second)

	// Persistence
	st, storeProbe := openStore(cfg, tracker)
	closers := []closer{{name: "store", close: func() error { return st.Close(context.Background()) }}}
	if storeProbe != nil {
		healthChecker.AddProbe(health.UpstreamStore, storeProbe)
	}

	// Batch lease: redis when available so only one replica runs the batch
	var lease services.BatchLease = services.NewLocalLease()
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable: %v (using in-process batch lease)", err)
			tracker.Register(health.UpstreamLease, false, "redis unreachable at startup")
		} else {
			closers = append(closers, closer{name: "redis", close: redisService.Close})
			lease = services.NewRedisLease(redisService)
			tracker.Register(health.UpstreamLease, true, "redis")
			healthChecker.AddProbe(health.UpstreamLease, redisService.Ping)
			log.Println("✅ Redis batch lease enabled")
		}
	} else {
		tracker.Register(health.UpstreamLease, true, "in-process")
		log.Println("⚠️  REDIS_URL not set - batch lease is in-process only")
	}

	// Text generation
	var generator services.TextGenerator
	if cfg.LLMAPIKey != "" {
		g, err := services.NewOpenAIGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, &http.Client{Timeout: 90 * time.Second})
		if err != nil {
			log.Fatalf("❌ Failed to configure LLM client: %v", err)
		}
		generator = g
		tracker.Register(health.UpstreamLLM, true, cfg.LLMModel)
		log.Printf("✅ LLM configured (model: %s)", cfg.LLMModel)
	} else {
		tracker.Register(health.UpstreamLLM, false, "LLM_API_KEY not set")
	}

	// URL fetching
	extractor, err := services.NewContentExtractor(cfg.ContentExtractor)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	pages := services.NewPageFetcher(services.PageFetcherOptions{
		Timeout:       cfg.FetchTimeout,
		MaxChars:      cfg.MaxContentChars,
		Extractor:     extractor,
		RespectRobots: true,
	})
	tracker.Register(health.UpstreamScraper, true, cfg.ContentExtractor)

	// Calendar
	var provider services.CalendarProvider
	if cfg.GoogleCredentialsFile != "" {
		p, err := services.NewGoogleCalendarFromCredentials(context.Background(), cfg.GoogleCredentialsFile, cfg.CalendarBaseURL, cfg.CalendarID, cfg.FetchTimeout)
		if err != nil {
			log.Printf("⚠️  Calendar credentials unusable: %v (calendar features degraded)", err)
			tracker.Register(health.UpstreamCalendar, false, err.Error())
		} else {
			provider = p
			tracker.Register(health.UpstreamCalendar, true, cfg.CalendarID)
			log.Printf("✅ Google Calendar configured (calendar: %s)", cfg.CalendarID)
		}
	} else {
		tracker.Register(health.UpstreamCalendar, false, "GOOGLE_APPLICATION_CREDENTIALS not set")
	}

	summarizer := services.NewSummarizerService(generator, pages, cfg.SummaryLanguage, tracker, metrics)
	calendar := services.NewCalendarService(provider, tracker, metrics)
	batch := services.NewBatchService(st, summarizer, lease, cfg.BatchWindow, cfg.BatchConcurrency, metrics)

	// Identity provider
	verifier := buildVerifier(cfg)

	// Background jobs
	scheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if cfg.BatchSchedule != "" {
		if err := scheduler.RegisterCron("batch-reconciliation", cfg.BatchSchedule, cfg.BatchTimezone, jobs.NewBatchJob(batch)); err != nil {
			log.Fatalf("❌ %v", err)
		}
	} else {
		log.Println("⚠️  BATCH_SCHEDULE empty - batch runs only via POST /past/process-batch")
	}
	if err := scheduler.RegisterInterval("upstream-health", time.Minute, healthChecker); err != nil {
		log.Fatalf("❌ %v", err)
	}
	scheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Janus AI Butler",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // briefing generation waits on the LLM
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prom := fiberprometheus.New("janus")
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization," + middleware.BatchTokenHeader,
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.AllowedOrigins)

	rateLimitConfig := middleware.NewRateLimitConfig(cfg.RateLimitAPI, cfg.Environment)
	app.Use(middleware.GlobalAPIRateLimiter(rateLimitConfig))

	routes := &handlers.Routes{
		Health:       handlers.NewHealthHandler(tracker, scheduler),
		Auth:         handlers.NewAuthHandler(services.NewUserService(st)),
		Past:         handlers.NewPastHandler(st, batch, metrics),
		Future:       handlers.NewFutureHandler(calendar, summarizer, st, metrics),
		RequireAuth:  middleware.AuthMiddleware(verifier, cfg.Environment),
		BatchGuard:   middleware.BatchTriggerMiddleware(cfg.BatchTriggerToken),
		UserLimiter:  middleware.AuthenticatedRateLimiter(rateLimitConfig),
		BatchLimiter: middleware.BatchTriggerRateLimiter(rateLimitConfig),
	}
	routes.Register(app)

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	if cfg.BatchSchedule != "" {
		log.Printf("🕐 Batch reconciliation: %q (%s)", cfg.BatchSchedule, cfg.BatchTimezone)
	}

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("🛑 Shutting down server...")
		shutdown(scheduler, app, 30*time.Second, closers)
		close(done)
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	<-done
	log.Println("👋 Server stopped")
}

type stopper interface {
	Stop() error
}

type drainer interface {
	ShutdownWithTimeout(timeout time.Duration) error
}

type closer struct {
	name  string
	close func() error
}

// shutdown stops the scheduler, drains in-flight requests, then releases
// backing connections in order. Every closer runs even when an earlier step fails.
func shutdown(scheduler stopper, server drainer, timeout time.Duration, closers []closer) {
	if err := scheduler.Stop(); err != nil {
		log.Printf("⚠️ Error stopping scheduler: %v", err)
	}

	if err := server.ShutdownWithTimeout(timeout); err != nil {
		log.Printf("⚠️ Error shutting down server: %v", err)
	}

	for _, c := range closers {
		if err := c.close(); err != nil {
			log.Printf("⚠️ Error closing %s: %v", c.name, err)
			continue
		}
		log.Printf("✅ Closed %s", c.name)
	}
}

// openStore picks MongoDB, then SQL, then an in-memory store. The returned
// probe is nil when there is nothing remote to check.
func openStore(cfg *config.Config, tracker *health.Tracker) (store.Store, jobs.ProbeFunc) {
	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err := database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		if err := mongoDB.Initialize(context.Background()); err != nil {
			log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
		}
		tracker.Register(health.UpstreamStore, true, "mongodb")
		log.Println("✅ MongoDB connected successfully")
		return store.NewMongoStore(mongoDB), mongoDB.Ping
	}

	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		if err := db.Initialize(); err != nil {
			log.Fatalf("❌ Failed to initialize database: %v", err)
		}
		tracker.Register(health.UpstreamStore, true, string(db.Dialect))
		return store.NewSQLStore(db), db.PingContext
	}

	if cfg.IsProduction() {
		log.Fatal("❌ MONGODB_URI or DATABASE_URL is required in production")
	}
	log.Println("⚠️  No database configured - captures and briefings are kept in memory and lost on restart")
	tracker.Register(health.UpstreamStore, false, "MONGODB_URI and DATABASE_URL not set")
	return store.NewMemoryStore(), nil
}

// buildVerifier returns nil only outside production, where requests then run as a dev user
func buildVerifier(cfg *config.Config) auth.Verifier {
	var verifier auth.Verifier

	switch {
	case cfg.JWTPublicKeyFile != "":
		v, err := auth.NewJWTVerifierFromFile(cfg.JWTPublicKeyFile, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			log.Fatalf("❌ Failed to load identity provider key: %v", err)
		}
		verifier = v
		log.Println("🔐 Bearer tokens verified with public key")
	case cfg.JWTSecret != "":
		v, err := auth.NewJWTVerifier(auth.JWTOptions{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
		if err != nil {
			log.Fatalf("❌ Failed to configure token verification: %v", err)
		}
		verifier = v
		log.Println("🔐 Bearer tokens verified with shared secret")
	default:
		if cfg.IsProduction() {
			log.Fatal("❌ AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY_FILE is required in production")
		}
		log.Println("⚠️  No identity provider configured - all requests run as dev-user")
	}

	return verifier
}
