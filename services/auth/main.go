package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/diagnosis/kabataan-portal/pkg/config"
	"github.com/diagnosis/kabataan-portal/pkg/database"
	"github.com/diagnosis/kabataan-portal/pkg/events"
	"github.com/diagnosis/kabataan-portal/pkg/logger"
	mw "github.com/diagnosis/kabataan-portal/pkg/middleware"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/handlers"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/mailer"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/repository"
	"github.com/diagnosis/kabataan-portal/services/auth/internal/service"
	"github.com/diagnosis/kabataan-portal/services/auth/migrations"
)

func main() {
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(ctx, pool, migrations.FS); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	codeStore, closeStore, err := openCodeStore(ctx, cfg, pool)
	if err != nil {
		logger.Error("Failed to open code store", "store", cfg.OTP.Store, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Connect to event bus
	var eventBus events.Publisher = events.NopBus{}
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL, "kabataan-auth")
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		eventBus = bus
	}
	defer eventBus.Close()

	// Initialize repositories
	memberRepo := repository.NewMemberRepository(pool)
	officerRepo := repository.NewOfficerRepository(pool)
	rateLimitRepo := repository.NewRateLimitRepository(pool)

	// Initialize services
	codeService := service.NewCodeService(codeStore, memberRepo, officerRepo, newMailer(cfg.Email), eventBus, cfg.OTP)
	authService := service.NewAuthService(
		memberRepo,
		officerRepo,
		codeService,
		service.NewJWTSessions(cfg.Auth),
		eventBus,
		cfg.OTP.TTL,
		time.Now,
	)

	h := handlers.New(authService, rateLimitRepo, cfg)

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("auth"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	h.Routes(r)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	if cfg.OTP.PurgeInterval > 0 {
		go runJanitor(janitorCtx, cfg.OTP.PurgeInterval, codeService, rateLimitRepo)
	}

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down auth service...")
		stopJanitor()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Auth service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting auth service", "port", cfg.Server.Port, "code_store", cfg.OTP.Store)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Auth service error", "error", err)
		os.Exit(1)
	}
}

// openCodeStore picks the code store backend. The returned func releases
// whatever connection the backend holds.
func openCodeStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (repository.CodeRepository, func(), error) {
	switch cfg.OTP.Store {
	case config.StorePostgres, "":
		return repository.NewPostgresCodeStore(pool), func() {}, nil
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		if cfg.Redis.DB != 0 {
			opts.DB = cfg.Redis.DB
		}
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return repository.NewRedisCodeStore(rdb), func() { rdb.Close() }, nil
	case config.StoreMemory:
		logger.Warn("Using in-memory code store; codes are lost on restart and not shared between replicas")
		return repository.NewMemoryCodeStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown code store %q", cfg.OTP.Store)
	}
}

func newMailer(cfg config.EmailConfig) mailer.Service {
	switch {
	case cfg.DevMode:
		return mailer.NewDevMailer(cfg.PortalURL)
	case cfg.MailerSendKey != "":
		return mailer.NewMailerSend(cfg)
	default:
		return mailer.NewSMTPMailer(cfg)
	}
}

// runJanitor deletes expired codes and stale rate-limit windows. Verification
// never depends on it having run.
func runJanitor(ctx context.Context, every time.Duration, codes service.CodeService, limits repository.RateLimitRepository) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := codes.PurgeExpired(ctx); err != nil {
				logger.Error("Failed to purge expired codes", "error", err)
			} else if n > 0 {
				logger.Info("Purged expired codes", "count", n)
			}
			if _, err := limits.CleanupExpired(ctx); err != nil {
				logger.Error("Failed to clean up rate limits", "error", err)
			}
		}
	}
}
