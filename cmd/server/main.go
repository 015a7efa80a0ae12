package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/admission"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/artifact"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/auth"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/client"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/config"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/executor"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/extractor"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/fallback"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/guard"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/handler"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/history"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/middleware"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/model"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/quota"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/ratelimit"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/service"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/store"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/token"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/internal/worker"
	"github.com/vasyapupkin44184028-stack/youtube-telegram-bot/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := config.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis not available", slog.String("error", err.Error()))
	}

	// Persisted counters
	var st store.Store
	switch cfg.Store.Backend {
	case "redis":
		st = store.NewRedisStore(redisClient, cfg.Store.Prefix)
	default:
		fileStore, err := store.NewFileStore(cfg.Store.Dir)
		if err != nil {
			fatal(log, "failed to open store", err)
		}
		st = fileStore
	}

	subscriptions := quota.NewSubscriptions(cfg.Admin.IDs, st)
	ledger := quota.NewLedger(subscriptions, quota.Limits{
		model.TierFree:    cfg.Limits.FreeDaily,
		model.TierPremium: cfg.Limits.PremiumDaily,
		model.TierAdmin:   quota.Unlimited,
	}, st, log)
	blocklist := guard.NewBlocklist(st)
	serviceSwitch := guard.NewServiceSwitch(st, subscriptions)
	tokens := token.NewService(cfg.Limits.TokenTTL, st, log)
	recorder := history.NewRecorder(cfg.Limits.HistorySize, st, log)

	loaders := map[string]worker.Reloader{
		store.DocPremium:  subscriptions,
		store.DocQuota:    ledger,
		store.DocBlocked:  blocklist,
		store.DocBotState: serviceSwitch,
		store.DocTokens:   tokens,
		store.DocHistory:  recorder,
	}
	for name, l := range loaders {
		if err := l.Load(ctx); err != nil {
			fatal(log, "failed to load "+name, err)
		}
	}

	// Rate limiter
	var limiter ratelimit.Limiter
	var windows worker.WindowPruner
	if cfg.RateLimit.Backend == "redis" {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Limits.RateLimitRequests, cfg.Limits.RateLimitWindow, log)
	} else {
		memLimiter := ratelimit.NewMemoryLimiter(cfg.Limits.RateLimitRequests, cfg.Limits.RateLimitWindow)
		limiter = memLimiter
		windows = memLimiter
	}

	// Extraction engine
	if cfg.Extractor.AutoInstall {
		if err := extractor.Install(ctx); err != nil {
			fatal(log, "failed to install extractor", err)
		}
	}
	engine := extractor.NewYtDlp(cfg.Extractor.Binary, log)

	if err := os.MkdirAll(cfg.Download.WorkDir, 0o755); err != nil {
		fatal(log, "failed to create work dir", err)
	}

	// Delivery
	var deliverer service.Deliverer
	var storage handler.Pinger
	switch cfg.Download.Delivery {
	case "r2":
		r2Client, err := client.NewR2Client(ctx, &cfg.R2)
		if err != nil {
			fatal(log, "failed to initialize R2 client", err)
		}
		deliverer = service.NewStorageDeliverer(r2Client, cfg.Limits.TokenTTL)
		storage = r2Client
	default:
		deliverer = service.NewLocalDeliverer(cfg.Download.OutputDir)
	}

	validate := validator.New()
	urls := guard.NewURLPolicy(cfg.Limits.MaxURLLength, cfg.URLs.Supported, cfg.URLs.Blacklisted)
	slots := admission.NewController(cfg.Limits.MaxConcurrentDownloads)
	policy := fallback.NewPolicy(engine, artifact.NewValidator(cfg.Limits.MaxFilenameLength, cfg.Limits.MaxFileSizeMB), log)

	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Limiter:      limiter,
		Blocklist:    blocklist,
		Availability: serviceSwitch,
		URLs:         urls,
		Quota:        ledger,
		Tokens:       tokens,
		Executor:     executor.NewExecutor(slots, cfg.Download.KillGrace, log),
		Policy:       policy,
		History:      recorder,
		Deliverer:    deliverer,
		Validate:     validate,
		WorkDir:      cfg.Download.WorkDir,
		JobTimeout:   cfg.Limits.JobTimeout,
	}, log)
	infoService := service.NewInfoService(
		engine,
		urls,
		limiter,
		cfg.Extractor.InfoCacheSize,
		cfg.Extractor.InfoCacheTTL,
		cfg.Extractor.InfoRate,
		cfg.Extractor.InfoBurst,
		log,
	)

	// Janitor
	janitor := worker.NewJanitor(cfg.Janitor.Interval, worker.JanitorDeps{
		Tokens:  tokens,
		Quota:   ledger,
		Windows: windows,
		Reloaders: map[string]worker.Reloader{
			store.DocPremium:  subscriptions,
			store.DocBlocked:  blocklist,
			store.DocBotState: serviceSwitch,
		},
		WorkDir:  cfg.Download.WorkDir,
		StaleAge: 2 * cfg.Limits.JobTimeout,
	}, log)
	go janitor.Run(ctx)

	// Ops API auth: JWKS first, shared secret as fallback
	var verifiers auth.Chain
	if cfg.OIDC.Issuer != "" {
		jwksVerifier, err := auth.NewJWKSVerifier(ctx, &cfg.OIDC)
		if err != nil {
			log.Warn("JWKS verifier not initialized", slog.String("error", err.Error()))
		} else {
			verifiers = append(verifiers, jwksVerifier)
		}
	}
	if cfg.JWT.Secret != "" {
		verifiers = append(verifiers, auth.NewHMACVerifier(cfg.JWT.Secret))
	}
	authMiddleware := middleware.NewAuthMiddleware(verifiers)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	handler.Register(app, handler.Routes{
		Health: handler.NewHealthHandler(redisClient, storage, len(verifiers) > 0),
		Ops:    handler.NewOpsHandler(slots, ledger, recorder, tokens, blocklist, validate),
		Jobs:   handler.NewJobHandler(orchestrator, infoService, ledger, cfg.Limits.RateLimitWindow, validate),
		Auth:   authMiddleware.Authenticate(),
	})

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server shutdown error", slog.String("error", err.Error()))
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Info("server starting",
		slog.String("addr", addr),
		slog.Int("max_concurrent_downloads", slots.Capacity()),
		slog.String("delivery", cfg.Download.Delivery),
	)
	if err := app.Listen(addr); err != nil {
		fatal(log, "server error", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
