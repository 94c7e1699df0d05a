package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/refdesk/refdesk/cmd/refdesk/cli"
	"github.com/refdesk/refdesk/internal/app"
	"github.com/refdesk/refdesk/internal/assignments"
	"github.com/refdesk/refdesk/internal/audit"
	"github.com/refdesk/refdesk/internal/auth"
	"github.com/refdesk/refdesk/internal/authz"
	"github.com/refdesk/refdesk/internal/billing"
	"github.com/refdesk/refdesk/internal/games"
	"github.com/refdesk/refdesk/internal/leagues"
	"github.com/refdesk/refdesk/internal/locations"
	"github.com/refdesk/refdesk/internal/meta"
	"github.com/refdesk/refdesk/internal/observability"
	"github.com/refdesk/refdesk/internal/officials"
	"github.com/refdesk/refdesk/internal/platform/cache"
	"github.com/refdesk/refdesk/internal/platform/db"
	"github.com/refdesk/refdesk/internal/shared"
	"github.com/refdesk/refdesk/internal/stats"
	"github.com/refdesk/refdesk/internal/users"
	"github.com/refdesk/refdesk/jobs"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(os.Args[2:]))
	}

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable at startup", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "refdesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)

	usersRepo := users.NewRepository(dbpool)
	resolver := authz.NewResolver(usersRepo, usersRepo)
	policy := authz.NewPolicy()
	authzMW := authz.Middleware{Resolver: resolver, Policy: policy, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, auditLogger)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, authzMW)

	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService, authzMW)

	leaguesRepo := leagues.NewRepository(dbpool)
	leaguesService := leagues.NewService(leaguesRepo, leaguesRepo, auditLogger)
	leaguesHandler := leagues.NewHandler(logger, leaguesService, authzMW)

	gamesRepo := games.NewRepository(dbpool)
	gamesService := games.NewService(gamesRepo, auditLogger)
	gamesHandler := games.NewHandler(logger, gamesService, authzMW)

	assignmentsRepo := assignments.NewRepository(dbpool)
	assignmentsService := assignments.NewService(assignmentsRepo, auditLogger)
	assignmentsHandler := assignments.NewHandler(logger, assignmentsService, authzMW)

	officialsRepo := officials.NewRepository(dbpool)
	officialsService := officials.NewService(officialsRepo, auditLogger)
	officialsHandler := officials.NewHandler(logger, officialsService, authzMW)

	locationsRepo := locations.NewRepository(dbpool)
	locationsService := locations.NewService(locationsRepo, auditLogger)
	locationsHandler := locations.NewHandler(logger, locationsService, authzMW)

	metaRepo := meta.NewRepository(dbpool)
	metaHandler := meta.NewHandler(logger, metaRepo, authzMW)

	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(billingRepo, auditLogger)
	billingHandler := billing.NewHandler(logger, billingService, authzMW)

	statsRepo := stats.NewRepository(dbpool)
	statsCache := stats.NewCache(redisClient, cfg.StatsCacheTTL)
	if err := statsCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("stats cache listener", slog.Any("error", err))
	}
	statsService := stats.NewService(statsRepo, statsCache)
	statsHandler := stats.NewHandler(logger, statsService, authzMW)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, authzMW)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		LeaguesHandler:     leaguesHandler,
		GamesHandler:       gamesHandler,
		AssignmentsHandler: assignmentsHandler,
		OfficialsHandler:   officialsHandler,
		LocationsHandler:   locationsHandler,
		MetaHandler:        metaHandler,
		BillingHandler:     billingHandler,
		StatsHandler:       statsHandler,
		AuditHandler:       auditHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCommand(args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit JSON output")
	size := fs.Int("size", 10, "page size for the scheduled listing")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "usage: refdesk jobs [-json] [-size n] <trigger|inspect|scheduled> [job]")
		return 1
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: load config: %v\n", err)
		return 1
	}

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "jobs: close: %v\n", err)
		}
	}()

	opts := cli.JobsOptions{
		Action:     rest[0],
		Size:       *size,
		JSONOutput: *jsonOut,
	}
	if len(rest) > 1 {
		opts.Job = rest[1]
	}
	return cli.JobsCommand(context.Background(), jobsCLI, opts)
}
