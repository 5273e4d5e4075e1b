package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/chatops-kit/triage-service/internal/api/http"
	"github.com/chatops-kit/triage-service/internal/api/http/handlers"
	"github.com/chatops-kit/triage-service/internal/auth"
	"github.com/chatops-kit/triage-service/internal/chat"
	"github.com/chatops-kit/triage-service/internal/config"
	"github.com/chatops-kit/triage-service/internal/domain"
	"github.com/chatops-kit/triage-service/internal/events"
	"github.com/chatops-kit/triage-service/internal/ingest"
	"github.com/chatops-kit/triage-service/internal/observability"
	"github.com/chatops-kit/triage-service/internal/persistence"
	"github.com/chatops-kit/triage-service/internal/repository"
	memoryrepo "github.com/chatops-kit/triage-service/internal/repository/memory"
	postgresrepo "github.com/chatops-kit/triage-service/internal/repository/postgres"
	"github.com/chatops-kit/triage-service/internal/service"
	"github.com/chatops-kit/triage-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos repository.Repositories
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.Repositories{
			Queries:     postgresrepo.NewQueryRepository(pool),
			Tickets:     postgresrepo.NewTicketRepository(pool),
			StatusLog:   postgresrepo.NewStatusLogRepository(pool),
			Escalations: postgresrepo.NewEscalationRepository(pool),
			Ratings:     postgresrepo.NewRatingRepository(pool),
		}
	} else {
		logger.Warn("using in-memory store; state is lost on restart")
		repos = memoryrepo.NewRepositories(memoryrepo.NewStore())
	}

	rds := persistence.NewRedis(cfg.Redis, logger)
	defer rds.Close()

	metrics := observability.NewMetrics()

	chatClient := chat.NewHTTPClient(cfg.Chat, logger)
	chatClient = chat.NewCachingClient(chatClient, rds.Client, cfg.Chat.PermalinkTTL(), logger)

	teams := domain.NewRegistry(taxonomyEntries(cfg.Triage.Teams))
	impacts := domain.NewRegistry(taxonomyEntries(cfg.Triage.Impacts))
	tags := domain.NewRegistry(taxonomyEntries(cfg.Triage.Tags))

	dispatcher := events.NewInMemoryDispatcher()

	escalationService := service.NewEscalationService(service.EscalationDependencies{
		EscalationRepo: repos.Escalations,
		TicketRepo:     repos.Tickets,
		Teams:          teams,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		QueryRepo:     repos.Queries,
		TicketRepo:    repos.Tickets,
		StatusLogRepo: repos.StatusLog,
		Escalations:   escalationService,
		Teams:         teams,
		Impacts:       impacts,
		Tags:          tags,
		ChatClient:    chatClient,
		Dispatcher:    dispatcher,
		Config:        cfg.Triage,
		Logger:        logger,
	})
	ratingService := service.NewRatingService(service.RatingDependencies{
		RatingRepo:  repos.Ratings,
		TicketRepo:  repos.Tickets,
		Escalations: escalationService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	statsService := service.NewStatsService(service.StatsDependencies{
		QueryRepo:      repos.Queries,
		TicketRepo:     repos.Tickets,
		EscalationRepo: repos.Escalations,
		RatingRepo:     repos.Ratings,
		Location:       cfg.Triage.Location(),
		Logger:         logger,
	})
	permalinkService := service.NewPermalinkService(chatClient, cfg.Triage.WorkerCount, cfg.Triage.PermalinkFailFast, logger)

	notifications := service.NewNotificationService(dispatcher, chatClient, repos.Tickets, cfg.Triage, logger)
	notifications.RegisterHandlers()

	registry := ingest.NewRegistry()
	ingest.NewTriageBindings(ticketService, cfg.Triage, logger).Register(registry)
	pool := ingest.NewPool(registry, cfg.Triage.WorkerCount, cfg.App.RequestTimeout(), metrics, logger)

	sweeper := worker.NewStaleSweeper(repos.Tickets, dispatcher, cfg.Triage, logger)
	go sweeper.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rds),
		Events:         handlers.NewEventsHandler(pool),
		Tickets:        handlers.NewTicketsHandler(ticketService, permalinkService),
		Escalations:    handlers.NewEscalationsHandler(escalationService),
		Ratings:        handlers.NewRatingsHandler(ratingService),
		Stats:          handlers.NewStatsHandler(statsService),
		Taxonomy:       handlers.NewTaxonomyHandler(teams, impacts, tags),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
	pool.Shutdown()
}

func taxonomyEntries(codes []string) []domain.TaxonomyEntry {
	entries := make([]domain.TaxonomyEntry, 0, len(codes))
	for _, code := range codes {
		entries = append(entries, domain.TaxonomyEntry{Code: code, Label: code})
	}
	return entries
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
