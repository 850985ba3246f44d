package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/tellerdesk/tellerdesk/internal/accounts"
	"github.com/tellerdesk/tellerdesk/internal/config"
	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/db"
	dbsqlc "github.com/tellerdesk/tellerdesk/internal/db/sqlc"
	"github.com/tellerdesk/tellerdesk/internal/gateway"
	"github.com/tellerdesk/tellerdesk/internal/handlers"
	"github.com/tellerdesk/tellerdesk/internal/healthcheck"
	pgchecker "github.com/tellerdesk/tellerdesk/internal/healthcheck/checkers/postgres"
	redischecker "github.com/tellerdesk/tellerdesk/internal/healthcheck/checkers/redis"
	"github.com/tellerdesk/tellerdesk/internal/jobs"
	"github.com/tellerdesk/tellerdesk/internal/logger"
	"github.com/tellerdesk/tellerdesk/internal/message"
	"github.com/tellerdesk/tellerdesk/internal/message/event"
	"github.com/tellerdesk/tellerdesk/internal/notification"
	"github.com/tellerdesk/tellerdesk/internal/presence"
	"github.com/tellerdesk/tellerdesk/internal/requests"
	"github.com/tellerdesk/tellerdesk/internal/server"
	"github.com/tellerdesk/tellerdesk/internal/tickets"
	"github.com/tellerdesk/tellerdesk/internal/version"
)

const bridgeReadyTimeout = 5 * time.Second

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideDBStore,
			provideDBQueries,
			provideRedisClient,
			event.NewHub,
			provideSubscriber,
			providePublisher,
			accounts.NewService,
			provideTicketService,
			provideRequestService,
			provideConversationService,
			presence.NewTracker,
			notification.NewService,
			provideMessageService,
			provideGateway,
			provideScheduler,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(handlers.NewUsersHandler),
			provideServerHandler(handlers.NewTicketsHandler),
			provideServerHandler(handlers.NewRequestsHandler),
			provideServerHandler(handlers.NewConversationsHandler),
			provideServerHandler(provideMessageHandler),
			provideServerHandler(providePresenceHandler),
			provideServerHandler(handlers.NewNotificationsHandler),
			provideServerHandler(provideSocketHandler),
			provideServer,
		),
		fx.Invoke(
			ensureAdmin,
			startGateway,
			startScheduler,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideDBStore(conn *pgxpool.Pool) db.Store { return db.NewStore(conn) }

func provideDBQueries(store db.Store) dbsqlc.Querier { return store }

// provideRedisClient returns nil when no Redis address is configured.
func provideRedisClient(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled() {
		return nil, nil
	}
	client, err := event.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return client.Close() }})
	return client, nil
}

func provideSubscriber(hub *event.Hub) event.Subscriber { return hub }

// providePublisher fans events out across nodes through Redis when it is configured,
// and through the local hub only otherwise.
func providePublisher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, hub *event.Hub, client *redis.Client, shutdowner fx.Shutdowner) event.Publisher {
	if client == nil {
		return hub
	}
	bridge := event.NewRedisBridge(log, hub, client, cfg.Redis.Channel)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ready := make(chan struct{})
			go func() {
				defer close(done)
				if err := bridge.Run(ctx, ready); err != nil {
					log.Error("event bridge stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			select {
			case <-ready:
				return nil
			case <-done:
				return errors.New("event bridge failed to subscribe")
			case <-time.After(bridgeReadyTimeout):
				return errors.New("event bridge subscribe timed out")
			case <-startCtx.Done():
				return startCtx.Err()
			}
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
	return bridge
}

func provideTicketService(log *slog.Logger, queries dbsqlc.Querier, accountService *accounts.Service, notifications *notification.Service) *tickets.Service {
	svc := tickets.NewService(log, queries, accountService)
	svc.SetNotifier(notifications)
	return svc
}

func provideRequestService(log *slog.Logger, queries dbsqlc.Querier, accountService *accounts.Service, notifications *notification.Service) *requests.Service {
	svc := requests.NewService(log, queries, accountService)
	svc.SetNotifier(notifications)
	return svc
}

func provideConversationService(log *slog.Logger, queries db.Store, accountService *accounts.Service, ticketService *tickets.Service, requestService *requests.Service, publisher event.Publisher) *conversation.Service {
	return conversation.NewService(log, queries, accountService, ticketService, requestService, publisher)
}

func provideMessageService(log *slog.Logger, cfg config.Config, queries db.Store, chatService *conversation.Service, accountService *accounts.Service, tracker *presence.Tracker, notifications *notification.Service, publisher event.Publisher) *message.DBService {
	return message.NewService(log, queries, chatService, accountService, tracker, notifications, publisher, message.Options{
		EditWindow: cfg.Chat.EditWindowDuration(),
	})
}

func provideGateway(log *slog.Logger, cfg config.Config, chatService *conversation.Service, msgService *message.DBService, tracker *presence.Tracker, subscriber event.Subscriber, publisher event.Publisher) *gateway.Gateway {
	return gateway.New(log, chatService, msgService, tracker, subscriber, publisher, gateway.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendBuffer:     cfg.Chat.SocketSendBuffer,
		TypingTTL:      cfg.Chat.TypingTTLDuration(),
	})
}

func provideScheduler(log *slog.Logger, cfg config.Config, tracker *presence.Tracker, chatService *conversation.Service) (*jobs.Scheduler, error) {
	return jobs.New(log, tracker, chatService, jobs.Options{
		PresenceStale: cfg.Chat.PresenceStaleDuration(),
		IdleArchive:   cfg.Chat.IdleArchiveDuration(),
	})
}

func providePingHandler(log *slog.Logger, conn *pgxpool.Pool, client *redis.Client) *handlers.PingHandler {
	checkers := []healthcheck.Checker{pgchecker.NewChecker(log, conn)}
	if client != nil {
		checkers = append(checkers, redischecker.NewChecker(log, client))
	}
	return handlers.NewPingHandler(log, checkers...)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config, accountService *accounts.Service) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, accountService, cfg.Auth.JWTSecret, cfg.Auth.ExpiresIn())
}

func provideMessageHandler(log *slog.Logger, msgService *message.DBService, chatService *conversation.Service, subscriber event.Subscriber) *handlers.MessageHandler {
	return handlers.NewMessageHandler(log, msgService, chatService, subscriber)
}

func providePresenceHandler(log *slog.Logger, tracker *presence.Tracker) *handlers.PresenceHandler {
	return handlers.NewPresenceHandler(log, tracker)
}

func provideSocketHandler(gw *gateway.Gateway) *handlers.SocketHandler {
	return handlers.NewSocketHandler(gw)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) (*server.Server, error) {
	if params.Config.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...), nil
}

func ensureAdmin(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, accountService *accounts.Service) {
	if cfg.Admin.Email == "" {
		return
	}
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		user, created, err := accountService.EnsureAdmin(ctx, cfg.Admin)
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
		if created {
			log.Info("admin account created", slog.String("user_id", user.ID), slog.String("email", user.Email))
		}
		return nil
	}})
}

func startGateway(lc fx.Lifecycle, gw *gateway.Gateway) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { gw.Start(); return nil },
		OnStop:  func(context.Context) error { gw.Stop(); return nil },
	})
}

func startScheduler(lc fx.Lifecycle, scheduler *jobs.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { scheduler.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return scheduler.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			fmt.Printf("Starting tellerdesk %s\n", version.GetInfo())
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			logger.Info("server listening", slog.String("addr", cfg.Server.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
