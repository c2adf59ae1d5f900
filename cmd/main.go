package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quocdatk18/appchat-sub000/config"
	"github.com/quocdatk18/appchat-sub000/internal/events"
	"github.com/quocdatk18/appchat-sub000/internal/metrics"
	"github.com/quocdatk18/appchat-sub000/internal/middleware"
	"github.com/quocdatk18/appchat-sub000/internal/presence"
	"github.com/quocdatk18/appchat-sub000/internal/queue"
	"github.com/quocdatk18/appchat-sub000/internal/ratelimit"
	conversation_repo "github.com/quocdatk18/appchat-sub000/internal/repo/conversation"
	message_repo "github.com/quocdatk18/appchat-sub000/internal/repo/message"
	user_repo "github.com/quocdatk18/appchat-sub000/internal/repo/user"
	"github.com/quocdatk18/appchat-sub000/internal/routers"
	conversation_service "github.com/quocdatk18/appchat-sub000/internal/use-case/conversation-case"
	message_service "github.com/quocdatk18/appchat-sub000/internal/use-case/message-case"
	user_service "github.com/quocdatk18/appchat-sub000/internal/use-case/user-case"
	"github.com/quocdatk18/appchat-sub000/internal/websocket"
	"github.com/quocdatk18/appchat-sub000/internal/worker"
	worker_handler "github.com/quocdatk18/appchat-sub000/internal/worker/worker-handler"
	"github.com/quocdatk18/appchat-sub000/state"
)

type stores struct {
	conversations conversation_repo.ConversationRepoContract
	messages      message_repo.MessageRepoContract
	users         user_repo.UserRepoContract
}

func openStores(ctx context.Context, app *state.AppState, conf *config.AppConfig) (stores, error) {
	if conf.App.Store == "memory" {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return stores{
			conversations: conversation_repo.NewMemoryRepo(),
			messages:      message_repo.NewMemoryRepo(),
			users:         user_repo.NewMemoryRepo(),
		}, nil
	}

	db := app.MongoDatabase(conf.DATABASE.Mongo.Name)
	conversations := conversation_repo.NewConversationRepo(db)
	messages := message_repo.NewMessageRepo(db)
	users := user_repo.NewUserRepo(db)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for name, ensure := range map[string]func(context.Context) error{
		"conversations": conversations.EnsureIndexes,
		"messages":      messages.EnsureIndexes,
		"users":         users.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			return stores{}, err
		}
		log.Info().Str("collection", name).Msg("indexes ensured")
	}

	return stores{conversations: conversations, messages: messages, users: users}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	conf := config.Conf
	if conf.App.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	shutdownTracing, err := state.InitTracing(ctx, conf.Telemetry.OTLPEndpoint, conf.Telemetry.ServiceName, conf.App.Env, conf.Telemetry.SampleRatio)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	app, err := state.InitAppState(ctx, stop, conf)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application state")
	}
	defer app.Close()

	repos, err := openStores(ctx, app, conf)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open stores")
	}

	conversationService := conversation_service.NewConversationService(repos.conversations, repos.users, conversation_service.Options{
		MemberPreview: conf.Chat.MemberPreview,
	})
	messageService := message_service.NewMessageService(repos.messages, repos.users, conversationService, message_service.Options{
		RecallWindow: conf.Chat.RecallWindow,
	})
	presenceTable := presence.NewTable(repos.users)
	userService := user_service.NewUserService(repos.users, presenceTable)

	collector := metrics.New(prometheus.DefaultRegisterer)

	var publisher events.Publisher = events.NopPublisher{}
	if len(conf.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(conf.Kafka.Brokers, conf.Kafka.Topic)
		log.Info().Strs("brokers", conf.Kafka.Brokers).Str("topic", conf.Kafka.Topic).Msg("Kafka publisher initialized")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	wsHub := websocket.NewHub()
	defer wsHub.Close()
	log.Info().Msg("Websocket hub initialized")

	gateway := websocket.NewGateway(websocket.GatewayDeps{
		Hub:           wsHub,
		Presence:      presenceTable,
		Conversations: conversationService,
		Messages:      messageService,
		Users:         userService,
		Events:        publisher,
		Metrics:       collector,
		Redis:         app.Redis,
	}, websocket.Options{
		SendRateLimit:  conf.Chat.SendRateLimit,
		SendRateWindow: conf.Chat.SendRateWindow,
		IdempotencyTTL: conf.Chat.IdempotencyTTL,
	})

	var (
		wsAuth   websocket.AuthenticatorFunc
		httpAuth func(http.Handler) http.Handler
	)
	if conf.Auth.Mode == "header" {
		wsAuth = websocket.TrustedHeaderAuth(conf.Auth.Header)
		httpAuth = middleware.TrustedHeaderAuth(conf.Auth.Header)
	} else {
		wsAuth = websocket.JWTWebSocketAuth(app.PublicKey)
		httpAuth = middleware.JWTAuth(app.PublicKey)
	}

	wsHandler := websocket.NewWebSocketHandler(gateway, wsAuth)
	wsHandler.MaxConnections = conf.Websocket.MaxConnections
	wsHandler.RateLimit.Enabled = conf.Websocket.ConnectionsPerIP > 0
	wsHandler.RateLimit.ConnectionsPerIP = conf.Websocket.ConnectionsPerIP
	log.Info().Msg("Websocket handler initialized")

	r := routers.NewRouter(routers.Dependencies{
		Auth:           httpAuth,
		Conversations:  conversationService,
		Messages:       messageService,
		Users:          userService,
		Producer:       queue.NewProducer(app.Redis),
		Events:         publisher,
		Hub:            wsHub,
		Presence:       presenceTable,
		WebSocket:      wsHandler,
		Limiter:        ratelimit.New(app.Redis),
		MutationLimit:  conf.Chat.SendRateLimit,
		MutationWindow: conf.Chat.SendRateWindow,
	})

	workerPool := worker.NewWorkerPool(app.Redis, worker_handler.NewWorkerHandler(gateway), collector, worker.Options{
		WorkerNum:    conf.Worker.Count,
		PollInterval: conf.Worker.PollInterval,
	})
	if db := app.MongoDatabase(conf.DATABASE.Mongo.Name); db != nil {
		workerPool.Sink = worker.NewMongoSink(db)
	}
	workerPool.Start(ctx)
	workerPool.StartDLQWorker(ctx)

	server := &http.Server{
		Addr:        conf.App.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Msgf("Starting server on http://localhost%s", conf.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("ListenAndServe failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown initiated...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("Server exited gracefully")
	}

	workerPool.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to flush traces")
	}
}
