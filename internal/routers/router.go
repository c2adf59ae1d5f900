package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/quocdatk18/appchat-sub000/internal/events"
	"github.com/quocdatk18/appchat-sub000/internal/middleware"
	"github.com/quocdatk18/appchat-sub000/internal/presence"
	"github.com/quocdatk18/appchat-sub000/internal/queue"
	"github.com/quocdatk18/appchat-sub000/internal/ratelimit"
	conversation_service "github.com/quocdatk18/appchat-sub000/internal/use-case/conversation-case"
	message_service "github.com/quocdatk18/appchat-sub000/internal/use-case/message-case"
	user_service "github.com/quocdatk18/appchat-sub000/internal/use-case/user-case"
	"github.com/quocdatk18/appchat-sub000/internal/websocket"
)

type Dependencies struct {
	Auth          func(http.Handler) http.Handler
	Conversations conversation_service.ConversationServiceContract
	Messages      message_service.MessageServiceContract
	Users         user_service.UserServiceContract
	Producer      queue.Producer
	Events        events.Publisher
	Hub           *websocket.Hub
	Presence      *presence.Table
	WebSocket     http.Handler

	// Limiter guards message mutations when set.
	Limiter        *ratelimit.Limiter
	MutationLimit  int64
	MutationWindow time.Duration
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.WithRequestId)

	r.Handle("/metrics", promhttp.Handler())
	if deps.WebSocket != nil {
		r.Handle("/ws", deps.WebSocket)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(otelhttp.NewMiddleware("appchat-api"))
		HubRouter(api, deps.Hub, deps.Presence)

		api.Group(func(protected chi.Router) {
			protected.Use(deps.Auth)
			ConversationRouter(protected, deps)
			MessageRouter(protected, deps)
			UserRouter(protected, deps)
		})
	})
	return r
}

func callerKey(r *http.Request) string {
	userID := middleware.UserIDFrom(r.Context())
	if userID == "" {
		return ""
	}
	return "http:" + userID
}
