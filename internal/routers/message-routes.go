package routers

import (
	"github.com/go-chi/chi/v5"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
	message_handler "github.com/quocdatk18/appchat-sub000/internal/handlers/message-handler"
)

func MessageRouter(r chi.Router, deps Dependencies) {
	messageHandler := message_handler.NewMessageHandler(deps.Producer, deps.Events, deps.Conversations, deps.Messages)

	r.Route("/messages/{messageId}", func(r chi.Router) {
		if deps.Limiter != nil && deps.MutationLimit > 0 {
			r.Use(deps.Limiter.LimitHTTP(deps.MutationLimit, deps.MutationWindow, callerKey))
		}
		r.Post("/recall", handlers.WrapHandler(messageHandler.RecallMessage))
		r.Post("/delete-for-me", handlers.WrapHandler(messageHandler.DeleteForMe))
		r.Post("/delete-for-all", handlers.WrapHandler(messageHandler.DeleteForAll))
		r.Post("/seen", handlers.WrapHandler(messageHandler.MarkSeen))
	})
}
