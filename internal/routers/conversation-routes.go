package routers

import (
	"github.com/go-chi/chi/v5"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
	conversation_handler "github.com/quocdatk18/appchat-sub000/internal/handlers/conversation-handler"
)

func ConversationRouter(r chi.Router, deps Dependencies) {
	conversationHandler := conversation_handler.NewConversationHandler(deps.Conversations, deps.Messages)

	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", handlers.WrapHandler(conversationHandler.CreateConversation))
		r.Get("/", handlers.WrapHandler(conversationHandler.ListConversations))
		r.Get("/search", handlers.WrapHandler(conversationHandler.SearchConversations))

		r.Route("/{conversationId}", func(r chi.Router) {
			r.Get("/", handlers.WrapHandler(conversationHandler.GetConversation))
			r.Delete("/", handlers.WrapHandler(conversationHandler.HideConversation))
			r.Post("/members", handlers.WrapHandler(conversationHandler.AddMembers))
			r.Delete("/members", handlers.WrapHandler(conversationHandler.RemoveMembers))
			r.Patch("/read", handlers.WrapHandler(conversationHandler.MarkRead))
			r.Patch("/settings", handlers.WrapHandler(conversationHandler.UpdateSettings))
			r.Get("/messages", handlers.WrapHandler(conversationHandler.ListMessages))
		})
	})
}
