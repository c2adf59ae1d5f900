package routers

import (
	"github.com/go-chi/chi/v5"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
	hub_handler "github.com/quocdatk18/appchat-sub000/internal/handlers/hub-handler"
	"github.com/quocdatk18/appchat-sub000/internal/presence"
	"github.com/quocdatk18/appchat-sub000/internal/websocket"
)

func HubRouter(r chi.Router, wsHub *websocket.Hub, table *presence.Table) {
	hubHandler := hub_handler.NewHubHandler(wsHub, table)

	r.Get("/health", hubHandler.HandleHealth)
	r.Get("/stats", handlers.WrapHandler(hubHandler.HandleGetStats))

	r.Route("/rooms/{roomId}", func(r chi.Router) {
		r.Get("/stats", handlers.WrapHandler(hubHandler.HandleGetRoomStats))
		r.Get("/clients", handlers.WrapHandler(hubHandler.HandleGetRoomClients))
	})
}
