package routers

import (
	"github.com/go-chi/chi/v5"
	"github.com/quocdatk18/appchat-sub000/internal/handlers"
	user_handler "github.com/quocdatk18/appchat-sub000/internal/handlers/user-handler"
)

func UserRouter(r chi.Router, deps Dependencies) {
	userHandler := user_handler.NewUserHandler(deps.Users)

	r.Put("/users/me/status", handlers.WrapHandler(userHandler.UpdateMyStatus))
	r.Get("/users/{userId}/status", handlers.WrapHandler(userHandler.GetStatus))
}
