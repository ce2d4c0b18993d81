package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/padeliga/matchday/handlers"
	"github.com/padeliga/matchday/middleware"
	"github.com/padeliga/matchday/models"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Player    *handlers.PlayerHandler
	Match     *handlers.MatchHandler
	Webhook   *handlers.WebhookHandler
	WebSocket *handlers.WebSocketHandler
	Health    *handlers.HealthHandler
}

func InitRoutes(h Handlers, jwtSecret string) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", h.Health.Check)
	router.Post("/auth/login", h.Auth.Login)
	router.Post("/webhook/replies", h.Webhook.HandleReply)
	router.Get("/ws/matches", h.WebSocket.ServeWs)

	router.Route("/players", func(r chi.Router) {
		r.Get("/", h.Player.List)
		r.Get("/{playerID}", h.Player.Get)
		r.Put("/{playerID}/availability", h.Player.SetAvailability)
		r.Put("/{playerID}/avatar", h.Player.UploadAvatar)
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/", h.Match.List)
		r.Get("/{matchID}", h.Match.Get)
		r.Post("/join", h.Match.Join)
		r.Post("/{matchID}/leave", h.Match.Leave)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.Authorize(models.RoleAdmin))

		r.Post("/players", h.Player.Create)
		r.Post("/matchmaking/run", h.Match.RunMatchmaking)
		r.Post("/scan/run", h.Match.RunScan)
		r.Post("/matches/{matchID}/cancel", h.Match.Cancel)
	})

	return router
}
