package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/mrsorbate/KADR.app-sub000/handlers"
	"github.com/mrsorbate/KADR.app-sub000/middleware"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	occurrenceHandler *handlers.OccurrenceHandler,
	responseHandler *handlers.ResponseHandler,
	fixtureHandler *handlers.FixtureHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Route("/api", func(r chi.Router) {
		r.Use(authenticate)

		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Post("/occurrences", occurrenceHandler.CreateOccurrence)
			r.Get("/occurrences", occurrenceHandler.ListTeamOccurrences)
			r.Post("/members/{userID}/sync", responseHandler.SyncNewMember)

			r.Post("/fixtures/import", fixtureHandler.ImportFixtures)
			r.Get("/fixtures/last-import", fixtureHandler.LastImport)
			r.Get("/league", fixtureHandler.LeagueOverview)
		})

		r.Route("/occurrences/{occurrenceID}", func(r chi.Router) {
			r.Get("/", occurrenceHandler.GetOccurrence)
			r.Patch("/", occurrenceHandler.UpdateOccurrence)
			r.Delete("/", occurrenceHandler.DeleteOccurrence)
			r.Put("/responses/{userID}", responseHandler.SetResponse)
		})
	})

	router.With(authenticate).Get("/ws/teams/{teamID}", webSocketHandler.ServeWs)
}
