package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/moneo-app/moneo/internal/auth"
	migrateHandler "github.com/moneo-app/moneo/internal/http/migrate"
	syncHandler "github.com/moneo-app/moneo/internal/http/syncapi"
)

func New(
	jwtSecret string,
	allowedOrigins []string,
	migrationV1 *migrateHandler.Handler,
	syncV1 *syncHandler.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))

		r.Route("/migration", migrationV1.Routes)

		r.Route("/sync", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			syncV1.Routes(r)
		})
	})

	return router
}
