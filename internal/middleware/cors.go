package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows browser clients on allowedOrigins to create and poll decks.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "X-Locale", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "Location", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
