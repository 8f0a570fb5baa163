package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"deckgen/internal/http/handlers"
	"deckgen/internal/middleware"
)

// Options carries the cross-cutting pieces the router wires around the app.
type Options struct {
	Logger          zerolog.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
	HTTPObserver    middleware.HTTPObserver
	MetricsHandler  http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N("en", opts.CountryLookup),
		middleware.Logger(opts.Logger),
	)
	if opts.HTTPObserver != nil {
		r.Use(middleware.Metrics(opts.HTTPObserver))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/v1/decks", func(r chi.Router) {
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.CreateDeck)
		r.Get("/", app.ListDecks)
		r.Get("/{id}", app.GetDeck)
		r.Get("/{id}/download", app.DownloadDeck)
	})

	return r
}
