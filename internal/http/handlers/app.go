package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"deckgen/internal/domain"
)

// JobService is the job state machine as seen by the HTTP surface.
type JobService interface {
	Create(ctx context.Context, req domain.DeckRequest) (domain.Job, error)
	Get(ctx context.Context, id string) (domain.Job, error)
	List(ctx context.Context) ([]domain.Job, error)
	Fail(ctx context.Context, id, detail string) (domain.Job, error)
}

// Launcher starts the background run of a created job.
type Launcher interface {
	Launch(id string) error
}

type App struct {
	Jobs      JobService
	Launcher  Launcher
	Artifacts domain.ArtifactStore
	Provider  string
	Logger    zerolog.Logger
}

func NewApp(jobs JobService, launcher Launcher, artifacts domain.ArtifactStore, provider string, logger zerolog.Logger) *App {
	return &App{Jobs: jobs, Launcher: launcher, Artifacts: artifacts, Provider: provider, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// fail maps domain errors onto status codes. Unknown errors are logged and
// reported without detail.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		a.error(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "deck job not found")
	case errors.Is(err, domain.ErrArtifactNotReady):
		a.error(w, http.StatusConflict, "artifact_not_ready", err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
