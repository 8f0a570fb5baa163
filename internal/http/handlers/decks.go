package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"deckgen/internal/domain"
	"deckgen/internal/middleware"
)

type createDeckRequest struct {
	Topic      string `json:"topic"`
	SlideCount int    `json:"slide_count"`
	Audience   string `json:"audience"`
	Template   string `json:"template"`
	Locale     string `json:"locale"`
}

type jobResponse struct {
	domain.Job
	DownloadURL string `json:"download_url,omitempty"`
}

func newJobResponse(job domain.Job) jobResponse {
	resp := jobResponse{Job: job}
	if job.Status == domain.JobStatusDone {
		resp.DownloadURL = fmt.Sprintf("/v1/decks/%s/download", job.ID)
	}
	return resp
}

const maxListLimit = 100

// CreateDeck stores a new job and starts its run. It answers as soon as the
// job exists; generation continues in the background.
func (a *App) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var body createDeckRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	locale := body.Locale
	if locale == "" {
		locale = middleware.LocaleFromContext(r.Context())
	}
	job, err := a.Jobs.Create(r.Context(), domain.DeckRequest{
		Topic:      body.Topic,
		SlideCount: body.SlideCount,
		Audience:   domain.Audience(body.Audience),
		Template:   domain.Template(body.Template),
		Locale:     locale,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Launcher.Launch(job.ID); err != nil {
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("http: launch deck job")
		if _, ferr := a.Jobs.Fail(r.Context(), job.ID, "not started: "+err.Error()); ferr != nil {
			a.Logger.Error().Err(ferr).Str("job_id", job.ID).Msg("http: fail unlaunched job")
		}
		a.error(w, http.StatusServiceUnavailable, "unavailable", "service is shutting down")
		return
	}
	w.Header().Set("Location", "/v1/decks/"+job.ID)
	a.json(w, http.StatusCreated, newJobResponse(job))
}

func (a *App) ListDecks(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Jobs.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	status := domain.JobStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unknown status filter")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	items := make([]jobResponse, 0, min(len(jobs), limit))
	for _, job := range jobs {
		if status != "" && job.Status != status {
			continue
		}
		items = append(items, newJobResponse(job))
		if len(items) == limit {
			break
		}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetDeck(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobResponse(job))
}

// DownloadDeck streams the finished bundle. Jobs that are not done answer 409.
func (a *App) DownloadDeck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Jobs.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if job.Status != domain.JobStatusDone {
		a.fail(w, r, fmt.Errorf("%w: deck is %s", domain.ErrArtifactNotReady, job.Status))
		return
	}
	data, err := a.Artifacts.Read(r.Context(), job.ArtifactRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("bundle %s missing from artifact store: %v", job.ArtifactRef, err)
		}
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="deck-%s.zip"`, job.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
