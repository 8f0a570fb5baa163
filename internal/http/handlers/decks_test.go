package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"deckgen/internal/adapter/repo"
	"deckgen/internal/domain"
	"deckgen/internal/jobs"
	"deckgen/internal/middleware"
	"deckgen/internal/storage"
)

type recordingLauncher struct {
	launched []string
	err      error
}

func (l *recordingLauncher) Launch(id string) error {
	if l.err != nil {
		return l.err
	}
	l.launched = append(l.launched, id)
	return nil
}

type testEnv struct {
	machine  *jobs.Machine
	launcher *recordingLauncher
	store    *storage.FileStore
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	env := &testEnv{
		machine:  jobs.NewMachine(repo.NewJobRepositoryMemory(), zerolog.Nop(), jobs.WithClock(tickingClock())),
		launcher: &recordingLauncher{},
		store:    store,
	}
	app := NewApp(env.machine, env.launcher, store, "synthetic", zerolog.Nop())
	r := chi.NewRouter()
	r.Post("/v1/decks", app.CreateDeck)
	r.Get("/v1/decks", app.ListDecks)
	r.Get("/v1/decks/{id}", app.GetDeck)
	r.Get("/v1/decks/{id}/download", app.DownloadDeck)
	r.Get("/v1/healthz", app.Health)
	env.router = r
	return env
}

// tickingClock moves one second per call so creation order is unambiguous.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createJob(t *testing.T) domain.Job {
	t.Helper()
	job, err := e.machine.Create(context.Background(), domain.DeckRequest{
		Topic:      "The future of renewable energy",
		SlideCount: 6,
		Audience:   domain.AudienceBusiness,
		Template:   domain.TemplateCorporate,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func (e *testEnv) finishJob(t *testing.T, id string, bundle []byte) {
	t.Helper()
	ctx := context.Background()
	for _, st := range domain.Pipeline()[1:] {
		if st == domain.JobStatusDone {
			break
		}
		if _, err := e.machine.Advance(ctx, id, st, st.Progress(), string(st)); err != nil {
			t.Fatalf("Advance(%s): %v", st, err)
		}
	}
	ref, err := e.store.Write(ctx, "decks/"+id+"/deck.zip", bundle)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := e.machine.Complete(ctx, id, ref); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestCreateDeck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/v1/decks", `{"topic":"The future of renewable energy","slide_count":8,"audience":"business","template":"corporate"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var job jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Status != domain.JobStatusReceived || job.Progress != 0 {
		t.Fatalf("job = %+v, want received at 0", job.Job)
	}
	if job.DownloadURL != "" {
		t.Fatalf("download url set on a fresh job: %q", job.DownloadURL)
	}
	if got := rec.Header().Get("Location"); got != "/v1/decks/"+job.ID {
		t.Fatalf("Location = %q", got)
	}
	if len(env.launcher.launched) != 1 || env.launcher.launched[0] != job.ID {
		t.Fatalf("launched = %v, want [%s]", env.launcher.launched, job.ID)
	}
}

func TestCreateDeckDefaultsLocaleFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		locale  string
		want    string
	}{
		{name: "no hints", want: "en"},
		{name: "accept-language id", headers: map[string]string{"Accept-Language": "id-ID,en;q=0.5"}, want: "id"},
		{name: "x-locale beats accept-language", headers: map[string]string{"X-Locale": "en", "Accept-Language": "id"}, want: "en"},
		{name: "country header", headers: map[string]string{"CF-IPCountry": "id"}, want: "id"},
		{name: "body locale wins", headers: map[string]string{"Accept-Language": "id"}, locale: "en", want: "en"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			h := middleware.I18N("en", nil)(env.router)
			body := `{"topic":"The future of renewable energy","slide_count":8,"audience":"business","template":"corporate"`
			if tc.locale != "" {
				body += `,"locale":"` + tc.locale + `"`
			}
			req := httptest.NewRequest(http.MethodPost, "/v1/decks", strings.NewReader(body+"}"))
			req.Header.Set("Content-Type", "application/json")
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}

			var created jobResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
				t.Fatalf("decode: %v", err)
			}
			stored, err := env.machine.Get(context.Background(), created.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if stored.Request.Locale != tc.want {
				t.Fatalf("deck locale = %q, want %q", stored.Request.Locale, tc.want)
			}
		})
	}
}

func TestCreateDeckRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "short topic", body: `{"topic":"AI","slide_count":8,"audience":"business","template":"corporate"}`, code: "invalid_request"},
		{name: "slide count", body: `{"topic":"The future of renewable energy","slide_count":3,"audience":"business","template":"corporate"}`, code: "invalid_request"},
		{name: "unknown template", body: `{"topic":"The future of renewable energy","slide_count":8,"audience":"business","template":"neon"}`, code: "invalid_request"},
		{name: "malformed json", body: `{"topic":`, code: "bad_request"},
		{name: "unknown field", body: `{"topic":"The future of renewable energy","slide_count":8,"audience":"business","template":"corporate","color":"red"}`, code: "bad_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(http.MethodPost, "/v1/decks", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec); got.Code != tc.code {
				t.Fatalf("error code = %q, want %q", got.Code, tc.code)
			}
			if len(env.launcher.launched) != 0 {
				t.Fatal("launcher called for a rejected request")
			}
		})
	}
}

func TestCreateDeckFailsJobWhenLaunchRefused(t *testing.T) {
	env := newTestEnv(t)
	env.launcher.err = errors.New("dispatcher closed")

	rec := env.do(http.MethodPost, "/v1/decks", `{"topic":"The future of renewable energy","slide_count":8,"audience":"business","template":"corporate"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	list, err := env.machine.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Status != domain.JobStatusError {
		t.Fatalf("jobs = %+v, want one failed job", list)
	}
}

func TestGetDeck(t *testing.T) {
	env := newTestEnv(t)
	job := env.createJob(t)

	rec := env.do(http.MethodGet, "/v1/decks/"+job.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != job.ID || got.Request.Topic != job.Request.Topic {
		t.Fatalf("got %+v", got.Job)
	}

	rec = env.do(http.MethodGet, "/v1/decks/does-not-exist", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != "not_found" {
		t.Fatalf("error code = %q", got.Code)
	}
}

func TestListDecks(t *testing.T) {
	env := newTestEnv(t)
	first := env.createJob(t)
	second := env.createJob(t)
	if _, err := env.machine.Fail(context.Background(), first.ID, "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "all newest first", query: "", want: []string{second.ID, first.ID}},
		{name: "status filter", query: "?status=error", want: []string{first.ID}},
		{name: "limit", query: "?limit=1", want: []string{second.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, "/v1/decks"+tc.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var body struct {
				Items []jobResponse `json:"items"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(body.Items) != len(tc.want) {
				t.Fatalf("got %d items, want %d", len(body.Items), len(tc.want))
			}
			for i, id := range tc.want {
				if body.Items[i].ID != id {
					t.Fatalf("item %d = %s, want %s", i, body.Items[i].ID, id)
				}
			}
		})
	}

	rec := env.do(http.MethodGet, "/v1/decks?status=sleeping", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d, want 400", rec.Code)
	}
}

func TestDownloadDeck(t *testing.T) {
	env := newTestEnv(t)
	job := env.createJob(t)

	rec := env.do(http.MethodGet, "/v1/decks/"+job.ID+"/download", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status before done = %d, want 409", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != "artifact_not_ready" {
		t.Fatalf("error code = %q", got.Code)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create("deck.json")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	_, _ = fw.Write([]byte(`{"title":"x"}`))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	env.finishJob(t, job.ID, buf.Bytes())

	rec = env.do(http.MethodGet, "/v1/decks/"+job.ID, "")
	var got jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DownloadURL != "/v1/decks/"+job.ID+"/download" {
		t.Fatalf("download url = %q", got.DownloadURL)
	}

	rec = env.do(http.MethodGet, "/v1/decks/"+job.ID+"/download", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status after done = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), buf.Bytes()) {
		t.Fatal("downloaded bundle differs from stored bundle")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"provider":"synthetic"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}
