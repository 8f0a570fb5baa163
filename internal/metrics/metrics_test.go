package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"deckgen/internal/domain"
)

func TestJobChangedTracksTransitionsAndInFlight(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.JobChanged(ctx, "", domain.Job{ID: "a", Status: domain.JobStatusReceived})
	m.JobChanged(ctx, "", domain.Job{ID: "b", Status: domain.JobStatusReceived})
	m.JobChanged(ctx, domain.JobStatusReceived, domain.Job{ID: "a", Status: domain.JobStatusOutline})
	m.JobChanged(ctx, domain.JobStatusOutline, domain.Job{ID: "a", Status: domain.JobStatusError})

	if got := testutil.ToFloat64(m.JobTransitions.WithLabelValues("received")); got != 2 {
		t.Fatalf("received transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.JobTransitions.WithLabelValues("error")); got != 1 {
		t.Fatalf("error transitions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.JobsInFlight); got != 1 {
		t.Fatalf("in flight = %v, want 1", got)
	}
}

func TestStageAndHTTPObservations(t *testing.T) {
	m := New()
	m.StageFinished(domain.JobStatusContent, 2*time.Second, nil)
	m.StageFinished(domain.JobStatusContent, time.Second, errors.New("boom"))
	m.ObserveHTTP(http.MethodPost, "/v1/decks", http.StatusCreated, 5*time.Millisecond)

	if got := testutil.CollectAndCount(m.StageDuration); got != 2 {
		t.Fatalf("stage series = %d, want 2", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/decks", "201")); got != 1 {
		t.Fatalf("http requests = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"deckgen_stage_duration_seconds", "deckgen_http_requests_total", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Fatalf("scrape output lacks %s", name)
		}
	}
}
