package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"deckgen/internal/adapter/repo"
	"deckgen/internal/domain"
	"deckgen/internal/jobs"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
	// release, when set, holds every write until it is closed.
	release chan struct{}
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.release != nil {
		<-w.release
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func closeObserver(t *testing.T, obs *Observer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := obs.Close(ctx); err != nil {
		t.Fatalf("observer Close: %v", err)
	}
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestObserverPublishesKeyedEvents(t *testing.T) {
	w := &fakeWriter{}
	pub := newKafkaPublisher(w, "deck-jobs", zerolog.Nop())
	obs := NewObserver(pub, zerolog.Nop())

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	obs.JobChanged(context.Background(), domain.JobStatusReceived, domain.Job{
		ID:          "job-1",
		Status:      domain.JobStatusOutline,
		Progress:    10,
		CurrentStep: "Outline ready with 3 sections",
		UpdatedAt:   at,
	})
	closeObserver(t, obs)

	msgs := w.written()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if string(msg.Key) != "job-1" {
		t.Fatalf("key = %q", msg.Key)
	}
	var ev JobEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if ev.Status != domain.JobStatusOutline || ev.Previous != domain.JobStatusReceived || ev.Progress != 10 || !ev.At.Equal(at) {
		t.Fatalf("event = %+v", ev)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "outline" {
		t.Fatalf("headers = %+v", msg.Headers)
	}

	if err := pub.Close(); err != nil || !w.closed {
		t.Fatalf("Close = %v, closed = %v", err, w.closed)
	}
}

func TestObserverSwallowsPublishErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	obs := NewObserver(newKafkaPublisher(w, "deck-jobs", zerolog.Nop()), zerolog.Nop())
	obs.JobChanged(context.Background(), "", domain.Job{ID: "job-1", Status: domain.JobStatusReceived})
	closeObserver(t, obs)
	if len(w.written()) != 0 {
		t.Fatal("unexpected message")
	}
}

func TestCreateDoesNotWaitForBroker(t *testing.T) {
	w := &fakeWriter{release: make(chan struct{})}
	obs := NewObserver(newKafkaPublisher(w, "deck-jobs", zerolog.Nop()), zerolog.Nop())
	m := jobs.NewMachine(repo.NewJobRepositoryMemory(), zerolog.Nop(), jobs.WithObservers(obs))

	created := make(chan error, 1)
	go func() {
		job, err := m.Create(context.Background(), domain.DeckRequest{
			Topic:      "Quarterly results",
			SlideCount: 5,
			Audience:   domain.AudienceBusiness,
			Template:   domain.TemplateCorporate,
		})
		if err == nil {
			_, err = m.Advance(context.Background(), job.ID, domain.JobStatusOutline, domain.JobStatusOutline.Progress(), "outline")
		}
		created <- err
	}()

	select {
	case err := <-created:
		if err != nil {
			t.Fatalf("Create/Advance error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Create blocked on a stalled broker")
	}

	close(w.release)
	closeObserver(t, obs)
	msgs := w.written()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	var first, second JobEvent
	if err := json.Unmarshal(msgs[0].Value, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(msgs[1].Value, &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Status != domain.JobStatusReceived || second.Status != domain.JobStatusOutline {
		t.Fatalf("order = %s, %s", first.Status, second.Status)
	}
}

func TestObserverDropsWhenQueueFull(t *testing.T) {
	w := &fakeWriter{release: make(chan struct{})}
	obs := newObserver(newKafkaPublisher(w, "deck-jobs", zerolog.Nop()), zerolog.Nop(), 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			obs.JobChanged(context.Background(), "", domain.Job{ID: "job-1", Status: domain.JobStatusReceived})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("JobChanged blocked on a full queue")
	}

	close(w.release)
	closeObserver(t, obs)
	if n := len(w.written()); n < 1 || n > 2 {
		t.Fatalf("published %d messages, want 1 or 2", n)
	}
}

func TestObserverIgnoresEventsAfterClose(t *testing.T) {
	w := &fakeWriter{}
	obs := NewObserver(newKafkaPublisher(w, "deck-jobs", zerolog.Nop()), zerolog.Nop())
	closeObserver(t, obs)
	obs.JobChanged(context.Background(), "", domain.Job{ID: "job-1", Status: domain.JobStatusReceived})
	closeObserver(t, obs)
	if len(w.written()) != 0 {
		t.Fatal("event published after Close")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), JobEvent{JobID: "x"}); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}
