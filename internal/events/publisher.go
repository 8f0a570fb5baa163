// Package events publishes job lifecycle changes to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"deckgen/internal/domain"
)

// JobEvent is the payload published for every committed job change.
type JobEvent struct {
	JobID       string           `json:"job_id"`
	Status      domain.JobStatus `json:"status"`
	Previous    domain.JobStatus `json:"previous,omitempty"`
	Progress    int              `json:"progress"`
	Step        string           `json:"step"`
	ArtifactRef string           `json:"artifact_ref,omitempty"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	At          time.Time        `json:"at"`
}

// Publisher delivers job events.
type Publisher interface {
	Publish(ctx context.Context, ev JobEvent) error
	Close() error
}

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON job events keyed by job id, so every event of one
// job lands on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher writes asynchronously; delivery failures surface in the
// completion log rather than as Publish errors.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	l := logger.With().Str("component", "kafka-publisher").Str("topic", topic).Logger()
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				l.Warn().Err(err).Int("messages", len(msgs)).Msg("events: delivery failed")
			}
		},
	}
	return newKafkaPublisher(w, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "kafka-publisher").Str("topic", topic).Logger(),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev JobEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.JobID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(ev.Status)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to kafka: %w", err)
	}
	p.logger.Debug().Str("job_id", ev.JobID).Str("status", string(ev.Status)).Int("value_size", len(value)).Msg("events: published")
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, JobEvent) error { return nil }
func (NopPublisher) Close() error                            { return nil }

// Observer forwards job changes to a Publisher from its own goroutine, so a
// slow or unreachable broker never delays the job write that triggered the
// event. Delivery is best effort: when the queue is full the event is dropped
// and a failed publish is logged. Events leave in commit order.
type Observer struct {
	pub     Publisher
	timeout time.Duration
	logger  zerolog.Logger

	queue chan JobEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

const defaultQueueSize = 256

func NewObserver(pub Publisher, logger zerolog.Logger) *Observer {
	return newObserver(pub, logger, defaultQueueSize)
}

func newObserver(pub Publisher, logger zerolog.Logger, size int) *Observer {
	o := &Observer{
		pub:     pub,
		timeout: 2 * time.Second,
		logger:  logger,
		queue:   make(chan JobEvent, size),
		done:    make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Observer) JobChanged(_ context.Context, prev domain.JobStatus, job domain.Job) {
	ev := JobEvent{
		JobID:       job.ID,
		Status:      job.Status,
		Previous:    prev,
		Progress:    job.Progress,
		Step:        job.CurrentStep,
		ArtifactRef: job.ArtifactRef,
		ErrorDetail: job.ErrorDetail,
		At:          job.UpdatedAt,
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- ev:
	default:
		o.logger.Warn().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("events: queue full, event dropped")
	}
}

func (o *Observer) run() {
	defer close(o.done)
	for ev := range o.queue {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		err := o.pub.Publish(ctx, ev)
		cancel()
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", ev.JobID).Str("status", string(ev.Status)).Msg("events: publish failed")
		}
	}
}

// Close stops accepting events and waits for the queued ones to be handed to
// the publisher, or for ctx to end.
func (o *Observer) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
