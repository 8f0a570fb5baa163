package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deckgen/internal/domain"
)

// Provider is one backend able to answer a structured prompt with text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Service is the content generation service used by the pipeline. It also
// serves as the compression delegate of the fit engine.
type Service struct {
	provider Provider
	logger   zerolog.Logger
}

func NewService(provider Provider, logger zerolog.Logger) *Service {
	return &Service{provider: provider, logger: logger}
}

func (s *Service) Provider() string {
	return s.provider.Name()
}

// Generate runs prompt for stage and returns the raw response text.
func (s *Service) Generate(ctx context.Context, stage domain.JobStatus, p Prompt) (string, error) {
	p.Task = string(stage)
	start := time.Now()
	out, err := s.provider.Complete(ctx, p)
	evt := s.logger.Debug()
	if err != nil {
		evt = s.logger.Warn().Err(err).Bool("transient", IsTransient(err))
	}
	evt.Str("provider", s.provider.Name()).
		Str("stage", string(stage)).
		Dur("took", time.Since(start)).
		Int("response_chars", len(out)).
		Msg("genai: generate")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", malformed("%s returned an empty response", s.provider.Name())
	}
	return out, nil
}

// Compress asks the provider for a shorter rendition of text.
func (s *Service) Compress(ctx context.Context, text string, max int) (string, error) {
	p, err := NewPrompt(TaskCompress,
		"You shorten presentation text without losing its meaning. You only respond with valid JSON.",
		fmt.Sprintf("Rewrite the text in at most %d characters. Keep numbers and names.", max),
		CompressInput{Text: text, MaxLength: max},
		`{"text":string}`,
	)
	if err != nil {
		return "", err
	}
	p.Temperature = 0.2
	raw, err := s.provider.Complete(ctx, p)
	if err != nil {
		return "", err
	}
	out, err := Decode[CompressOutput](raw)
	if err != nil {
		return "", err
	}
	short := strings.TrimSpace(out.Text)
	if short == "" {
		return "", malformed("compress returned empty text")
	}
	return short, nil
}
