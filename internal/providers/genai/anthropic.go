package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

type AnthropicOptions struct {
	APIKey string
	Model  string
}

// Anthropic sends prompts through llmkit. The schema is carried inside the
// user message since the stage schemas are descriptive, not JSON Schema.
type Anthropic struct {
	apiKey string
	model  string
	call   func(system, user, schema, apiKey string, settings types.RequestSettings) (string, error)
}

func NewAnthropic(opts AnthropicOptions) *Anthropic {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &Anthropic{
		apiKey: strings.TrimSpace(opts.APIKey),
		model:  model,
		call:   promptAnthropic,
	}
}

func promptAnthropic(system, user, schema, apiKey string, settings types.RequestSettings) (string, error) {
	response, err := anthropic.PromptWithSettings(system, user, schema, apiKey, settings)
	if err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", malformed("anthropic returned no content")
	}
	return response.Content[0].Text, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

// Complete runs the blocking llmkit call in its own goroutine so ctx
// cancellation and attempt timeouts still apply.
func (a *Anthropic) Complete(ctx context.Context, p Prompt) (string, error) {
	settings := types.RequestSettings{
		Model:       a.model,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := a.call(p.systemMessage(), p.UserMessage(), "", a.apiKey, settings)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", classifyAnthropicError(res.err)
		}
		text := strings.TrimSpace(res.text)
		if text == "" {
			return "", malformed("anthropic returned empty text")
		}
		return text, nil
	}
}

// classifyAnthropicError maps llmkit's plain errors onto the transient and
// malformed sentinels using the status text they carry.
func classifyAnthropicError(err error) error {
	if IsTransient(err) || errors.Is(err, ErrMalformed) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"400", "401", "403", "404", "422", "invalid_request", "authentication", "permission"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: anthropic: %v", ErrMalformed, err)
		}
	}
	return fmt.Errorf("%w: anthropic: %v", ErrTransient, err)
}
