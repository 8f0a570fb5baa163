package genai

import (
	"strings"

	"github.com/rs/zerolog"
)

// Settings selects and configures the generation provider.
type Settings struct {
	Provider  string
	Gemini    GeminiOptions
	OpenAI    OpenAIOptions
	Anthropic AnthropicOptions
}

// NewProvider returns the configured provider. A provider without an API key
// degrades to the synthetic one so local runs keep working.
func NewProvider(s Settings, logger zerolog.Logger) Provider {
	name := strings.ToLower(strings.TrimSpace(s.Provider))
	var (
		p   Provider
		key string
	)
	switch name {
	case "gemini", "":
		p, key = NewGemini(s.Gemini), s.Gemini.APIKey
	case "openai":
		p, key = NewOpenAI(s.OpenAI), s.OpenAI.APIKey
	case "anthropic":
		p, key = NewAnthropic(s.Anthropic), s.Anthropic.APIKey
	case "synthetic":
		return NewSynthetic()
	default:
		logger.Warn().Str("provider", name).Msg("genai: unknown provider, using synthetic content")
		return NewSynthetic()
	}
	if strings.TrimSpace(key) == "" {
		logger.Warn().Str("provider", p.Name()).Msg("genai: no api key configured, using synthetic content")
		return NewSynthetic()
	}
	return p
}
