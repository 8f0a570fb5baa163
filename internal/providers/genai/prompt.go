package genai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt is one structured request to the generation service.
type Prompt struct {
	// Task names the pipeline stage or "compress".
	Task        string
	System      string
	Instruction string
	// Input is the JSON document the instruction refers to.
	Input json.RawMessage
	// Schema is a JSON schema the response must satisfy.
	Schema      string
	Temperature float64
	MaxTokens   int
}

const TaskCompress = "compress"

// NewPrompt encodes input and returns a prompt for task.
func NewPrompt(task, system, instruction string, input any, schema string) (Prompt, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return Prompt{}, fmt.Errorf("encode %s input: %w", task, err)
	}
	return Prompt{
		Task:        task,
		System:      system,
		Instruction: instruction,
		Input:       raw,
		Schema:      schema,
		Temperature: 0.4,
		MaxTokens:   4096,
	}, nil
}

// UserMessage renders the instruction, input and schema as one message for
// chat style providers.
func (p Prompt) UserMessage() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Instruction))
	if len(p.Input) > 0 {
		b.WriteString("\n\nInput:\n")
		b.Write(p.Input)
	}
	if p.Schema != "" {
		b.WriteString("\n\nRespond only with JSON matching this schema:\n")
		b.WriteString(p.Schema)
	}
	return b.String()
}

func (p Prompt) systemMessage() string {
	if s := strings.TrimSpace(p.System); s != "" {
		return s
	}
	return "You are a presentation writer. You only respond with valid JSON."
}

// Decode parses a provider response into T. Code fences and prose around the
// JSON body are tolerated; anything else is malformed.
func Decode[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, malformed("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, malformed("decode payload: %v", err)
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
