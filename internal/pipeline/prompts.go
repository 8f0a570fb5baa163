package pipeline

import (
	"fmt"

	"deckgen/internal/domain"
	"deckgen/internal/providers/genai"
)

type stagePrompt struct {
	system      string
	instruction string
	schema      string
}

const systemBase = "You are a presentation strategist who writes clear, audience-aware slide decks. You only respond with valid JSON."

var stagePrompts = map[domain.JobStatus]stagePrompt{
	domain.JobStatusOutline: {
		system:      systemBase,
		instruction: "Plan the sections of a deck on the topic. Give each section 2-4 key points and a relative weight between 0.5 and 2 reflecting how much time it deserves.",
		schema:      `{"title":string,"sections":[{"title":string,"description":string,"key_points":[string],"weight":number,"suggested_kinds":[string]}]}`,
	},
	domain.JobStatusContent: {
		system:      systemBase,
		instruction: "Write the body of every listed slide. Keep the given index order and kind. Fill only the fields the kind needs: bullets, paragraph, columns, quote, timeline, table or image_description.",
		schema:      `{"slides":[{"title":string,"kind":string,"bullets":[string],"paragraph":string,"columns":[{"heading":string,"bullets":[string]}],"quote":{"text":string,"attribution":string},"timeline":[{"label":string,"text":string}],"table":{"headers":[string],"rows":[[string]]},"image_description":string}]}`,
	},
	domain.JobStatusCharts: {
		system:      systemBase,
		instruction: "Propose charts only for slides whose text carries numbers worth plotting. Every series needs one value per category.",
		schema:      `{"charts":[{"index":number,"chart":{"type":string,"title":string,"categories":[string],"series":[{"name":string,"values":[number]}]}}]}`,
	},
	domain.JobStatusLayout: {
		system:      systemBase,
		instruction: "Choose the best layout kind for each slide from the allowed kinds. Omit slides whose layout already fits.",
		schema:      `{"layouts":[{"index":number,"kind":string}]}`,
	},
	domain.JobStatusDesign: {
		system:      systemBase,
		instruction: "Pick a colour palette of four hex colours and one font family matching the template and audience, and describe a subtle title background image.",
		schema:      `{"theme":{"palette":[string],"font_family":string},"background_description":string}`,
	},
	domain.JobStatusImages: {
		system:      systemBase,
		instruction: "Describe one illustrative image for each listed slide. Descriptions must be concrete and free of text overlays.",
		schema:      `{"images":[{"index":number,"description":string}]}`,
	},
	domain.JobStatusReview: {
		system:      systemBase,
		instruction: "Review the deck as an editor. Tighten weak titles and write two or three sentences of speaker notes per slide.",
		schema:      `{"slides":[{"index":number,"title":string,"notes":string}]}`,
	},
}

func buildPrompt(stage domain.JobStatus, locale string, input any) (genai.Prompt, error) {
	sp, ok := stagePrompts[stage]
	if !ok {
		return genai.Prompt{}, fmt.Errorf("no prompt for stage %s", stage)
	}
	instruction := sp.instruction
	if locale != "" && locale != "en" {
		instruction += fmt.Sprintf(" Write all slide text in the language tagged %q.", locale)
	}
	return genai.NewPrompt(string(stage), sp.system, instruction, input, sp.schema)
}
