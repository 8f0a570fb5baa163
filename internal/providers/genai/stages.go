package genai

import "deckgen/internal/domain"

// Payload shapes exchanged with the generation service, one pair per stage.

type OutlineInput struct {
	Topic      string          `json:"topic"`
	Audience   domain.Audience `json:"audience"`
	Template   domain.Template `json:"template"`
	Locale     string          `json:"locale"`
	SlideCount int             `json:"slide_count"`
}

// SlideBrief describes one planned slide to the content stage.
type SlideBrief struct {
	Index     int              `json:"index"`
	Title     string           `json:"title"`
	Section   string           `json:"section"`
	Role      domain.SlideRole `json:"role"`
	Kind      domain.SlideKind `json:"kind"`
	KeyPoints []string         `json:"key_points,omitempty"`
}

type ContentInput struct {
	Topic    string          `json:"topic"`
	Audience domain.Audience `json:"audience"`
	Locale   string          `json:"locale"`
	Slides   []SlideBrief    `json:"slides"`
}

type ContentOutput struct {
	Slides []domain.SlideSpec `json:"slides"`
}

// SlideDigest is a compact view of an already drafted slide.
type SlideDigest struct {
	Index int              `json:"index"`
	Title string           `json:"title"`
	Kind  domain.SlideKind `json:"kind"`
	Text  string           `json:"text"`
}

type ChartsInput struct {
	Topic      string             `json:"topic"`
	ChartTypes []domain.ChartType `json:"chart_types"`
	Slides     []SlideDigest      `json:"slides"`
}

type ChartProposal struct {
	Index int          `json:"index"`
	Chart domain.Chart `json:"chart"`
}

type ChartsOutput struct {
	Charts []ChartProposal `json:"charts"`
}

type LayoutInput struct {
	Template domain.Template    `json:"template"`
	Kinds    []domain.SlideKind `json:"kinds"`
	Slides   []SlideDigest      `json:"slides"`
}

type LayoutChoice struct {
	Index int              `json:"index"`
	Kind  domain.SlideKind `json:"kind"`
}

type LayoutOutput struct {
	Layouts []LayoutChoice `json:"layouts"`
}

type DesignInput struct {
	Topic    string          `json:"topic"`
	Audience domain.Audience `json:"audience"`
	Template domain.Template `json:"template"`
}

type DesignOutput struct {
	Theme                 domain.Theme `json:"theme"`
	BackgroundDescription string       `json:"background_description"`
}

type ImagesInput struct {
	Topic  string        `json:"topic"`
	Slides []SlideDigest `json:"slides"`
}

type ImageProposal struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

type ImagesOutput struct {
	Images []ImageProposal `json:"images"`
}

type ReviewInput struct {
	Topic    string          `json:"topic"`
	Audience domain.Audience `json:"audience"`
	Slides   []SlideDigest   `json:"slides"`
}

type ReviewEdit struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
	Notes string `json:"notes,omitempty"`
}

type ReviewOutput struct {
	Slides []ReviewEdit `json:"slides"`
}

type CompressInput struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
}

type CompressOutput struct {
	Text string `json:"text"`
}
