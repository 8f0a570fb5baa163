package domain

// SlideKind is the layout variant of a slide body.
type SlideKind string

const (
	SlideKindTitle      SlideKind = "title"
	SlideKindSection    SlideKind = "section"
	SlideKindBullets    SlideKind = "bullets"
	SlideKindTwoColumn  SlideKind = "two_column"
	SlideKindComparison SlideKind = "comparison"
	SlideKindQuote      SlideKind = "quote"
	SlideKindTimeline   SlideKind = "timeline"
	SlideKindNarrative  SlideKind = "narrative"
	SlideKindImageText  SlideKind = "image_text"
	SlideKindTable      SlideKind = "table"
	SlideKindChart      SlideKind = "chart"
)

var bodyKinds = map[SlideKind]struct{}{
	SlideKindBullets:    {},
	SlideKindTwoColumn:  {},
	SlideKindComparison: {},
	SlideKindQuote:      {},
	SlideKindTimeline:   {},
	SlideKindNarrative:  {},
	SlideKindImageText:  {},
	SlideKindTable:      {},
	SlideKindChart:      {},
}

// Valid reports whether k is a known slide kind.
func (k SlideKind) Valid() bool {
	if k == SlideKindTitle || k == SlideKindSection {
		return true
	}
	_, ok := bodyKinds[k]
	return ok
}

// Content reports whether k carries a content body, as opposed to the title
// and section divider kinds.
func (k SlideKind) Content() bool {
	_, ok := bodyKinds[k]
	return ok
}

// SlideRole tells where a slide sits in the deck narrative.
type SlideRole string

const (
	SlideRoleTitle   SlideRole = "title"
	SlideRoleOutline SlideRole = "outline"
	SlideRoleDetail  SlideRole = "detail"
	SlideRoleSummary SlideRole = "summary"
)

// ChartType enumerates supported chart renderings.
type ChartType string

const (
	ChartTypeBar     ChartType = "bar"
	ChartTypeLine    ChartType = "line"
	ChartTypePie     ChartType = "pie"
	ChartTypeArea    ChartType = "area"
	ChartTypeScatter ChartType = "scatter"
)

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	switch t {
	case ChartTypeBar, ChartTypeLine, ChartTypePie, ChartTypeArea, ChartTypeScatter:
		return true
	}
	return false
}

// FontSize is the discrete text size bucket handed to the renderer.
type FontSize string

const (
	FontSizeLarge  FontSize = "large"
	FontSizeMedium FontSize = "medium"
	FontSizeSmall  FontSize = "small"
)

// Section is one entry of the outline.
type Section struct {
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	KeyPoints      []string    `json:"key_points"`
	Weight         float64     `json:"weight"`
	SuggestedKinds []SlideKind `json:"suggested_kinds,omitempty"`
}

// Outline is produced once per job by the outline stage.
type Outline struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

type Column struct {
	Heading string   `json:"heading"`
	Bullets []string `json:"bullets"`
}

type Quote struct {
	Text        string `json:"text"`
	Attribution string `json:"attribution,omitempty"`
}

type TimelineEvent struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

type Chart struct {
	Type       ChartType `json:"type"`
	Title      string    `json:"title,omitempty"`
	Categories []string  `json:"categories"`
	Series     []Series  `json:"series"`
}

// SlideSpec is the structural description of one slide.
type SlideSpec struct {
	Title              string          `json:"title"`
	Subtitle           string          `json:"subtitle,omitempty"`
	Kind               SlideKind       `json:"kind"`
	Role               SlideRole       `json:"role"`
	Section            string          `json:"section,omitempty"`
	KeyPoints          []string        `json:"key_points,omitempty"`
	Bullets            []string        `json:"bullets,omitempty"`
	Paragraph          string          `json:"paragraph,omitempty"`
	Columns            []Column        `json:"columns,omitempty"`
	Quote              *Quote          `json:"quote,omitempty"`
	Timeline           []TimelineEvent `json:"timeline,omitempty"`
	Table              *Table          `json:"table,omitempty"`
	Chart              *Chart          `json:"chart,omitempty"`
	ImageDescription   string          `json:"image_description,omitempty"`
	ImageRef           string          `json:"image_ref,omitempty"`
	BackgroundImageRef string          `json:"background_image_ref,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	FontSize           FontSize        `json:"font_size,omitempty"`
	FontPoints         int             `json:"font_points,omitempty"`
}

// Theme carries the design stage decisions.
type Theme struct {
	Palette    []string `json:"palette,omitempty"`
	FontFamily string   `json:"font_family,omitempty"`
	Background string   `json:"background,omitempty"`
}

// Deck is the ordered slide model for one job.
type Deck struct {
	JobID    string      `json:"job_id,omitempty"`
	Title    string      `json:"title"`
	Template Template    `json:"template"`
	Theme    Theme       `json:"theme"`
	Slides   []SlideSpec `json:"slides"`
}

// Clone returns a deep copy of the deck.
func (d Deck) Clone() Deck {
	out := d
	out.Theme.Palette = cloneStrings(d.Theme.Palette)
	out.Slides = make([]SlideSpec, len(d.Slides))
	for i, s := range d.Slides {
		out.Slides[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the slide.
func (s SlideSpec) Clone() SlideSpec {
	out := s
	out.KeyPoints = cloneStrings(s.KeyPoints)
	out.Bullets = cloneStrings(s.Bullets)
	if s.Columns != nil {
		out.Columns = make([]Column, len(s.Columns))
		for i, c := range s.Columns {
			out.Columns[i] = Column{Heading: c.Heading, Bullets: cloneStrings(c.Bullets)}
		}
	}
	if s.Quote != nil {
		q := *s.Quote
		out.Quote = &q
	}
	if s.Timeline != nil {
		out.Timeline = append([]TimelineEvent(nil), s.Timeline...)
	}
	if s.Table != nil {
		t := Table{Headers: cloneStrings(s.Table.Headers)}
		if s.Table.Rows != nil {
			t.Rows = make([][]string, len(s.Table.Rows))
			for i, r := range s.Table.Rows {
				t.Rows[i] = cloneStrings(r)
			}
		}
		out.Table = &t
	}
	if s.Chart != nil {
		c := *s.Chart
		c.Categories = cloneStrings(s.Chart.Categories)
		if s.Chart.Series != nil {
			c.Series = make([]Series, len(s.Chart.Series))
			for i, sr := range s.Chart.Series {
				c.Series[i] = Series{Name: sr.Name, Values: append([]float64(nil), sr.Values...)}
			}
		}
		out.Chart = &c
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
