package genai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"deckgen/internal/domain"
)

// Synthetic answers every stage locally with deterministic content derived
// from the prompt input. It keeps the pipeline runnable without provider
// credentials.
type Synthetic struct{}

func NewSynthetic() *Synthetic { return &Synthetic{} }

func (Synthetic) Name() string { return "synthetic" }

var synthTitle = cases.Title(language.English)

var synthSections = []struct {
	title  string
	points []string
}{
	{"Where We Stand Today", []string{"Current landscape of {topic}", "Main forces shaping {topic}", "Why {topic} matters now"}},
	{"Key Numbers", []string{"Adoption grew 35% over three years", "Costs fell by 20% since 2020", "45% of leaders plan new investment"}},
	{"Opportunities", []string{"New markets opened by {topic}", "Efficiency gains across teams", "Partnerships that speed delivery"}},
	{"Risks and Challenges", []string{"Regulatory uncertainty around {topic}", "Skills gaps in delivery teams", "Integration with legacy systems"}},
	{"Roadmap", []string{"Quick wins in the first quarter", "Scale pilots that prove value", "Measure outcomes and adjust"}},
}

var synthPalettes = map[domain.Template][]string{
	domain.TemplateCorporate: {"#1F3A5F", "#4F6D8F", "#E8EEF4", "#F2A541"},
	domain.TemplateAcademic:  {"#2E2E2E", "#5B6C5D", "#F5F1E8", "#A23E48"},
	domain.TemplateStartup:   {"#6C3CE1", "#FF6B6B", "#FFF8F0", "#1B998B"},
	domain.TemplateMinimal:   {"#111111", "#777777", "#FFFFFF", "#0A84FF"},
}

func (s Synthetic) Complete(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out any
	var err error
	switch p.Task {
	case string(domain.JobStatusOutline):
		out, err = decodeThen(p.Input, s.outline)
	case string(domain.JobStatusContent):
		out, err = decodeThen(p.Input, s.content)
	case string(domain.JobStatusCharts):
		out = ChartsOutput{Charts: []ChartProposal{}}
	case string(domain.JobStatusLayout):
		out = LayoutOutput{Layouts: []LayoutChoice{}}
	case string(domain.JobStatusDesign):
		out, err = decodeThen(p.Input, s.design)
	case string(domain.JobStatusImages):
		out, err = decodeThen(p.Input, s.images)
	case string(domain.JobStatusReview):
		out, err = decodeThen(p.Input, s.review)
	case TaskCompress:
		out, err = decodeThen(p.Input, s.compress)
	default:
		return "", malformed("synthetic provider has no answer for task %q", p.Task)
	}
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode synthetic response: %w", err)
	}
	return string(raw), nil
}

func decodeThen[In any, Out any](raw json.RawMessage, fn func(In) Out) (Out, error) {
	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		var zero Out
		return zero, malformed("synthetic input: %v", err)
	}
	return fn(in), nil
}

func (Synthetic) outline(in OutlineInput) domain.Outline {
	n := (in.SlideCount - 2) / 2
	if n < 2 {
		n = 2
	}
	if n > len(synthSections) {
		n = len(synthSections)
	}
	topic := strings.TrimSpace(in.Topic)
	o := domain.Outline{Title: synthTitle.String(topic)}
	for i := 0; i < n; i++ {
		sec := synthSections[i]
		points := make([]string, len(sec.points))
		for j, pt := range sec.points {
			points[j] = strings.ReplaceAll(pt, "{topic}", topic)
		}
		weight := 1.0
		if i == 0 || i == n-1 {
			weight = 1.5
		}
		o.Sections = append(o.Sections, domain.Section{
			Title:       sec.title,
			Description: fmt.Sprintf("%s for %s audiences", sec.title, in.Audience),
			KeyPoints:   points,
			Weight:      weight,
		})
	}
	return o
}

func (Synthetic) content(in ContentInput) ContentOutput {
	out := ContentOutput{Slides: make([]domain.SlideSpec, 0, len(in.Slides))}
	for _, b := range in.Slides {
		spec := domain.SlideSpec{Title: b.Title, Kind: b.Kind, Role: b.Role, Section: b.Section}
		points := b.KeyPoints
		if len(points) == 0 {
			points = []string{b.Title + " at a glance", "What it means for " + in.Topic, "Next steps"}
		}
		switch b.Kind {
		case domain.SlideKindTitle, domain.SlideKindSection:
			spec.Subtitle = fmt.Sprintf("%s briefing", synthTitle.String(string(in.Audience)))
		case domain.SlideKindNarrative:
			spec.Paragraph = strings.Join(points, ". ") + "."
		case domain.SlideKindQuote:
			spec.Quote = &domain.Quote{Text: points[0], Attribution: "Industry analyst"}
		case domain.SlideKindTimeline:
			for i, pt := range points {
				spec.Timeline = append(spec.Timeline, domain.TimelineEvent{Label: fmt.Sprintf("Phase %d", i+1), Text: pt})
			}
		case domain.SlideKindTwoColumn, domain.SlideKindComparison:
			half := (len(points) + 1) / 2
			spec.Columns = []domain.Column{
				{Heading: "Today", Bullets: append([]string(nil), points[:half]...)},
				{Heading: "Tomorrow", Bullets: append([]string(nil), points[half:]...)},
			}
		case domain.SlideKindTable:
			t := &domain.Table{Headers: []string{"Point", "Detail"}}
			for i, pt := range points {
				t.Rows = append(t.Rows, []string{fmt.Sprintf("%d", i+1), pt})
			}
			spec.Table = t
		case domain.SlideKindImageText:
			spec.Paragraph = points[0]
			spec.ImageDescription = "Photo illustrating " + strings.ToLower(b.Title)
		default:
			spec.Bullets = append([]string(nil), points...)
		}
		out.Slides = append(out.Slides, spec)
	}
	return out
}

func (Synthetic) design(in DesignInput) DesignOutput {
	palette, ok := synthPalettes[in.Template]
	if !ok {
		palette = synthPalettes[domain.TemplateCorporate]
	}
	return DesignOutput{
		Theme:                 domain.Theme{Palette: append([]string(nil), palette...), FontFamily: "Inter"},
		BackgroundDescription: fmt.Sprintf("Abstract %s background for %s (%s)", in.Template, in.Topic, seedOf(in.Topic)),
	}
}

func (Synthetic) images(in ImagesInput) ImagesOutput {
	out := ImagesOutput{Images: []ImageProposal{}}
	for _, d := range in.Slides {
		out.Images = append(out.Images, ImageProposal{Index: d.Index, Description: "Illustration of " + strings.ToLower(d.Title)})
	}
	return out
}

func (Synthetic) review(in ReviewInput) ReviewOutput {
	out := ReviewOutput{Slides: []ReviewEdit{}}
	for _, d := range in.Slides {
		out.Slides = append(out.Slides, ReviewEdit{Index: d.Index, Notes: fmt.Sprintf("Walk the audience through %s.", strings.ToLower(d.Title))})
	}
	return out
}

// compress keeps whole words until the next one would exceed the limit.
func (Synthetic) compress(in CompressInput) CompressOutput {
	var b strings.Builder
	for _, w := range strings.Fields(in.Text) {
		if b.Len()+len(w)+1 > in.MaxLength {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return CompressOutput{Text: b.String()}
}

func seedOf(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:8]
}
