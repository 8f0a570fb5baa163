package pipeline

import (
	"fmt"
	"math"
	"strings"

	"deckgen/internal/domain"
	"deckgen/internal/providers/genai"
)

// reservedSlides are the title and conclusion slides wrapped around the
// section content.
const reservedSlides = 2

// Allocate splits total slides across sections in proportion to weights. Every
// section gets at least one slide and the rounding remainder goes to the
// highest weight, earliest on ties, so the result always sums to total.
// total must be at least len(weights).
func Allocate(weights []float64, total int) []int {
	n := len(weights)
	if n == 0 || total < n {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}

	var sum float64
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	spare := total - n
	if spare == 0 {
		return out
	}

	given := 0
	if sum > 0 {
		for i, w := range weights {
			if w <= 0 {
				continue
			}
			share := int(math.Floor(float64(spare) * w / sum))
			out[i] += share
			given += share
		}
	}
	out[heaviest(weights)] += spare - given
	return out
}

func heaviest(weights []float64) int {
	best := 0
	for i, w := range weights {
		if w > weights[best] {
			best = i
		}
	}
	return best
}

// mergeSections folds the lightest section into a neighbour until at most max
// remain. Order is kept; the lighter neighbour absorbs it so weight stays
// spread out.
func mergeSections(sections []domain.Section, max int) []domain.Section {
	out := make([]domain.Section, len(sections))
	copy(out, sections)
	for len(out) > max && len(out) > 1 {
		low := 0
		for i, s := range out {
			if s.Weight < out[low].Weight {
				low = i
			}
		}
		into := low - 1
		if low == 0 || (low+1 < len(out) && out[low+1].Weight < out[low-1].Weight) {
			into = low + 1
		}
		first, second := out[into], out[low]
		if low < into {
			first, second = second, first
		}
		merged := domain.Section{
			Title:          first.Title + " & " + second.Title,
			Description:    strings.TrimSpace(first.Description + " " + second.Description),
			KeyPoints:      append(append([]string(nil), first.KeyPoints...), second.KeyPoints...),
			Weight:         first.Weight + second.Weight,
			SuggestedKinds: append(append([]domain.SlideKind(nil), first.SuggestedKinds...), second.SuggestedKinds...),
		}
		out[into] = merged
		out = append(out[:low], out[low+1:]...)
	}
	return out
}

// detailKinds is the rotation used for section slides when the outline does
// not suggest a usable kind. Chart slides come only from the charts stage.
var detailKinds = []domain.SlideKind{
	domain.SlideKindBullets,
	domain.SlideKindTwoColumn,
	domain.SlideKindNarrative,
	domain.SlideKindImageText,
	domain.SlideKindTimeline,
	domain.SlideKindComparison,
	domain.SlideKindTable,
	domain.SlideKindQuote,
}

// structure is the analyze stage result: the sections that survived merging,
// their allocation and one brief per slide of the deck.
type structure struct {
	Sections   []domain.Section   `json:"sections"`
	Allocation []int              `json:"allocation"`
	Slides     []genai.SlideBrief `json:"slides"`
}

// buildStructure lays out slideCount slides: a title slide, the allocated
// section slides and a closing summary.
func buildStructure(outline domain.Outline, topic string, slideCount int) (structure, error) {
	available := slideCount - reservedSlides
	if available < 1 {
		return structure{}, fmt.Errorf("slide count %d leaves no room for content", slideCount)
	}
	sections := mergeSections(outline.Sections, available)
	weights := make([]float64, len(sections))
	for i, s := range sections {
		weights[i] = s.Weight
	}
	alloc := Allocate(weights, available)

	title := strings.TrimSpace(outline.Title)
	if title == "" {
		title = topic
	}
	st := structure{Sections: sections, Allocation: alloc}
	st.Slides = append(st.Slides, genai.SlideBrief{
		Title: title,
		Role:  domain.SlideRoleTitle,
		Kind:  domain.SlideKindTitle,
	})

	rotation := 0
	var summary []string
	for i, sec := range sections {
		points := sec.KeyPoints
		if len(points) > 0 {
			summary = append(summary, points[0])
		}
		for j := 0; j < alloc[i]; j++ {
			share, fresh := slicePoints(points, j, alloc[i])
			brief := genai.SlideBrief{
				Section:   sec.Title,
				Role:      domain.SlideRoleDetail,
				KeyPoints: share,
			}
			switch {
			case j == 0:
				brief.Title = sec.Title
				brief.Role = domain.SlideRoleOutline
			case fresh:
				brief.Title = share[0]
			default:
				brief.Title = fmt.Sprintf("%s (%d/%d)", sec.Title, j+1, alloc[i])
			}
			brief.Kind = suggestedKind(sec, j)
			if brief.Kind == "" {
				brief.Kind = detailKinds[rotation%len(detailKinds)]
				rotation++
			}
			st.Slides = append(st.Slides, brief)
		}
	}

	st.Slides = append(st.Slides, genai.SlideBrief{
		Title:     "Conclusion",
		Role:      domain.SlideRoleSummary,
		Kind:      domain.SlideKindBullets,
		KeyPoints: summary,
	})
	for i := range st.Slides {
		st.Slides[i].Index = i
	}
	return st, nil
}

// slicePoints hands slide j of n its share of the section key points. fresh
// is false when the points ran out and the last one is repeated.
func slicePoints(points []string, j, n int) (share []string, fresh bool) {
	if len(points) == 0 {
		return nil, false
	}
	if n <= 1 {
		return append([]string(nil), points...), true
	}
	per := (len(points) + n - 1) / n
	start := j * per
	if start >= len(points) {
		return []string{points[len(points)-1]}, false
	}
	end := min(start+per, len(points))
	return append([]string(nil), points[start:end]...), true
}

func suggestedKind(sec domain.Section, j int) domain.SlideKind {
	if j >= len(sec.SuggestedKinds) {
		return ""
	}
	k := sec.SuggestedKinds[j]
	if !k.Content() || k == domain.SlideKindChart {
		return ""
	}
	return k
}
