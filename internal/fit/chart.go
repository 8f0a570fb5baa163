package fit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"deckgen/internal/domain"
)

var (
	numberPattern = regexp.MustCompile(`[-+]?\$?\d[\d,]*(?:\.\d+)?\s?%?`)
	titleCaser    = cases.Title(language.English)
)

var chartKeywords = []string{
	"data", "statistics", "market", "growth", "trend", "comparison",
	"analysis", "result", "performance", "overview", "summary",
}

// quantScore rates how chart-worthy a slide looks. Numbers weigh double.
func quantScore(s domain.SlideSpec) int {
	text := strings.ToLower(strings.Join(slideTexts(s), " "))
	score := 2 * len(numberPattern.FindAllString(text, -1))
	for _, kw := range chartKeywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	return score
}

// pickChartSlide chooses the slide to convert when the deck has no chart.
// It returns -1 only for an empty deck.
func pickChartSlide(slides []domain.SlideSpec) int {
	best, bestScore := -1, 0
	lastContent := -1
	for i, s := range slides {
		if i == 0 || !s.Kind.Content() {
			continue
		}
		lastContent = i
		if score := quantScore(s); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 {
		return best
	}
	if lastContent >= 0 {
		return lastContent
	}
	return len(slides) - 1
}

type dataPoint struct {
	label string
	value float64
	pct   bool
}

// extractPoints pulls labelled numbers out of free text.
func extractPoints(items []string, limit int) []dataPoint {
	var out []dataPoint
	for _, item := range items {
		for _, loc := range numberPattern.FindAllStringIndex(item, -1) {
			raw := strings.TrimSpace(item[loc[0]:loc[1]])
			pct := strings.HasSuffix(raw, "%")
			num := strings.NewReplacer("%", "", "$", "", ",", "", " ", "").Replace(raw)
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				continue
			}
			label := labelNear(item, loc[0], loc[1])
			if label == "" {
				label = fmt.Sprintf("Item %d", len(out)+1)
			}
			out = append(out, dataPoint{label: label, value: v, pct: pct})
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// labelNear takes up to two words before the number, or after it when the
// number leads the sentence.
func labelNear(text string, start, end int) string {
	pick := func(words []string) string {
		var kept []string
		for _, w := range words {
			w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
			if w == "" || len(w) < 3 {
				continue
			}
			kept = append(kept, w)
		}
		if len(kept) == 0 {
			return ""
		}
		return titleCaser.String(strings.Join(kept, " "))
	}
	before := strings.Fields(text[:start])
	if len(before) > 2 {
		before = before[len(before)-2:]
	}
	if l := pick(before); l != "" {
		return l
	}
	after := strings.Fields(text[end:])
	if len(after) > 2 {
		after = after[:2]
	}
	return pick(after)
}

// synthesizeChart builds a minimal chart from whatever the slide says.
func synthesizeChart(s domain.SlideSpec, limit int) *domain.Chart {
	items := allItems(s)
	points := extractPoints(append([]string{s.Title}, items...), limit)
	if len(points) > 0 {
		chart := &domain.Chart{Type: domain.ChartTypeBar, Title: s.Title}
		values := make([]float64, 0, len(points))
		allPct, sum := true, 0.0
		for _, p := range points {
			chart.Categories = append(chart.Categories, p.label)
			values = append(values, p.value)
			allPct = allPct && p.pct
			sum += p.value
		}
		if allPct && len(points) > 1 && sum > 95 && sum < 105 {
			chart.Type = domain.ChartTypePie
		}
		chart.Series = []domain.Series{{Name: seriesName(s.Title), Values: values}}
		return chart
	}

	if len(items) == 0 {
		items = cleanItems(s.KeyPoints)
	}
	if len(items) > limit {
		items = items[:limit]
	}
	chart := &domain.Chart{Type: domain.ChartTypeBar, Title: s.Title}
	values := make([]float64, 0, len(items))
	for i, it := range items {
		chart.Categories = append(chart.Categories, fmt.Sprintf("Point %d", i+1))
		values = append(values, float64(len(strings.Fields(it))))
	}
	if len(values) == 0 {
		chart.Categories = []string{seriesName(s.Title)}
		values = []float64{1}
	}
	chart.Series = []domain.Series{{Name: seriesName(s.Title), Values: values}}
	return chart
}

func seriesName(title string) string {
	if isPlaceholder(title) {
		return "Value"
	}
	return strings.TrimSpace(title)
}

// allItems lists every body string the slide carries regardless of kind.
func allItems(s domain.SlideSpec) []string {
	var items []string
	items = append(items, cleanItems(s.Bullets)...)
	if !isPlaceholder(s.Paragraph) {
		items = append(items, strings.TrimSpace(s.Paragraph))
	}
	for _, c := range s.Columns {
		items = append(items, cleanItems(c.Bullets)...)
	}
	if s.Quote != nil && !isPlaceholder(s.Quote.Text) {
		items = append(items, strings.TrimSpace(s.Quote.Text))
	}
	for _, ev := range s.Timeline {
		if !isPlaceholder(ev.Text) {
			items = append(items, strings.TrimSpace(ev.Label+" "+ev.Text))
		}
	}
	if s.Table != nil {
		for _, row := range s.Table.Rows {
			if cells := cleanItems(row); len(cells) > 0 {
				items = append(items, strings.Join(cells, " "))
			}
		}
	}
	return items
}

// renderedItems lists the body strings the renderer shows for the slide kind.
func renderedItems(s domain.SlideSpec) []string {
	switch s.Kind {
	case domain.SlideKindNarrative:
		return []string{s.Paragraph}
	case domain.SlideKindTwoColumn, domain.SlideKindComparison:
		var items []string
		for _, c := range s.Columns {
			items = append(items, c.Bullets...)
		}
		return items
	case domain.SlideKindQuote:
		if s.Quote == nil {
			return nil
		}
		return []string{s.Quote.Text}
	case domain.SlideKindTimeline:
		items := make([]string, 0, len(s.Timeline))
		for _, ev := range s.Timeline {
			items = append(items, ev.Label+" "+ev.Text)
		}
		return items
	case domain.SlideKindImageText:
		items := append([]string(nil), s.Bullets...)
		if s.Paragraph != "" {
			items = append(items, s.Paragraph)
		}
		return items
	case domain.SlideKindTable:
		if s.Table == nil {
			return nil
		}
		items := make([]string, 0, len(s.Table.Rows))
		for _, row := range s.Table.Rows {
			items = append(items, strings.Join(row, " "))
		}
		return items
	case domain.SlideKindChart:
		return nil
	default:
		return s.Bullets
	}
}

// slideTexts lists every rendered string of a slide, title included.
func slideTexts(s domain.SlideSpec) []string {
	texts := []string{s.Title}
	if s.Subtitle != "" {
		texts = append(texts, s.Subtitle)
	}
	switch s.Kind {
	case domain.SlideKindTwoColumn, domain.SlideKindComparison:
		for _, c := range s.Columns {
			texts = append(texts, c.Heading)
		}
	case domain.SlideKindTable:
		if s.Table != nil {
			texts = append(texts, s.Table.Headers...)
		}
	case domain.SlideKindChart:
		if s.Chart != nil {
			texts = append(texts, s.Chart.Categories...)
		}
	}
	return append(texts, renderedItems(s)...)
}
