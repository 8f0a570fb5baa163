package fit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"deckgen/internal/domain"
	"deckgen/internal/resilience"
)

// Compressor shortens text to at most max characters.
type Compressor interface {
	Compress(ctx context.Context, text string, max int) (string, error)
}

// Engine validates and repairs slide models. Generation output is treated as
// untrusted; every deck leaving Finalize satisfies the policy.
type Engine struct {
	policy     Policy
	compressor Compressor
	retryable  func(error) bool
	logger     zerolog.Logger
}

type Option func(*Engine)

// WithCompressor delegates heavy shortening to c. retryable decides which
// compression errors are worth another attempt.
func WithCompressor(c Compressor, retryable func(error) bool) Option {
	return func(e *Engine) {
		e.compressor = c
		e.retryable = retryable
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(policy Policy, opts ...Option) *Engine {
	e := &Engine{policy: policy, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the ceilings in force.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Repair applies the per-slide rules to a copy of deck.
func (e *Engine) Repair(ctx context.Context, deck domain.Deck) domain.Deck {
	out := deck.Clone()
	for i := range out.Slides {
		e.repairSlide(ctx, &out.Slides[i], i, out.Title)
	}
	return out
}

// EnsureChart converts one slide to a chart when the deck has none.
func (e *Engine) EnsureChart(ctx context.Context, deck domain.Deck) domain.Deck {
	out := deck.Clone()
	for _, s := range out.Slides {
		if s.Kind == domain.SlideKindChart {
			return out
		}
	}
	idx := pickChartSlide(out.Slides)
	if idx < 0 {
		return out
	}
	s := &out.Slides[idx]
	e.logger.Debug().Int("slide", idx).Str("title", s.Title).Msg("fit: converting slide to chart")
	convertToChart(s, e.policy.ChartMaxPoints)
	e.repairSlide(ctx, s, idx, out.Title)
	return out
}

// Finalize runs every rule including the chart guarantee.
func (e *Engine) Finalize(ctx context.Context, deck domain.Deck) domain.Deck {
	return e.EnsureChart(ctx, e.Repair(ctx, deck))
}

func (e *Engine) repairSlide(ctx context.Context, s *domain.SlideSpec, index int, deckTitle string) {
	if !s.Kind.Valid() {
		if index == 0 {
			s.Kind = domain.SlideKindTitle
		} else {
			s.Kind = domain.SlideKindBullets
		}
	}
	if isPlaceholder(s.Title) {
		s.Title = fallbackTitle(*s, index, deckTitle)
	}
	e.repairStructure(s)
	e.repairLengths(ctx, s)
	if cutToFiller(*s) {
		if isPlaceholder(s.Title) {
			s.Title = fallbackTitle(*s, index, deckTitle)
		}
		e.repairStructure(s)
		e.repairLengths(ctx, s)
	}
	if index > 0 {
		s.BackgroundImageRef = ""
	}
	s.FontSize = e.fontBucket(*s)
	s.FontPoints = recommendPoints(renderedItems(*s))
}

// cutToFiller reports whether length repair left the title or a required
// body field holding only placeholder text.
func cutToFiller(s domain.SlideSpec) bool {
	if isPlaceholder(s.Title) {
		return true
	}
	switch s.Kind {
	case domain.SlideKindBullets, domain.SlideKindImageText:
		for _, b := range s.Bullets {
			if isPlaceholder(b) {
				return true
			}
		}
	case domain.SlideKindNarrative:
		return isPlaceholder(s.Paragraph)
	case domain.SlideKindTwoColumn, domain.SlideKindComparison:
		for _, c := range s.Columns {
			for _, b := range c.Bullets {
				if isPlaceholder(b) {
					return true
				}
			}
		}
	case domain.SlideKindQuote:
		return s.Quote == nil || isPlaceholder(s.Quote.Text)
	case domain.SlideKindTimeline:
		for _, ev := range s.Timeline {
			if isPlaceholder(ev.Text) {
				return true
			}
		}
	}
	return false
}

func fallbackTitle(s domain.SlideSpec, index int, deckTitle string) string {
	if !isPlaceholder(s.Section) {
		return strings.TrimSpace(s.Section)
	}
	if index == 0 && !isPlaceholder(deckTitle) {
		return strings.TrimSpace(deckTitle)
	}
	return fmt.Sprintf("Slide %d", index+1)
}

// repairStructure enforces kind bounds then fills anything left empty.
func (e *Engine) repairStructure(s *domain.SlideSpec) {
	p := e.policy
	switch s.Kind {
	case domain.SlideKindBullets:
		s.Bullets = capItems(cleanItems(s.Bullets), p.BulletsMaxItems)
		if len(s.Bullets) == 0 {
			s.Bullets = capItems(fallbackItems(*s), p.BulletsMaxItems)
		}
	case domain.SlideKindNarrative:
		if isPlaceholder(s.Paragraph) {
			s.Paragraph = strings.Join(fallbackItems(*s), " ")
		}
		s.Paragraph = strings.TrimSpace(s.Paragraph)
	case domain.SlideKindTwoColumn, domain.SlideKindComparison:
		e.repairColumns(s)
	case domain.SlideKindQuote:
		if s.Quote == nil {
			s.Quote = &domain.Quote{}
		}
		if isPlaceholder(s.Quote.Text) {
			s.Quote.Text = fallbackItems(*s)[0]
		}
		s.Quote.Text = strings.TrimSpace(s.Quote.Text)
	case domain.SlideKindTimeline:
		var events []domain.TimelineEvent
		for _, ev := range s.Timeline {
			if isPlaceholder(ev.Text) {
				continue
			}
			events = append(events, domain.TimelineEvent{Label: strings.TrimSpace(ev.Label), Text: strings.TrimSpace(ev.Text)})
		}
		if len(events) == 0 {
			for _, it := range fallbackItems(*s) {
				events = append(events, domain.TimelineEvent{Text: it})
			}
		}
		if len(events) > p.TimelineMaxEvents {
			events = events[:p.TimelineMaxEvents]
		}
		for i := range events {
			if isPlaceholder(events[i].Label) {
				events[i].Label = fmt.Sprintf("Step %d", i+1)
			}
		}
		s.Timeline = events
	case domain.SlideKindImageText:
		s.Bullets = capItems(cleanItems(s.Bullets), p.BulletsMaxItems)
		if len(s.Bullets) == 0 && isPlaceholder(s.Paragraph) {
			s.Bullets = capItems(fallbackItems(*s), p.BulletsMaxItems)
		}
		if isPlaceholder(s.ImageDescription) {
			s.ImageDescription = "Illustration of " + s.Title
		}
	case domain.SlideKindTable:
		e.repairTable(s)
	case domain.SlideKindChart:
		e.repairChart(s)
	}
}

func (e *Engine) repairColumns(s *domain.SlideSpec) {
	p := e.policy
	cols := make([]domain.Column, 2)
	copy(cols, s.Columns)
	others := *s
	others.Columns = nil
	spare := fallbackItems(others)
	defaults := [2]string{"Overview", "Details"}
	if s.Kind == domain.SlideKindComparison {
		defaults = [2]string{"Option A", "Option B"}
	}
	for i := range cols {
		cols[i].Heading = strings.TrimSpace(cols[i].Heading)
		if isPlaceholder(cols[i].Heading) {
			cols[i].Heading = defaults[i]
		}
		cols[i].Bullets = capItems(cleanItems(cols[i].Bullets), p.BulletsMaxItems)
		if len(cols[i].Bullets) > 0 {
			continue
		}
		for j := i; j < len(spare); j += 2 {
			cols[i].Bullets = append(cols[i].Bullets, spare[j])
		}
		if len(cols[i].Bullets) == 0 {
			cols[i].Bullets = []string{cols[i].Heading + ": " + s.Title}
		}
		cols[i].Bullets = capItems(cols[i].Bullets, p.BulletsMaxItems)
	}
	s.Columns = cols
}

func (e *Engine) repairTable(s *domain.SlideSpec) {
	p := e.policy
	if s.Table == nil {
		s.Table = &domain.Table{}
	}
	width := tableWidth(s.Table.Headers, s.Table.Rows, p.TableMaxCols)
	rows := fitRows(s.Table.Rows, width)
	if len(rows) == 0 {
		var spare [][]string
		for _, it := range fallbackItems(*s) {
			spare = append(spare, []string{it})
		}
		if len(cleanItems(s.Table.Headers)) == 0 {
			s.Table.Headers = []string{"Point"}
		}
		width = tableWidth(s.Table.Headers, spare, p.TableMaxCols)
		rows = fitRows(spare, width)
	}
	if len(rows) > p.TableMaxRows {
		rows = rows[:p.TableMaxRows]
	}
	headers := make([]string, width)
	copy(headers, s.Table.Headers)
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
		if isPlaceholder(headers[i]) {
			headers[i] = fmt.Sprintf("Column %d", i+1)
		}
	}
	s.Table.Headers = headers
	s.Table.Rows = rows
}

func tableWidth(headers []string, rows [][]string, max int) int {
	width := len(headers)
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width > max {
		width = max
	}
	return width
}

// fitRows pads or cuts every row to width and drops rows left without content.
func fitRows(rows [][]string, width int) [][]string {
	var out [][]string
	for _, row := range rows {
		fixed := make([]string, width)
		copy(fixed, row)
		for j := range fixed {
			fixed[j] = strings.TrimSpace(fixed[j])
		}
		if len(cleanItems(fixed)) == 0 {
			continue
		}
		out = append(out, fixed)
	}
	return out
}

func (e *Engine) repairChart(s *domain.SlideSpec) {
	limit := e.policy.ChartMaxPoints
	c := s.Chart
	if c == nil || len(c.Categories) == 0 || len(c.Series) == 0 {
		s.Chart = synthesizeChart(*s, limit)
		return
	}
	if !c.Type.Valid() {
		c.Type = domain.ChartTypeBar
	}
	if len(c.Categories) > limit {
		c.Categories = c.Categories[:limit]
	}
	for i := range c.Categories {
		c.Categories[i] = strings.TrimSpace(c.Categories[i])
		if isPlaceholder(c.Categories[i]) {
			c.Categories[i] = fmt.Sprintf("Item %d", i+1)
		}
	}
	var series []domain.Series
	for _, sr := range c.Series {
		if len(sr.Values) == 0 {
			continue
		}
		values := make([]float64, len(c.Categories))
		copy(values, sr.Values)
		name := strings.TrimSpace(sr.Name)
		if isPlaceholder(name) {
			name = fmt.Sprintf("Series %d", len(series)+1)
		}
		series = append(series, domain.Series{Name: name, Values: values})
	}
	if len(series) == 0 {
		s.Chart = synthesizeChart(*s, limit)
		return
	}
	c.Series = series
}

// convertToChart turns s into a chart slide, keeping its prose in the notes.
func convertToChart(s *domain.SlideSpec, limit int) {
	chart := synthesizeChart(*s, limit)
	if notes := strings.Join(allItems(*s), "\n"); notes != "" && strings.TrimSpace(s.Notes) == "" {
		s.Notes = notes
	}
	s.Kind = domain.SlideKindChart
	s.Chart = chart
	s.Bullets = nil
	s.Paragraph = ""
	s.Columns = nil
	s.Quote = nil
	s.Timeline = nil
	s.Table = nil
	s.ImageDescription = ""
	s.ImageRef = ""
}

func (e *Engine) repairLengths(ctx context.Context, s *domain.SlideSpec) {
	short, long := e.policy.BulletMaxChars, e.policy.NarrativeMaxChars
	s.Title = e.fitText(ctx, s.Title, short)
	s.Subtitle = e.fitText(ctx, s.Subtitle, short)
	for i := range s.Bullets {
		s.Bullets[i] = e.fitText(ctx, s.Bullets[i], short)
	}
	s.Paragraph = e.fitText(ctx, s.Paragraph, long)
	for i := range s.Columns {
		s.Columns[i].Heading = e.fitText(ctx, s.Columns[i].Heading, short)
		for j := range s.Columns[i].Bullets {
			s.Columns[i].Bullets[j] = e.fitText(ctx, s.Columns[i].Bullets[j], short)
		}
	}
	if s.Quote != nil {
		s.Quote.Text = e.fitText(ctx, s.Quote.Text, long)
		s.Quote.Attribution = e.fitText(ctx, s.Quote.Attribution, short)
	}
	for i := range s.Timeline {
		s.Timeline[i].Label = e.fitText(ctx, s.Timeline[i].Label, short)
		s.Timeline[i].Text = e.fitText(ctx, s.Timeline[i].Text, short)
	}
	if s.Table != nil {
		for i := range s.Table.Headers {
			s.Table.Headers[i] = e.fitText(ctx, s.Table.Headers[i], short)
		}
		for _, row := range s.Table.Rows {
			for j := range row {
				row[j] = e.fitText(ctx, row[j], short)
			}
		}
	}
	if s.Chart != nil {
		for i := range s.Chart.Categories {
			s.Chart.Categories[i] = e.fitText(ctx, s.Chart.Categories[i], short)
		}
	}
	s.ImageDescription = e.fitText(ctx, s.ImageDescription, long)
}

// fitText keeps text within max characters. Heavy cuts go to the compressor
// first; anything it cannot deliver is truncated at a word boundary.
func (e *Engine) fitText(ctx context.Context, text string, max int) string {
	n := runeLen(text)
	if n <= max {
		return text
	}
	budget := max - runeLen(e.policy.Ellipsis)
	if e.compressor != nil && float64(budget)/float64(n) < e.policy.CompressMinKeepRatio {
		if out, ok := e.compress(ctx, text, max); ok {
			return truncateWords(out, max, e.policy.Ellipsis)
		}
	}
	return truncateWords(text, max, e.policy.Ellipsis)
}

func (e *Engine) compress(ctx context.Context, text string, max int) (string, bool) {
	var out string
	err := resilience.Retry(ctx, e.logger, "compress", e.policy.Compression, e.retryable, func(ctx context.Context) error {
		res, err := e.compressor.Compress(ctx, text, max)
		if err != nil {
			return err
		}
		out = strings.TrimSpace(res)
		return nil
	})
	if err != nil {
		e.logger.Warn().Err(err).Int("max", max).Msg("fit: compression unavailable, truncating")
		return "", false
	}
	if isPlaceholder(out) {
		return "", false
	}
	return out, true
}

func (e *Engine) fontBucket(s domain.SlideSpec) domain.FontSize {
	total := 0
	for _, t := range slideTexts(s) {
		total += runeLen(t)
	}
	switch {
	case total <= e.policy.FontLargeMaxChars:
		return domain.FontSizeLarge
	case total <= e.policy.FontMediumMaxChars:
		return domain.FontSizeMedium
	default:
		return domain.FontSizeSmall
	}
}

// fallbackItems derives body text for an empty slide from whatever else the
// slide carries, then from its outline context, then from its title.
func fallbackItems(s domain.SlideSpec) []string {
	if items := allItems(s); len(items) > 0 {
		return items
	}
	if kp := cleanItems(s.KeyPoints); len(kp) > 0 {
		return kp
	}
	subject := strings.TrimSpace(s.Title)
	items := []string{"Overview of " + subject}
	if !isPlaceholder(s.Section) && !strings.EqualFold(s.Section, subject) {
		items = append(items, fmt.Sprintf("How %s shapes %s", subject, strings.TrimSpace(s.Section)))
	}
	return append(items, "Key takeaways on "+subject)
}

func capItems(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
