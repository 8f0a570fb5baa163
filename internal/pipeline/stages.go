package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"deckgen/internal/domain"
	"deckgen/internal/providers/genai"
)

// runState carries everything one job run has produced so far.
type runState struct {
	job       domain.Job
	outline   domain.Outline
	structure structure
	deck      domain.Deck
}

// stage is one step of the generation pipeline. repair marks stages whose
// output goes through the fit engine before the job advances.
type stage struct {
	status   domain.JobStatus
	run      func(ctx context.Context, st *runState) error
	describe func(st *runState) string
	repair   bool
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{status: domain.JobStatusOutline, run: o.outlineStage, describe: func(st *runState) string {
			return fmt.Sprintf("Outline ready with %d sections", len(st.outline.Sections))
		}},
		{status: domain.JobStatusAnalyze, run: o.analyzeStage, describe: func(st *runState) string {
			return fmt.Sprintf("Planned %d slides across %d sections", len(st.structure.Slides), len(st.structure.Sections))
		}},
		{status: domain.JobStatusContent, run: o.contentStage, repair: true, describe: func(st *runState) string {
			return fmt.Sprintf("Drafted content for %d slides", len(st.deck.Slides))
		}},
		{status: domain.JobStatusCharts, run: o.chartsStage, repair: true, describe: func(st *runState) string {
			return fmt.Sprintf("Prepared %d chart slides", countKind(st.deck, domain.SlideKindChart))
		}},
		{status: domain.JobStatusOptimize, run: o.optimizeStage, repair: true, describe: func(st *runState) string {
			return fmt.Sprintf("Tightened bullets for the %s template", st.deck.Template)
		}},
		{status: domain.JobStatusLayout, run: o.layoutStage, repair: true, describe: func(*runState) string {
			return "Chose slide layouts"
		}},
		{status: domain.JobStatusDesign, run: o.designStage, repair: true, describe: func(st *runState) string {
			return fmt.Sprintf("Applied theme with %s", fallback(st.deck.Theme.FontFamily, "default font"))
		}},
		{status: domain.JobStatusImages, run: o.imagesStage, repair: true, describe: func(st *runState) string {
			return fmt.Sprintf("Planned %d illustrations", countImages(st.deck))
		}},
		{status: domain.JobStatusAdjust, run: o.adjustStage, repair: true, describe: func(*runState) string {
			return "Adjusted layout and font sizes"
		}},
		{status: domain.JobStatusReview, run: o.reviewStage, repair: true, describe: func(*runState) string {
			return "Reviewed titles and speaker notes"
		}},
	}
}

func (o *Orchestrator) outlineStage(ctx context.Context, st *runState) error {
	req := st.job.Request
	p, err := buildPrompt(domain.JobStatusOutline, req.Locale, genai.OutlineInput{
		Topic:      req.Topic,
		Audience:   req.Audience,
		Template:   req.Template,
		Locale:     req.Locale,
		SlideCount: req.SlideCount,
	})
	if err != nil {
		return err
	}
	out, err := generateAs[domain.Outline](ctx, o, domain.JobStatusOutline, p)
	if err != nil {
		return err
	}
	sections := out.Sections[:0]
	for _, s := range out.Sections {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		if s.Weight <= 0 {
			s.Weight = 1
		}
		sections = append(sections, s)
	}
	if len(sections) == 0 {
		return fmt.Errorf("%w: outline has no sections", genai.ErrMalformed)
	}
	out.Sections = sections
	if strings.TrimSpace(out.Title) == "" {
		out.Title = req.Topic
	}
	st.outline = out
	o.persist(ctx, st.job.ID, "outline.json", out)
	return nil
}

func (o *Orchestrator) analyzeStage(ctx context.Context, st *runState) error {
	s, err := buildStructure(st.outline, st.job.Request.Topic, st.job.Request.SlideCount)
	if err != nil {
		return err
	}
	st.structure = s
	o.persist(ctx, st.job.ID, "structure.json", s)
	return nil
}

func (o *Orchestrator) contentStage(ctx context.Context, st *runState) error {
	req := st.job.Request
	briefs := st.structure.Slides
	p, err := buildPrompt(domain.JobStatusContent, req.Locale, genai.ContentInput{
		Topic:    req.Topic,
		Audience: req.Audience,
		Locale:   req.Locale,
		Slides:   briefs,
	})
	if err != nil {
		return err
	}
	out, err := generateAs[genai.ContentOutput](ctx, o, domain.JobStatusContent, p)
	if err != nil {
		return err
	}
	if len(out.Slides) == 0 {
		return fmt.Errorf("%w: content returned no slides", genai.ErrMalformed)
	}

	deck := domain.Deck{
		JobID:    st.job.ID,
		Title:    briefs[0].Title,
		Template: req.Template,
		Slides:   make([]domain.SlideSpec, len(briefs)),
	}
	for i, b := range briefs {
		var s domain.SlideSpec
		if i < len(out.Slides) {
			s = out.Slides[i]
		}
		if strings.TrimSpace(s.Title) == "" {
			s.Title = b.Title
		}
		if i == 0 {
			s.Kind = domain.SlideKindTitle
		} else if !s.Kind.Content() {
			s.Kind = b.Kind
		}
		s.Role = b.Role
		s.Section = b.Section
		s.KeyPoints = append([]string(nil), b.KeyPoints...)
		deck.Slides[i] = s
	}
	if len(out.Slides) != len(briefs) {
		o.logger.Warn().
			Str("job_id", st.job.ID).
			Int("expected", len(briefs)).
			Int("received", len(out.Slides)).
			Msg("pipeline: content slide count mismatch")
	}
	st.deck = deck
	return nil
}

func (o *Orchestrator) chartsStage(ctx context.Context, st *runState) error {
	st.deck = o.fit.EnsureChart(ctx, st.deck)
	p, err := buildPrompt(domain.JobStatusCharts, st.job.Request.Locale, genai.ChartsInput{
		Topic:      st.job.Request.Topic,
		ChartTypes: chartTypes,
		Slides:     digests(st.deck, func(i int, s domain.SlideSpec) bool { return i > 0 && s.Kind != domain.SlideKindChart }),
	})
	if err != nil {
		return err
	}
	out, err := generateAs[genai.ChartsOutput](ctx, o, domain.JobStatusCharts, p)
	if err != nil {
		return err
	}
	for _, c := range out.Charts {
		if c.Index <= 0 || c.Index >= len(st.deck.Slides) || !usableChart(c.Chart) {
			continue
		}
		chart := c.Chart
		s := &st.deck.Slides[c.Index]
		s.Kind = domain.SlideKindChart
		s.Chart = &chart
	}
	return nil
}

var chartTypes = []domain.ChartType{
	domain.ChartTypeBar,
	domain.ChartTypeLine,
	domain.ChartTypePie,
	domain.ChartTypeArea,
	domain.ChartTypeScatter,
}

func usableChart(c domain.Chart) bool {
	if !c.Type.Valid() || len(c.Categories) == 0 || len(c.Series) == 0 {
		return false
	}
	for _, s := range c.Series {
		if len(s.Values) != len(c.Categories) {
			return false
		}
	}
	return true
}

// templateWordCaps bounds the words per bullet for each template.
var templateWordCaps = map[domain.Template]int{
	domain.TemplateCorporate: 12,
	domain.TemplateAcademic:  18,
	domain.TemplateStartup:   10,
	domain.TemplateMinimal:   8,
}

func (o *Orchestrator) optimizeStage(_ context.Context, st *runState) error {
	limit, ok := templateWordCaps[st.deck.Template]
	if !ok {
		return nil
	}
	ellipsis := o.fit.Policy().Ellipsis
	for i := range st.deck.Slides {
		s := &st.deck.Slides[i]
		capWords(s.Bullets, limit, ellipsis)
		for c := range s.Columns {
			capWords(s.Columns[c].Bullets, limit, ellipsis)
		}
	}
	return nil
}

func capWords(items []string, limit int, ellipsis string) {
	for i, item := range items {
		words := strings.Fields(item)
		if len(words) <= limit {
			continue
		}
		items[i] = strings.TrimRight(strings.Join(words[:limit], " "), ",;:.") + ellipsis
	}
}

func (o *Orchestrator) layoutStage(ctx context.Context, st *runState) error {
	kinds := append([]domain.SlideKind(nil), detailKinds...)
	p, err := buildPrompt(domain.JobStatusLayout, st.job.Request.Locale, genai.LayoutInput{
		Template: st.deck.Template,
		Kinds:    kinds,
		Slides:   digests(st.deck, func(i int, s domain.SlideSpec) bool { return i > 0 }),
	})
	if err != nil {
		return err
	}
	out, err := generateAs[genai.LayoutOutput](ctx, o, domain.JobStatusLayout, p)
	if err != nil {
		return err
	}
	for _, c := range out.Layouts {
		if c.Index <= 0 || c.Index >= len(st.deck.Slides) {
			continue
		}
		if !c.Kind.Content() || c.Kind == domain.SlideKindChart {
			continue
		}
		s := &st.deck.Slides[c.Index]
		if s.Kind == domain.SlideKindChart {
			continue
		}
		s.Kind = c.Kind
	}
	return nil
}

// backgroundRef is where the title background lives inside the bundle.
const backgroundRef = "images/background.png"

func (o *Orchestrator) designStage(ctx context.Context, st *runState) error {
	req := st.job.Request
	p, err := buildPrompt(domain.JobStatusDesign, req.Locale, genai.DesignInput{
		Topic:    req.Topic,
		Audience: req.Audience,
		Template: req.Template,
	})
	if err != nil {
		return err
	}
	out, err := generateAs[genai.DesignOutput](ctx, o, domain.JobStatusDesign, p)
	if err != nil {
		return err
	}
	st.deck.Theme = out.Theme
	if bg := strings.TrimSpace(out.BackgroundDescription); bg != "" {
		st.deck.Theme.Background = bg
		st.deck.Slides[0].BackgroundImageRef = backgroundRef
	}
	return nil
}

// sparseChars is the text length under which a slide gets an illustration.
const sparseChars = 100

func (o *Orchestrator) imagesStage(ctx context.Context, st *runState) error {
	wants := func(i int, s domain.SlideSpec) bool {
		if i == 0 || s.Kind == domain.SlideKindChart || s.Kind == domain.SlideKindTable || s.ImageRef != "" {
			return false
		}
		return s.Kind == domain.SlideKindImageText || utf8.RuneCountInString(slideText(s)) < sparseChars
	}
	candidates := digests(st.deck, wants)
	if len(candidates) == 0 {
		o.logger.Debug().Str("job_id", st.job.ID).Msg("pipeline: no slides need images")
		return nil
	}
	p, err := buildPrompt(domain.JobStatusImages, st.job.Request.Locale, genai.ImagesInput{
		Topic:  st.job.Request.Topic,
		Slides: candidates,
	})
	if err != nil {
		return err
	}
	out, err := generateAs[genai.ImagesOutput](ctx, o, domain.JobStatusImages, p)
	if err != nil {
		return err
	}
	for _, img := range out.Images {
		desc := strings.TrimSpace(img.Description)
		if desc == "" || img.Index <= 0 || img.Index >= len(st.deck.Slides) {
			continue
		}
		s := &st.deck.Slides[img.Index]
		if !wants(img.Index, *s) {
			continue
		}
		s.ImageDescription = desc
		s.ImageRef = fmt.Sprintf("images/slide-%02d.png", img.Index+1)
	}
	return nil
}

// adjustStage balances two-sided slides and drops repeated bullets. Font
// hints and overflow are settled by the fit engine afterwards.
func (o *Orchestrator) adjustStage(_ context.Context, st *runState) error {
	for i := range st.deck.Slides {
		s := &st.deck.Slides[i]
		s.Bullets = dedupe(s.Bullets)
		if len(s.Columns) == 2 {
			s.Columns[0].Bullets, s.Columns[1].Bullets = balance(dedupe(s.Columns[0].Bullets), dedupe(s.Columns[1].Bullets))
		}
	}
	return nil
}

func dedupe(items []string) []string {
	if len(items) < 2 {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

// balance moves trailing items from the longer column so the two differ by at
// most one.
func balance(left, right []string) ([]string, []string) {
	for len(left) > len(right)+1 {
		right = append(right, left[len(left)-1])
		left = left[:len(left)-1]
	}
	for len(right) > len(left)+1 {
		left = append(left, right[0])
		right = right[1:]
	}
	return left, right
}

func (o *Orchestrator) reviewStage(ctx context.Context, st *runState) error {
	req := st.job.Request
	p, err := buildPrompt(domain.JobStatusReview, req.Locale, genai.ReviewInput{
		Topic:    req.Topic,
		Audience: req.Audience,
		Slides:   digests(st.deck, func(int, domain.SlideSpec) bool { return true }),
	})
	if err != nil {
		return err
	}
	out, err := generateAs[genai.ReviewOutput](ctx, o, domain.JobStatusReview, p)
	if err != nil {
		return err
	}
	for _, e := range out.Slides {
		if e.Index < 0 || e.Index >= len(st.deck.Slides) {
			continue
		}
		s := &st.deck.Slides[e.Index]
		if t := strings.TrimSpace(e.Title); t != "" && e.Index > 0 {
			s.Title = t
		}
		if n := strings.TrimSpace(e.Notes); n != "" {
			s.Notes = n
		}
	}
	return nil
}

const digestChars = 280

func digests(deck domain.Deck, keep func(int, domain.SlideSpec) bool) []genai.SlideDigest {
	out := []genai.SlideDigest{}
	for i, s := range deck.Slides {
		if !keep(i, s) {
			continue
		}
		text := slideText(s)
		if r := []rune(text); len(r) > digestChars {
			text = string(r[:digestChars])
		}
		out = append(out, genai.SlideDigest{Index: i, Title: s.Title, Kind: s.Kind, Text: text})
	}
	return out
}

// slideText flattens the visible body of a slide.
func slideText(s domain.SlideSpec) string {
	var parts []string
	add := func(v ...string) {
		for _, p := range v {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	}
	add(s.Subtitle, s.Paragraph)
	add(s.Bullets...)
	for _, c := range s.Columns {
		add(c.Heading)
		add(c.Bullets...)
	}
	if s.Quote != nil {
		add(s.Quote.Text, s.Quote.Attribution)
	}
	for _, ev := range s.Timeline {
		add(ev.Label, ev.Text)
	}
	if s.Table != nil {
		add(s.Table.Headers...)
		for _, row := range s.Table.Rows {
			add(row...)
		}
	}
	if s.Chart != nil {
		add(s.Chart.Title)
		add(s.Chart.Categories...)
	}
	return strings.Join(parts, " ")
}

func countKind(deck domain.Deck, kind domain.SlideKind) int {
	n := 0
	for _, s := range deck.Slides {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func countImages(deck domain.Deck) int {
	n := 0
	for _, s := range deck.Slides {
		if s.ImageRef != "" {
			n++
		}
	}
	return n
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
