package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusReceived  JobStatus = "received"
	JobStatusOutline   JobStatus = "outline"
	JobStatusAnalyze   JobStatus = "analyze"
	JobStatusContent   JobStatus = "content"
	JobStatusCharts    JobStatus = "charts"
	JobStatusOptimize  JobStatus = "optimize"
	JobStatusLayout    JobStatus = "layout"
	JobStatusDesign    JobStatus = "design"
	JobStatusImages    JobStatus = "images"
	JobStatusAdjust    JobStatus = "adjust"
	JobStatusReview    JobStatus = "review"
	JobStatusRendering JobStatus = "rendering"
	JobStatusDone      JobStatus = "done"
	JobStatusError     JobStatus = "error"
)

// pipeline is the single linear path a job walks. error sits outside it.
var pipeline = []JobStatus{
	JobStatusReceived,
	JobStatusOutline,
	JobStatusAnalyze,
	JobStatusContent,
	JobStatusCharts,
	JobStatusOptimize,
	JobStatusLayout,
	JobStatusDesign,
	JobStatusImages,
	JobStatusAdjust,
	JobStatusReview,
	JobStatusRendering,
	JobStatusDone,
}

var progressByStatus = map[JobStatus]int{
	JobStatusReceived:  0,
	JobStatusOutline:   10,
	JobStatusAnalyze:   18,
	JobStatusContent:   30,
	JobStatusCharts:    36,
	JobStatusOptimize:  42,
	JobStatusLayout:    52,
	JobStatusDesign:    60,
	JobStatusImages:    70,
	JobStatusAdjust:    80,
	JobStatusReview:    90,
	JobStatusRendering: 95,
	JobStatusDone:      100,
}

// Pipeline returns a copy of the ordered job states from received to done.
func Pipeline() []JobStatus {
	out := make([]JobStatus, len(pipeline))
	copy(out, pipeline)
	return out
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	if s == JobStatusError {
		return true
	}
	_, ok := progressByStatus[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// Next returns the immediate successor on the pipeline.
func (s JobStatus) Next() (JobStatus, bool) {
	for i, st := range pipeline {
		if st == s && i+1 < len(pipeline) {
			return pipeline[i+1], true
		}
	}
	return "", false
}

// Progress returns the fixed percentage for the status. The error state has
// no progress of its own and reports -1.
func (s JobStatus) Progress() int {
	if p, ok := progressByStatus[s]; ok {
		return p
	}
	return -1
}

// Audience enumerates who a deck is written for.
type Audience string

const (
	AudienceBusiness  Audience = "business"
	AudienceAcademic  Audience = "academic"
	AudienceGeneral   Audience = "general"
	AudienceTechnical Audience = "technical"
	AudienceExecutive Audience = "executive"
)

// Template enumerates the visual template categories.
type Template string

const (
	TemplateCorporate Template = "corporate"
	TemplateAcademic  Template = "academic"
	TemplateStartup   Template = "startup"
	TemplateMinimal   Template = "minimal"
)

const (
	MinSlideCount = 5
	MaxSlideCount = 30
	MinTopicChars = 10
)

// DeckRequest holds the parameters a client submits for a deck.
type DeckRequest struct {
	Topic      string   `json:"topic" validate:"required,min=10,max=500"`
	SlideCount int      `json:"slide_count" validate:"min=5,max=30"`
	Audience   Audience `json:"audience" validate:"required,audience"`
	Template   Template `json:"template" validate:"required,template"`
	Locale     string   `json:"locale,omitempty" validate:"omitempty,oneof=en id"`
}

// Job is the lifecycle record of one deck generation request. It holds no
// reference types so a plain value copy is a full snapshot.
type Job struct {
	ID          string      `json:"id"`
	Status      JobStatus   `json:"status"`
	Progress    int         `json:"progress"`
	CurrentStep string      `json:"current_step"`
	Request     DeckRequest `json:"request"`
	ArtifactRef string      `json:"artifact_ref,omitempty"`
	ErrorDetail string      `json:"error_detail,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
