package fit

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"deckgen/internal/resilience"
)

// Policy holds the layout ceilings the engine enforces.
type Policy struct {
	BulletMaxChars       int     `yaml:"bullet_max_chars"`
	NarrativeMaxChars    int     `yaml:"narrative_max_chars"`
	BulletsMaxItems      int     `yaml:"bullets_max_items"`
	TableMaxRows         int     `yaml:"table_max_rows"`
	TableMaxCols         int     `yaml:"table_max_cols"`
	TimelineMaxEvents    int     `yaml:"timeline_max_events"`
	ChartMaxPoints       int     `yaml:"chart_max_points"`
	FontLargeMaxChars    int     `yaml:"font_large_max_chars"`
	FontMediumMaxChars   int     `yaml:"font_medium_max_chars"`
	Ellipsis             string  `yaml:"ellipsis"`
	CompressMinKeepRatio float64 `yaml:"compress_min_keep_ratio"`

	Compression resilience.RetryConfig `yaml:"compression"`
}

// DefaultPolicy returns the built-in ceilings.
func DefaultPolicy() Policy {
	return Policy{
		BulletMaxChars:       120,
		NarrativeMaxChars:    600,
		BulletsMaxItems:      6,
		TableMaxRows:         8,
		TableMaxCols:         5,
		TimelineMaxEvents:    6,
		ChartMaxPoints:       8,
		FontLargeMaxChars:    200,
		FontMediumMaxChars:   450,
		Ellipsis:             "…",
		CompressMinKeepRatio: 0.6,
		Compression:          resilience.DefaultRetryConfig(),
	}
}

// LoadPolicy reads a YAML policy file on top of the defaults. An empty path
// returns the defaults unchanged.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	path = strings.TrimSpace(path)
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("fit: read policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("fit: parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Validate rejects ceilings the engine cannot honour.
func (p Policy) Validate() error {
	ellipsis := len([]rune(p.Ellipsis))
	switch {
	case p.BulletMaxChars <= ellipsis+1:
		return fmt.Errorf("fit: bullet_max_chars must exceed the ellipsis length")
	case p.NarrativeMaxChars < p.BulletMaxChars:
		return fmt.Errorf("fit: narrative_max_chars must be at least bullet_max_chars")
	case p.BulletsMaxItems < 1, p.TableMaxRows < 1, p.TableMaxCols < 1, p.TimelineMaxEvents < 1, p.ChartMaxPoints < 1:
		return fmt.Errorf("fit: item caps must be positive")
	case p.FontMediumMaxChars < p.FontLargeMaxChars:
		return fmt.Errorf("fit: font_medium_max_chars must be at least font_large_max_chars")
	case p.CompressMinKeepRatio < 0 || p.CompressMinKeepRatio > 1:
		return fmt.Errorf("fit: compress_min_keep_ratio must be within [0,1]")
	}
	return nil
}
