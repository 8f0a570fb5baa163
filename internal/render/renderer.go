// Package render turns a finished deck model into a downloadable bundle.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"deckgen/internal/domain"
	"deckgen/pkg/zip"
)

// ErrRender marks every failure that happens while producing the bundle.
var ErrRender = errors.New("render failed")

// BundleKey is the artifact key a job's bundle is stored under.
func BundleKey(jobID string) string {
	return fmt.Sprintf("decks/%s/deck.zip", jobID)
}

// ChartWorkbookName is the bundle entry holding the data of slide index i.
func ChartWorkbookName(i int) string {
	return fmt.Sprintf("charts/slide-%02d.xlsx", i+1)
}

// BundleRenderer writes a zip holding the deck model, one workbook per chart
// slide and placeholder artwork for every referenced image.
type BundleRenderer struct {
	store  domain.ArtifactStore
	logger zerolog.Logger
}

func NewBundleRenderer(store domain.ArtifactStore, logger zerolog.Logger) *BundleRenderer {
	return &BundleRenderer{store: store, logger: logger.With().Str("component", "render").Logger()}
}

// Render builds the bundle for deck and returns the stored artifact reference.
func (r *BundleRenderer) Render(ctx context.Context, deck domain.Deck, template domain.Template) (string, error) {
	start := time.Now()
	if deck.JobID == "" {
		return "", fmt.Errorf("%w: deck has no job id", ErrRender)
	}
	if len(deck.Slides) == 0 {
		return "", fmt.Errorf("%w: deck has no slides", ErrRender)
	}
	if deck.Template == "" {
		deck.Template = template
	}

	assets, err := r.assets(deck)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRender, err)
	}
	ref, err := r.store.Write(ctx, BundleKey(deck.JobID), archive)
	if err != nil {
		return "", fmt.Errorf("%w: store bundle: %v", ErrRender, err)
	}

	r.logger.Info().
		Str("job_id", deck.JobID).
		Str("template", string(deck.Template)).
		Int("slides", len(deck.Slides)).
		Int("entries", len(assets)).
		Int("bytes", len(archive)).
		Dur("took", time.Since(start)).
		Msg("deck bundle rendered")
	return ref, nil
}

func (r *BundleRenderer) assets(deck domain.Deck) ([]zip.Asset, error) {
	model, err := json.MarshalIndent(deck, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode deck: %w", err)
	}
	assets := []zip.Asset{{Filename: "deck.json", MIME: "application/json", Data: model}}

	for i, s := range deck.Slides {
		if s.Kind != domain.SlideKindChart || s.Chart == nil {
			continue
		}
		data, err := chartWorkbook(*s.Chart)
		if err != nil {
			return nil, fmt.Errorf("slide %d workbook: %w", i+1, err)
		}
		assets = append(assets, zip.Asset{
			Filename: ChartWorkbookName(i),
			MIME:     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:     data,
		})
	}

	seen := make(map[string]struct{})
	for _, s := range deck.Slides {
		for _, img := range []struct {
			ref    string
			w, h   int
			prompt string
		}{
			{s.BackgroundImageRef, backgroundWidth, backgroundHeight, deck.Theme.Background + deck.Title},
			{s.ImageRef, illustrationSize, illustrationSize, s.ImageDescription + s.Title},
		} {
			name, ok := bundlePath(img.ref)
			if !ok {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			data, err := placeholderImage(img.w, img.h, img.prompt, deck.Theme.Palette)
			if err != nil {
				return nil, fmt.Errorf("image %s: %w", name, err)
			}
			assets = append(assets, zip.Asset{Filename: name, MIME: "image/png", Data: data})
		}
	}
	return assets, nil
}

// bundlePath accepts only relative .png references that stay inside the bundle.
func bundlePath(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || !strings.EqualFold(path.Ext(ref), ".png") {
		return "", false
	}
	clean := path.Clean(strings.TrimPrefix(ref, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", false
	}
	return clean, true
}
