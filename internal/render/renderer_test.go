package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image/png"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"deckgen/internal/domain"
	"deckgen/internal/storage"
)

func sampleDeck() domain.Deck {
	return domain.Deck{
		JobID:    "job-1",
		Title:    "Renewable Energy Outlook",
		Template: domain.TemplateCorporate,
		Theme:    domain.Theme{Palette: []string{"#1F3A5F", "#4F6D8C", "#E8EEF4", "#F2A541"}, FontFamily: "Inter"},
		Slides: []domain.SlideSpec{
			{Title: "Renewable Energy Outlook", Kind: domain.SlideKindTitle, Role: domain.SlideRoleTitle, BackgroundImageRef: "images/background.png"},
			{Title: "Capacity growth", Kind: domain.SlideKindChart, Role: domain.SlideRoleDetail, Chart: &domain.Chart{
				Type:       domain.ChartTypeBar,
				Categories: []string{"2022", "2023", "2024"},
				Series:     []domain.Series{{Name: "Solar", Values: []float64{10, 14, 21}}, {Name: "Wind", Values: []float64{8, 9, 12}}},
			}},
			{Title: "Field work", Kind: domain.SlideKindImageText, Role: domain.SlideRoleDetail, ImageRef: "images/slide-03.png", ImageDescription: "wind turbines at dusk"},
			{Title: "Share of supply", Kind: domain.SlideKindChart, Role: domain.SlideRoleDetail, Chart: &domain.Chart{
				Type:       domain.ChartTypePie,
				Categories: []string{"Solar", "Wind"},
				Series:     []domain.Series{{Name: "Share", Values: []float64{60, 40}}},
			}},
			{Title: "Conclusion", Kind: domain.SlideKindBullets, Role: domain.SlideRoleSummary, Bullets: []string{"Keep building"}},
		},
	}
}

func readBundle(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = b
	}
	return out
}

func TestRenderWritesBundle(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	r := NewBundleRenderer(store, zerolog.Nop())

	ref, err := r.Render(ctx, sampleDeck(), domain.TemplateCorporate)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if ref != "decks/job-1/deck.zip" {
		t.Fatalf("ref = %q", ref)
	}
	data, err := store.Read(ctx, ref)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	entries := readBundle(t, data)

	for _, name := range []string{"deck.json", "charts/slide-02.xlsx", "charts/slide-04.xlsx", "images/background.png", "images/slide-03.png"} {
		if _, ok := entries[name]; !ok {
			t.Fatalf("bundle is missing %s (have %d entries)", name, len(entries))
		}
	}
	if len(entries) != 5 {
		t.Fatalf("bundle has %d entries, want 5", len(entries))
	}

	wb, err := excelize.OpenReader(bytes.NewReader(entries["charts/slide-02.xlsx"]))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()
	rows, err := wb.GetRows(chartSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 4 || rows[0][0] != "Category" || rows[0][1] != "Solar" || rows[0][2] != "Wind" || rows[3][1] != "21" {
		t.Fatalf("rows = %#v", rows)
	}

	bg, err := png.Decode(bytes.NewReader(entries["images/background.png"]))
	if err != nil {
		t.Fatalf("decode background: %v", err)
	}
	if b := bg.Bounds(); b.Dx() != backgroundWidth || b.Dy() != backgroundHeight {
		t.Fatalf("background bounds = %v", b)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	ctx := context.Background()
	store, _ := storage.NewFileStore(t.TempDir())
	r := NewBundleRenderer(store, zerolog.Nop())

	deck := sampleDeck()
	deck.Slides = append(deck.Slides[:1], deck.Slides[2], deck.Slides[4])
	ref, err := r.Render(ctx, deck, domain.TemplateCorporate)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	first, _ := store.Read(ctx, ref)
	if _, err := r.Render(ctx, deck, domain.TemplateCorporate); err != nil {
		t.Fatalf("Render error: %v", err)
	}
	second, _ := store.Read(ctx, ref)
	if !bytes.Equal(first, second) {
		t.Fatal("rendering the same deck twice produced different bundles")
	}
}

type failingStore struct{}

func (failingStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) Read(ctx context.Context, key string) ([]byte, error) {
	return nil, domain.ErrNotFound
}

func TestRenderFailuresWrapErrRender(t *testing.T) {
	tests := []struct {
		name  string
		store domain.ArtifactStore
		deck  func() domain.Deck
	}{
		{name: "no job id", store: failingStore{}, deck: func() domain.Deck { d := sampleDeck(); d.JobID = ""; return d }},
		{name: "no slides", store: failingStore{}, deck: func() domain.Deck { d := sampleDeck(); d.Slides = nil; return d }},
		{name: "store failure", store: failingStore{}, deck: sampleDeck},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBundleRenderer(tc.store, zerolog.Nop()).Render(context.Background(), tc.deck(), domain.TemplateCorporate)
			if !errors.Is(err, ErrRender) {
				t.Fatalf("Render = %v, want ErrRender", err)
			}
		})
	}
}

func TestBundlePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "images/background.png", want: "images/background.png", ok: true},
		{in: "/images/a.PNG", want: "images/a.PNG", ok: true},
		{in: "../escape.png"},
		{in: "images/photo.jpg"},
		{in: ""},
	}
	for _, tc := range tests {
		got, ok := bundlePath(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("bundlePath(%q) = %q, %v", tc.in, got, ok)
		}
	}
}
