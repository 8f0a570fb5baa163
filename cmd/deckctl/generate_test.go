package main

import (
	"os"
	"path/filepath"
	"testing"

	"deckgen/internal/domain"
)

func TestGenerateOptionsRequest(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "deck.yaml")
	content := "topic: Urban mobility in 2030\nslide_count: 9\naudience: executive\ntemplate: startup\n"
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		opts    generateOptions
		want    domain.DeckRequest
		wantErr bool
	}{
		{
			name: "file only",
			opts: generateOptions{requestFile: file},
			want: domain.DeckRequest{Topic: "Urban mobility in 2030", SlideCount: 9, Audience: domain.AudienceExecutive, Template: domain.TemplateStartup},
		},
		{
			name: "flags override file",
			opts: generateOptions{requestFile: file, slides: 12, template: "minimal", locale: "id"},
			want: domain.DeckRequest{Topic: "Urban mobility in 2030", SlideCount: 12, Audience: domain.AudienceExecutive, Template: domain.TemplateMinimal, Locale: "id"},
		},
		{
			name: "flags only",
			opts: generateOptions{topic: "Cloud cost control", slides: 6, audience: "technical", template: "corporate"},
			want: domain.DeckRequest{Topic: "Cloud cost control", SlideCount: 6, Audience: domain.AudienceTechnical, Template: domain.TemplateCorporate},
		},
		{name: "missing topic", opts: generateOptions{slides: 6}, wantErr: true},
		{name: "missing file", opts: generateOptions{requestFile: filepath.Join(dir, "nope.yaml")}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.opts.request()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("request() error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("request() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
