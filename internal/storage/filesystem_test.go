package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"deckgen/internal/domain"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "decks/a/deck.zip", want: "decks/a/deck.zip"},
		{key: "/decks//a/./outline.json", want: "decks/a/outline.json"},
		{key: `decks\a\deck.json`, want: "decks/a/deck.json"},
		{key: "../etc/passwd", wantErr: true},
		{key: "decks/../../x", wantErr: true},
		{key: "..", wantErr: true},
		{key: " ", wantErr: true},
	}
	for _, tc := range tests {
		got, err := sanitizeKey(tc.key)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("sanitizeKey(%q) = %q, want error", tc.key, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tc.key, got, err, tc.want)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	ctx := context.Background()
	key, err := store.Write(ctx, "/decks/job-1/deck.json", []byte(`{"slides":[]}`))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if key != "decks/job-1/deck.json" {
		t.Fatalf("key = %q", key)
	}
	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(data) != `{"slides":[]}` {
		t.Fatalf("data = %s", data)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "decks", "job-1"))
	if len(entries) != 1 {
		t.Fatalf("expected only the published file, found %d entries", len(entries))
	}
	if _, err := store.Read(ctx, "decks/missing.zip"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Read missing = %v, want ErrNotFound", err)
	}
}
