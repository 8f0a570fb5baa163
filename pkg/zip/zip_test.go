package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	assets := []Asset{
		{Filename: "deck.json", MIME: "application/json", Data: []byte(`{"slides":[]}`)},
		{Filename: "charts/slide-02.xlsx", Data: []byte("xlsx")},
	}
	first, err := ArchiveAssets(assets)
	if err != nil {
		t.Fatalf("ArchiveAssets error: %v", err)
	}
	second, _ := ArchiveAssets(assets)
	if !bytes.Equal(first, second) {
		t.Fatal("archives of identical input differ")
	}

	zr, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "deck.json" {
		t.Fatalf("entries = %v", zr.File)
	}
	rc, _ := zr.File[0].Open()
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != `{"slides":[]}` {
		t.Fatalf("deck.json = %s", data)
	}

	if _, err := ArchiveAssets([]Asset{{Filename: "a"}, {Filename: "a"}}); err == nil {
		t.Fatal("expected duplicate entry error")
	}
}
