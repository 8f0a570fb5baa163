package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

const (
	backgroundWidth  = 1280
	backgroundHeight = 720
	illustrationSize = 640
)

// placeholderImage draws a striped PNG whose colours come from the theme
// palette, or from seed when the palette is too short. The same inputs always
// yield the same bytes.
func placeholderImage(width, height int, seed string, palette []string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := pickColor(palette, 0, seed)
	accent := pickColor(palette, 1, seed)
	diagonal := pickColor(palette, 3, seed)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	step := max(16, width/32)
	for x := 0; x < max(width, height); x += step {
		for y := 0; y < height; y++ {
			xx := x + y
			if xx >= width {
				break
			}
			img.Set(xx, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func pickColor(palette []string, i int, seed string) color.RGBA {
	if i < len(palette) {
		if c, ok := parseHexColor(palette[i]); ok {
			return c
		}
	}
	return colorFromSeed(seed, i)
}

func parseHexColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}

func colorFromSeed(seed string, shift int) color.RGBA {
	sum := sha256.Sum256([]byte(seed))
	hexed := hex.EncodeToString(sum[:])
	start := (shift * 6) % (len(hexed) - 6)
	c, _ := parseHexColor(hexed[start : start+6])
	return c
}
