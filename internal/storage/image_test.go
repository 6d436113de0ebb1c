package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepare_KeepsSmallImages(t *testing.T) {
	out, err := Prepare(bytes.NewReader(encodePNG(t, 64, 32)), ".png")
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 32, cfg.Height)
}

func TestPrepare_ShrinksLargeImages(t *testing.T) {
	out, err := Prepare(bytes.NewReader(encodePNG(t, 2048, 1024)), ".png")
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, MaxLogoSide, cfg.Width)
	assert.Equal(t, MaxLogoSide/2, cfg.Height)
}

func TestPrepare_RejectsGarbage(t *testing.T) {
	_, err := Prepare(strings.NewReader("\x89PNG\r\n\x1a\nnot really"), ".png")
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestPrepare_WebPPassesThrough(t *testing.T) {
	raw := []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
	out, err := Prepare(bytes.NewReader(raw), ".webp")
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}
