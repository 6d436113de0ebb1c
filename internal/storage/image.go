package storage

import (
	"bytes"
	"errors"
	"io"

	"github.com/disintegration/imaging"
)

// MaxLogoSide bounds the width and height of a stored avatar.
const MaxLogoSide = 512

var ErrNotImage = errors.New("file is not a valid image")

var formats = map[string]imaging.Format{
	".png": imaging.PNG,
	".jpg": imaging.JPEG,
	".gif": imaging.GIF,
}

// Prepare decodes an upload, shrinks it to fit MaxLogoSide and re-encodes
// it in its own format, which also drops embedded metadata. WebP has no
// decoder here and is stored as uploaded.
func Prepare(r io.Reader, ext string) ([]byte, error) {
	format, ok := formats[ext]
	if !ok {
		return io.ReadAll(r)
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotImage
	}
	b := img.Bounds()
	if b.Dx() > MaxLogoSide || b.Dy() > MaxLogoSide {
		img = imaging.Fit(img, MaxLogoSide, MaxLogoSide, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
