package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

const (
	maxSignatureWidth  = 600
	maxSignatureHeight = 200

	// MaxSignaturePixels bounds what is decoded at all
	MaxSignaturePixels = 4096 * 4096
)

// DecodeSignature accepts raw base64 or a data URL and returns the image bytes
func DecodeSignature(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			return nil, errors.New("malformed data URL")
		}
		encoded = encoded[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "signature image is not valid base64")
	}
	if len(data) == 0 {
		return nil, errors.New("signature image is empty")
	}
	return data, nil
}

// NormalizeSignature decodes any supported image format and re-encodes it as a
// PNG no larger than the signature box.
func NormalizeSignature(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read signature image header")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxSignaturePixels {
		return nil, errors.Errorf("signature image of %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxSignaturePixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode signature image")
	}

	b := img.Bounds()
	if b.Dx() > maxSignatureWidth || b.Dy() > maxSignatureHeight {
		img = imaging.Fit(img, maxSignatureWidth, maxSignatureHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.Wrap(err, "failed to encode signature image")
	}
	return buf.Bytes(), nil
}
