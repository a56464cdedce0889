package checkin

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Encoder renders a check-in URL into an image-as-text artifact.
type Encoder interface {
	Encode(ctx context.Context, content string) (string, error)
}

// QREncoder renders PNG QR codes as data URLs.
type QREncoder struct {
	// Size is the requested image width in pixels.
	Size int
	// Margin is the quiet zone in modules.
	Margin int
	Level  qrcode.RecoveryLevel
}

// NewQREncoder returns an encoder with the given pixel size, quiet zone margin
// in modules and error correction level.
func NewQREncoder(size, margin int, level qrcode.RecoveryLevel) *QREncoder {
	if size <= 0 {
		size = 300
	}
	if margin < 0 {
		margin = 0
	}
	return &QREncoder{Size: size, Margin: margin, Level: level}
}

// ParseLevel maps L, M, Q and H to go-qrcode recovery levels.
func ParseLevel(value string) (qrcode.RecoveryLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "L":
		return qrcode.Low, nil
	case "", "M":
		return qrcode.Medium, nil
	case "Q":
		return qrcode.High, nil
	case "H":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, fmt.Errorf("checkin: unknown error correction level %q", value)
	}
}

// Encode renders content and returns a data:image/png;base64 string.
func (e *QREncoder) Encode(ctx context.Context, content string) (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: encoder is nil", ErrEncode)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	code, err := qrcode.New(content, e.Level)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	code.DisableBorder = true

	var buf bytes.Buffer
	if err := png.Encode(&buf, e.render(code.Bitmap())); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// render draws the module bitmap with a Margin module quiet zone, scaled to
// the largest whole module size that fits within Size pixels.
func (e *QREncoder) render(bitmap [][]bool) image.Image {
	modules := len(bitmap) + 2*e.Margin
	scale := 1
	if modules > 0 && e.Size/modules > 1 {
		scale = e.Size / modules
	}
	width := modules * scale

	img := image.NewPaletted(image.Rect(0, 0, width, width), color.Palette{color.White, color.Black})
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			left := (x + e.Margin) * scale
			top := (y + e.Margin) * scale
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetColorIndex(left+dx, top+dy, 1)
				}
			}
		}
	}
	return img
}
