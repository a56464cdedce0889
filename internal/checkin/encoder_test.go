package checkin

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	qrcode "github.com/skip2/go-qrcode"
)

func TestQREncoder_Encode(t *testing.T) {
	t.Parallel()

	encoder := NewQREncoder(300, 2, qrcode.Medium)
	artifact, err := encoder.Encode(context.Background(), "http://localhost:3000/attendance?meeting=m-1&date=2024-01-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(artifact, prefix) {
		t.Fatalf("expected data url prefix, got %.40s", artifact)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(artifact, prefix))
	if err != nil {
		t.Fatalf("failed to decode base64 payload: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != bounds.Dy() {
		t.Fatalf("expected square image, got %v", bounds)
	}
	if bounds.Dx() > 300 || bounds.Dx() < 200 {
		t.Fatalf("expected width close to 300, got %d", bounds.Dx())
	}
	// The quiet zone is white.
	if r, g, b, _ := img.At(0, 0).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff {
		t.Fatalf("expected white margin pixel, got %d %d %d", r, g, b)
	}
}

func TestQREncoder_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewQREncoder(300, 2, qrcode.Medium).Encode(ctx, "http://localhost"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]qrcode.RecoveryLevel{
		"l": qrcode.Low,
		"":  qrcode.Medium,
		"M": qrcode.Medium,
		"q": qrcode.High,
		"H": qrcode.Highest,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("ParseLevel(%q) unexpected error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
	if _, err := ParseLevel("X"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
