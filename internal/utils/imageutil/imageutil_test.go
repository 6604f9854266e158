package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 30), uint8(y * 30), 128, 255})
		}
	}
	return img
}

func TestToPNGConvertsBitmap(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage()); err != nil {
		t.Fatalf("bmp encode: %v", err)
	}

	out, err := ToPNG(buf.Bytes())
	if err != nil {
		t.Fatalf("ToPNG: %v", err)
	}
	if ContentType(out) != MimePNG {
		t.Fatalf("content type = %s, want %s", ContentType(out), MimePNG)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestToPNGConvertsJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}

	out, err := ToPNG(buf.Bytes())
	if err != nil {
		t.Fatalf("ToPNG: %v", err)
	}
	if ContentType(out) != MimePNG {
		t.Errorf("content type = %s", ContentType(out))
	}
}

func TestToPNGPassThrough(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("png encode: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"png", buf.Bytes()},
		{"opaque bytes", bytes.Repeat([]byte{0x07}, 100)},
		{"bmp magic with garbage", append([]byte("BM"), bytes.Repeat([]byte{0x5A}, 98)...)},
		{"gif magic with garbage", append([]byte("GIF89a"), bytes.Repeat([]byte{0x5A}, 94)...)},
		{"jpeg magic with garbage", append([]byte{0xFF, 0xD8, 0xFF}, bytes.Repeat([]byte{0x5A}, 97)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ToPNG(tt.data)
			if err != nil {
				t.Fatalf("ToPNG: %v", err)
			}
			if !bytes.Equal(out, tt.data) {
				t.Error("payload was modified")
			}
		})
	}
}
