package imageutil

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

const MimePNG = "image/png"

// ToPNG re-encodes BMP, WebP, JPEG and GIF rasters as PNG. PNG, any payload
// it does not recognize and anything that fails to decode is returned as is.
func ToPNG(data []byte) ([]byte, error) {
	mtype := mimetype.Detect(data)

	var (
		img image.Image
		err error
	)
	switch {
	case mtype.Is(MimePNG):
		return data, nil
	case mtype.Is("image/bmp"):
		img, err = bmp.Decode(bytes.NewReader(data))
	case mtype.Is("image/webp"):
		img, err = webp.Decode(bytes.NewReader(data))
	case mtype.Is("image/jpeg"):
		img, err = jpeg.Decode(bytes.NewReader(data))
	case mtype.Is("image/gif"):
		img, err = gif.Decode(bytes.NewReader(data))
	default:
		return data, nil
	}

	if err != nil {
		return data, nil
	}

	var output bytes.Buffer
	if err := png.Encode(&output, img); err != nil {
		return nil, fmt.Errorf("failed to encode %s image as png: %w", mtype.String(), err)
	}

	return output.Bytes(), nil
}

// ContentType returns the detected MIME type of data.
func ContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
