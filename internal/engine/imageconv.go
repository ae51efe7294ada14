package engine

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
)

// encodeFromPNG converts a WebDriver PNG screenshot to the requested format.
// WebP has no encoder here and fails with CAPTURE_FAILURE.
func encodeFromPNG(data []byte, format Format, quality int) ([]byte, error) {
	switch format {
	case FormatPNG, "":
		return data, nil
	case FormatJPEG:
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, NewError(CodeCaptureFailure, "decode screenshot", err)
		}
		if quality < 1 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, NewError(CodeCaptureFailure, "encode jpeg", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, NewError(CodeCaptureFailure, fmt.Sprintf("%s output is not available for WebDriver engines", format), nil)
	}
}
