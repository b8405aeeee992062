package photograde

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder.
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"  // Register BMP decoder.
	_ "golang.org/x/image/tiff" // Register TIFF decoder.
	_ "golang.org/x/image/webp" // Register WebP decoder.
)

// DefaultQuality is the JPEG quality used when a request does not set one.
const DefaultQuality = 90

// DecodeImage reads any registered raster format into a float buffer and
// reports the detected format name.
func DecodeImage(r io.Reader) (*Buffer, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return FromImage(img), format, nil
}

// LoadImage reads and decodes an image file.
func LoadImage(path string) (*Buffer, string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return DecodeImage(f)
}

// EncodeImage quantizes the buffer and writes it as format ("jpeg" or
// "png"), downscaling to maxWidth first when the buffer is wider.
// Unknown formats fall back to JPEG.
func EncodeImage(w io.Writer, buf *Buffer, format string, quality, maxWidth int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var img image.Image = buf.ToImage()
	if maxWidth > 0 && buf.Width > maxWidth {
		img = resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	}
	switch normalizeFormat(format) {
	case "png":
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
	}
	return nil
}

// EncodeBytes renders the buffer into an in-memory encoded image.
func EncodeBytes(buf *Buffer, format string, quality, maxWidth int) ([]byte, error) {
	var out bytes.Buffer
	if err := EncodeImage(&out, buf, format, quality, maxWidth); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// SaveImage encodes the buffer to path.
func SaveImage(buf *Buffer, path, format string, quality, maxWidth int) error {
	data, err := EncodeBytes(buf, format, quality, maxWidth)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func normalizeFormat(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "png"
	case "jpg", "jpeg", "":
		return "jpeg"
	default:
		return "jpeg"
	}
}

// formatExt returns the file extension for a normalized format.
func formatExt(format string) string {
	if normalizeFormat(format) == "png" {
		return "png"
	}
	return "jpg"
}
