package logocluster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadImage reads and decodes the logo at path with the default pixel cap.
// The result is an opaque RGBA grid: transparent areas are composited onto
// white and EXIF orientation is applied. Failures are *ImageDecodeError.
func LoadImage(path string) (image.Image, error) {
	img, err := loadImage(path, DefaultMaxPixels)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func loadImage(path string, maxPixels int) (*image.RGBA, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ImageDecodeError{Path: path, Reason: ReasonMissing, Err: err}
		}
		return nil, &ImageDecodeError{Path: path, Reason: ReasonUnreadable, Err: err}
	}
	if len(data) == 0 {
		return nil, &ImageDecodeError{Path: path, Reason: ReasonEmpty}
	}
	if isSVG(path, data) {
		return nil, &ImageDecodeError{Path: path, Reason: ReasonUnsupported, Err: errors.New("svg is not supported")}
	}

	if zeroSizeHeader(data) {
		return nil, &ImageDecodeError{Path: path, Reason: ReasonEmpty, Err: errors.New("zero width or height")}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, &ImageDecodeError{Path: path, Reason: ReasonUnsupported, Err: err}
		}
		return nil, &ImageDecodeError{Path: path, Reason: ReasonCorrupt, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &ImageDecodeError{Path: path, Reason: ReasonEmpty}
	}
	if maxPixels > 0 && cfg.Width > maxPixels/cfg.Height {
		return nil, &ImageDecodeError{Path: path, Reason: ReasonTooLarge}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ImageDecodeError{Path: path, Reason: ReasonCorrupt, Err: err}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ImageDecodeError{Path: path, Reason: ReasonEmpty}
	}

	flat := flattenOnWhite(img)
	return applyOrientation(flat, readOrientation(data, format)), nil
}

// flattenOnWhite composites img over an opaque white canvas anchored at the
// origin, so transparent logos hash like the same logo on a white page.
func flattenOnWhite(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// zeroSizeHeader reports a PNG or GIF whose header declares a zero width or
// height. The decoders reject those as malformed; they are empty images.
func zeroSizeHeader(data []byte) bool {
	switch {
	case len(data) >= 24 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) && string(data[12:16]) == "IHDR":
		return binary.BigEndian.Uint32(data[16:20]) == 0 || binary.BigEndian.Uint32(data[20:24]) == 0
	case len(data) >= 10 && (bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))):
		return binary.LittleEndian.Uint16(data[6:8]) == 0 || binary.LittleEndian.Uint16(data[8:10]) == 0
	}
	return false
}

func isSVG(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return true
	}
	const sniffLen = 512
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	head = bytes.TrimSpace(head)
	return bytes.HasPrefix(head, []byte("<svg")) ||
		(bytes.HasPrefix(head, []byte("<?xml")) && bytes.Contains(head, []byte("<svg")))
}
