package logocluster

import (
	"bytes"
	"image"

	"github.com/bep/imagemeta"
)

// EXIF orientation values (TIFF 6.0, tag 0x0112).
const (
	orientNormal     = 1
	orientFlipH      = 2
	orientRotate180  = 3
	orientFlipV      = 4
	orientTranspose  = 5
	orientRotate90   = 6
	orientTransverse = 7
	orientRotate270  = 8
)

// exifFormats maps image.DecodeConfig format names to the container formats
// imagemeta can scan for EXIF.
var exifFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"tiff": imagemeta.TIFF,
	"webp": imagemeta.WebP,
}

// readOrientation returns the EXIF orientation of the encoded image, or
// orientNormal when absent or unreadable. Metadata problems never fail a load.
func readOrientation(data []byte, format string) int {
	imgFormat, ok := exifFormats[format]
	if !ok {
		return orientNormal
	}

	orientation := orientNormal
	_, err := imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: imgFormat,
		Sources:     imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Source == imagemeta.EXIF && ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if v, ok := orientationValue(ti.Value); ok {
				orientation = v
			}
			return nil
		},
	})
	if err != nil {
		return orientNormal
	}
	return orientation
}

func orientationValue(v any) (int, bool) {
	var n int
	switch val := v.(type) {
	case uint16:
		n = int(val)
	case uint32:
		n = int(val)
	case uint8:
		n = int(val)
	case int:
		n = val
	case int64:
		n = int(val)
	case float64:
		n = int(val)
	case []uint16:
		if len(val) == 0 {
			return 0, false
		}
		n = int(val[0])
	default:
		return 0, false
	}
	if n < orientNormal || n > orientRotate270 {
		return 0, false
	}
	return n, true
}

// applyOrientation returns src transformed so it displays upright for the
// given EXIF orientation. src must be anchored at the origin.
func applyOrientation(src *image.RGBA, orientation int) *image.RGBA {
	if orientation <= orientNormal || orientation > orientRotate270 {
		return src
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()

	dw, dh := w, h
	if orientation >= orientTranspose {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := range dh {
		for x := range dw {
			var sx, sy int
			switch orientation {
			case orientFlipH:
				sx, sy = w-1-x, y
			case orientRotate180:
				sx, sy = w-1-x, h-1-y
			case orientFlipV:
				sx, sy = x, h-1-y
			case orientTranspose:
				sx, sy = y, x
			case orientRotate90:
				sx, sy = y, h-1-x
			case orientTransverse:
				sx, sy = w-1-y, h-1-x
			case orientRotate270:
				sx, sy = w-1-y, x
			}
			si := src.PixOffset(sx, sy)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}
	return dst
}
