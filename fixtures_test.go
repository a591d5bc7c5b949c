package logocluster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/draw"
)

// makeLogo returns a smooth grayscale-ish RGBA pattern of size w x h: an 8x8
// grid of seeded random levels, bilinearly interpolated. Different seeds give
// unrelated images; the same seed always gives the same pixels.
func makeLogo(seed uint64, w, h int) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	const grid = 8
	var levels [grid + 1][grid + 1]float64
	for y := range levels {
		for x := range levels[y] {
			levels[y][x] = rng.Float64() * 255
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		fy := float64(y) / float64(h) * grid
		y0 := int(fy)
		ty := fy - float64(y0)
		for x := range w {
			fx := float64(x) / float64(w) * grid
			x0 := int(fx)
			tx := fx - float64(x0)
			top := levels[y0][x0]*(1-tx) + levels[y0][x0+1]*tx
			bottom := levels[y0+1][x0]*(1-tx) + levels[y0+1][x0+1]*tx
			v := uint8(top*(1-ty) + bottom*ty)
			img.Set(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	return img
}

func rescale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// bitsFP builds an 8-bit toy fingerprint from a binary literal like "00000011".
func bitsFP(t *testing.T, domain, literal string) Fingerprint {
	t.Helper()
	var v uint64
	for _, c := range literal {
		v <<= 1
		switch c {
		case '1':
			v |= 1
		case '0':
		default:
			t.Fatalf("bad bit literal %q", literal)
		}
	}
	return NewFingerprint(LogoRecord{Domain: domain}, AlgorithmPHash, []uint64{v}, len(literal))
}

// family generates groups*perGroup shuffled 64-bit fingerprints: each group
// starts from a random base and its members flip up to maxFlips of its bits.
func family(seed uint64, groups, perGroup, maxFlips int) []Fingerprint {
	rng := rand.New(rand.NewPCG(seed, 7))
	var fps []Fingerprint
	for g := range groups {
		base := rng.Uint64()
		for m := range perGroup {
			h := base
			for range rng.IntN(maxFlips + 1) {
				h ^= 1 << rng.IntN(64)
			}
			rec := LogoRecord{Domain: fmt.Sprintf("g%d-m%d.example", g, m)}
			fps = append(fps, NewFingerprint(rec, AlgorithmPHash, []uint64{h}, 64))
		}
	}
	rng.Shuffle(len(fps), func(i, j int) { fps[i], fps[j] = fps[j], fps[i] })
	for i := range fps {
		fps[i].Record.Index = i
	}
	return fps
}

// assignment maps each domain to the ID of its cluster.
func assignment(clusters []Cluster) map[string]int {
	out := make(map[string]int)
	for _, c := range clusters {
		for _, m := range c.Members {
			out[m.Domain] = c.ID
		}
	}
	return out
}
