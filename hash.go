package logocluster

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// HashAlgorithm selects the perceptual hash construction.
type HashAlgorithm string

const (
	AlgorithmPHash HashAlgorithm = "phash" // DCT-based, robust to rescaling and recompression
	AlgorithmDHash HashAlgorithm = "dhash" // horizontal gradient
	AlgorithmAHash HashAlgorithm = "ahash" // mean threshold
)

// ParseHashAlgorithm validates a configured algorithm name.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch a := HashAlgorithm(s); a {
	case AlgorithmPHash, AlgorithmDHash, AlgorithmAHash:
		return a, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q (want phash, dhash or ahash)", s)
	}
}

func algorithmOf(kind goimagehash.Kind) HashAlgorithm {
	switch kind {
	case goimagehash.PHash:
		return AlgorithmPHash
	case goimagehash.DHash:
		return AlgorithmDHash
	case goimagehash.AHash:
		return AlgorithmAHash
	default:
		return HashAlgorithm(fmt.Sprintf("kind(%d)", kind))
	}
}

func (a HashAlgorithm) kind() goimagehash.Kind {
	switch a {
	case AlgorithmDHash:
		return goimagehash.DHash
	case AlgorithmAHash:
		return goimagehash.AHash
	default:
		return goimagehash.PHash
	}
}

// Fingerprint is the perceptual hash of one logo.
type Fingerprint struct {
	Record LogoRecord
	Hash   *goimagehash.ExtImageHash
}

// NewFingerprint builds a fingerprint from raw hash words. Bits is the
// logical bit length; unused high bits of words must be zero.
func NewFingerprint(rec LogoRecord, alg HashAlgorithm, words []uint64, bits int) Fingerprint {
	w := make([]uint64, len(words))
	copy(w, words)
	return Fingerprint{Record: rec, Hash: goimagehash.NewExtImageHash(w, alg.kind(), bits)}
}

// Bits returns the fingerprint length in bits.
func (f Fingerprint) Bits() int { return f.Hash.Bits() }

// Algorithm returns the hash construction that produced f.
func (f Fingerprint) Algorithm() HashAlgorithm { return algorithmOf(f.Hash.GetKind()) }

// String returns the kind-prefixed hex form, e.g. "p:c3a1...".
func (f Fingerprint) String() string { return f.Hash.ToString() }

// Hasher turns decoded images into fingerprints.
type Hasher struct {
	Algorithm HashAlgorithm // default: AlgorithmPHash
	Size      int           // grid side, default DefaultHashSize (8x8 = 64 bits)
}

// Validate reports a configuration the hash functions cannot honor.
func (h *Hasher) Validate() error {
	size := h.size()
	if size < 2 {
		return fmt.Errorf("hash size must be at least 2, got %d", size)
	}
	if _, err := ParseHashAlgorithm(string(h.algorithm())); err != nil {
		return err
	}
	if n := size * size; h.algorithm() == AlgorithmPHash && n&(n-1) != 0 {
		return fmt.Errorf("phash needs size*size to be a power of two, got %d", n)
	}
	return nil
}

func (h *Hasher) size() int {
	if h.Size <= 0 {
		return DefaultHashSize
	}
	return h.Size
}

func (h *Hasher) algorithm() HashAlgorithm {
	if h.Algorithm == "" {
		return AlgorithmPHash
	}
	return h.Algorithm
}

// Fingerprint hashes img on behalf of rec. Identical pixels always produce
// identical fingerprints.
func (h *Hasher) Fingerprint(rec LogoRecord, img image.Image) (Fingerprint, error) {
	if img == nil {
		return Fingerprint{}, &ImageDecodeError{Path: rec.LocalPath, Reason: ReasonHash, Err: fmt.Errorf("nil image")}
	}

	size := h.size()
	var (
		hash *goimagehash.ExtImageHash
		err  error
	)
	switch h.algorithm() {
	case AlgorithmDHash:
		hash, err = goimagehash.ExtDifferenceHash(img, size, size)
	case AlgorithmAHash:
		hash, err = goimagehash.ExtAverageHash(img, size, size)
	default:
		hash, err = goimagehash.ExtPerceptionHash(img, size, size)
	}
	if err != nil {
		return Fingerprint{}, &ImageDecodeError{Path: rec.LocalPath, Reason: ReasonHash, Err: err}
	}
	return Fingerprint{Record: rec, Hash: hash}, nil
}
