// Package logocluster groups downloaded site logos into clusters of visually
// identical images using perceptual hashes and single-linkage clustering.
package logocluster

import (
	"runtime"
	"time"
)

// DefaultThreshold is the maximum Hamming distance (inclusive) between two
// 64-bit fingerprints for their logos to be linked into one cluster.
const DefaultThreshold = 8

// DefaultHashSize is the side of the hash grid: 8 gives a 64-bit fingerprint.
const DefaultHashSize = 8

// DefaultMaxPixels caps width*height of a decodable image.
const DefaultMaxPixels = 64 << 20

// LogoRecord is one manifest row: a site and the local file holding its logo.
type LogoRecord struct {
	Domain    string `json:"domain"`
	LocalPath string `json:"local_path"`
	Index     int    `json:"-"` // position in the manifest, used for stable ordering
}

// Config holds the pipeline settings. Zero values mean "use defaults".
type Config struct {
	Threshold int           // max Hamming distance, inclusive (default: DefaultThreshold)
	Algorithm HashAlgorithm // default: AlgorithmPHash
	HashSize  int           // hash grid side (default: DefaultHashSize)
	Strategy  Strategy      // default: StrategyAuto
	Workers   int           // parallel decode+hash tasks (default: runtime.NumCPU())
	MaxPixels int           // decode guard (default: DefaultMaxPixels)

	// BandedMinInputs is the input size from which StrategyAuto switches to
	// the banded pre-filter (default: 512).
	BandedMinInputs int

	// Optional callbacks for metrics/progress. OnFingerprint and
	// OnLoadFailure run on worker goroutines and must be safe for concurrent use.
	OnStart       func(total int)
	OnFingerprint func(rec LogoRecord, elapsed time.Duration)
	OnLoadFailure func(rec LogoRecord, err *ImageDecodeError)
	OnClustered   func(ClusterResult)
}

// ExactMatch is the Config.Threshold value that links only bit-identical
// fingerprints (the zero value already means DefaultThreshold).
const ExactMatch = -1

func (c *Config) defaults() {
	switch {
	case c.Threshold == ExactMatch:
		c.Threshold = 0
	case c.Threshold <= 0:
		c.Threshold = DefaultThreshold
	}
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmPHash
	}
	if c.HashSize <= 0 {
		c.HashSize = DefaultHashSize
	}
	if c.Strategy == "" {
		c.Strategy = StrategyAuto
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = DefaultMaxPixels
	}
	if c.BandedMinInputs <= 0 {
		c.BandedMinInputs = defaultBandedMinInputs
	}
}

func (c *Config) hasher() *Hasher {
	return &Hasher{Algorithm: c.Algorithm, Size: c.HashSize}
}

func (c *Config) clusterOptions() ClusterOptions {
	return ClusterOptions{
		Threshold:       c.Threshold,
		Strategy:        c.Strategy,
		BandedMinInputs: c.BandedMinInputs,
	}
}
