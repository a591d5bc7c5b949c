package logocluster

import (
	"fmt"
	"math/bits"
)

const defaultBandedMinInputs = 512

// Strategy selects how candidate pairs are enumerated. Every strategy yields
// the same partition.
type Strategy string

const (
	StrategyAuto       Strategy = "auto"       // banded from BandedMinInputs inputs on
	StrategyExhaustive Strategy = "exhaustive" // all N(N-1)/2 pairs
	StrategyBanded     Strategy = "banded"     // exact pigeonhole band pre-filter
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyAuto, StrategyExhaustive, StrategyBanded:
		return st, nil
	default:
		return "", fmt.Errorf("unknown cluster strategy %q (want auto, exhaustive or banded)", s)
	}
}

// ClusterOptions configures BuildClusters.
type ClusterOptions struct {
	Threshold       int // inclusive; 0 links only identical fingerprints
	Strategy        Strategy
	BandedMinInputs int
}

// Cluster is one group of logos linked by chains of near-identical
// fingerprints. Members are in input order; the representative is the
// first member.
type Cluster struct {
	ID             int          `json:"id"`
	Representative LogoRecord   `json:"representative"`
	Members        []LogoRecord `json:"members"`
}

// Size returns the number of members.
func (c Cluster) Size() int { return len(c.Members) }

// ClusterResult is the frozen output of BuildClusters.
type ClusterResult struct {
	Clusters    []Cluster
	Threshold   int
	Strategy    Strategy // the strategy actually used
	Comparisons int64    // distance evaluations performed
	Merges      int      // unions that joined two separate sets
}

// BuildClusters partitions fps into the connected components of the graph
// whose edges join fingerprints at distance <= opts.Threshold. The slice
// order is the input order: it fixes cluster IDs, member order and
// representatives, so equal inputs always give identical results.
func BuildClusters(fps []Fingerprint, opts ClusterOptions) (ClusterResult, error) {
	if opts.Threshold < 0 {
		return ClusterResult{}, fmt.Errorf("threshold must be >= 0, got %d", opts.Threshold)
	}
	res := ClusterResult{Threshold: opts.Threshold, Strategy: StrategyExhaustive}
	n := len(fps)
	if n == 0 {
		return res, nil
	}

	for i := 1; i < n; i++ {
		if err := compatible(fps[0], fps[i]); err != nil {
			return ClusterResult{}, fmt.Errorf("fingerprint %d (%s): %w", i, fps[i].Record.Domain, err)
		}
	}
	if fps[0].Hash == nil {
		return ClusterResult{}, &IncompatibleFingerprintError{}
	}

	words := len(fps[0].Hash.GetHash())
	arena := make([]uint64, 0, n*words)
	for _, fp := range fps {
		arena = append(arena, fp.Hash.GetHash()...)
	}
	sp := hashSpace{words: words, arena: arena}

	ds := newDisjointSet(n)
	link := func(i, j int) {
		res.Comparisons++
		if sp.distance(i, j) <= opts.Threshold && ds.union(i, j) {
			res.Merges++
		}
	}

	bands := bandLayout(words*64, opts.Threshold)
	if useBanded(opts, n, bands) {
		res.Strategy = StrategyBanded
		forEachBandedPair(sp, n, bands, link)
	} else {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				link(i, j)
			}
		}
	}

	res.Clusters = freeze(fps, ds)
	return res, nil
}

func useBanded(opts ClusterOptions, n int, bands []band) bool {
	if bands == nil {
		return false
	}
	switch opts.Strategy {
	case StrategyBanded:
		return true
	case StrategyExhaustive:
		return false
	default:
		minInputs := opts.BandedMinInputs
		if minInputs <= 0 {
			minInputs = defaultBandedMinInputs
		}
		return n >= minInputs
	}
}

// freeze turns the forest into clusters, numbering them by first
// appearance in input order.
func freeze(fps []Fingerprint, ds *disjointSet) []Cluster {
	slot := make([]int32, len(fps))
	for i := range slot {
		slot[i] = -1
	}
	var clusters []Cluster
	for i, fp := range fps {
		root := ds.find(i)
		idx := slot[root]
		if idx < 0 {
			idx = int32(len(clusters))
			slot[root] = idx
			clusters = append(clusters, Cluster{ID: len(clusters) + 1, Representative: fp.Record})
		}
		clusters[idx].Members = append(clusters[idx].Members, fp.Record)
	}
	return clusters
}

// hashSpace stores all fingerprints contiguously, words per fingerprint.
type hashSpace struct {
	words int
	arena []uint64
}

func (s hashSpace) hash(i int) []uint64 {
	return s.arena[i*s.words : (i+1)*s.words]
}

func (s hashSpace) distance(i, j int) int {
	a, b := s.hash(i), s.hash(j)
	d := 0
	for k := range a {
		d += bits.OnesCount64(a[k] ^ b[k])
	}
	return d
}
