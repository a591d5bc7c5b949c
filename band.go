package logocluster

import (
	"slices"
	"sort"
)

// band is a contiguous run of hash bits, numbered most significant first.
type band struct {
	start, width int
}

// bandLayout splits totalBits into threshold+1 disjoint bands. Two hashes at
// distance <= threshold differ in at most threshold bands, so they agree
// exactly on at least one: pairs sharing no band value can be skipped
// without changing the result. Returns nil when the split is impossible
// (more bands than bits, or a band wider than one key word).
func bandLayout(totalBits, threshold int) []band {
	nb := threshold + 1
	if nb > totalBits {
		return nil
	}
	bands := make([]band, nb)
	for k := range bands {
		start := k * totalBits / nb
		end := (k + 1) * totalBits / nb
		if end-start > 64 {
			return nil
		}
		bands[k] = band{start: start, width: end - start}
	}
	return bands
}

func (s hashSpace) bandKey(i int, b band) uint64 {
	h := s.hash(i)
	var key uint64
	for bit := b.start; bit < b.start+b.width; bit++ {
		key = key<<1 | (h[bit/64]>>(63-bit%64))&1
	}
	return key
}

// forEachBandedPair calls visit once for every pair i < j that shares at
// least one band value, in ascending (i, j) order.
func forEachBandedPair(sp hashSpace, n int, bands []band, visit func(i, j int)) {
	keys := make([][]uint64, len(bands))
	buckets := make([]map[uint64][]int32, len(bands))
	for b, bd := range bands {
		keys[b] = make([]uint64, n)
		buckets[b] = make(map[uint64][]int32)
		for i := range n {
			k := sp.bandKey(i, bd)
			keys[b][i] = k
			buckets[b][k] = append(buckets[b][k], int32(i))
		}
	}

	stamp := make([]int32, n)
	for i := range stamp {
		stamp[i] = -1
	}
	var cand []int32
	for i := range n {
		cand = cand[:0]
		for b := range bands {
			bucket := buckets[b][keys[b][i]]
			pos := sort.Search(len(bucket), func(p int) bool { return bucket[p] > int32(i) })
			for _, j := range bucket[pos:] {
				if stamp[j] != int32(i) {
					stamp[j] = int32(i)
					cand = append(cand, j)
				}
			}
		}
		slices.Sort(cand)
		for _, j := range cand {
			visit(i, int(j))
		}
	}
}
