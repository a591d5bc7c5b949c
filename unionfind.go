package logocluster

// disjointSet is a union-find forest over the indices 0..n-1 of the
// fingerprint slice. Not safe for concurrent use.
type disjointSet struct {
	parent []int32
	rank   []uint8
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{
		parent: make([]int32, n),
		rank:   make([]uint8, n),
	}
	for i := range ds.parent {
		ds.parent[i] = int32(i)
	}
	return ds
}

// find returns the root of x, halving the path on the way up.
func (ds *disjointSet) find(x int) int {
	for int(ds.parent[x]) != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = int(ds.parent[x])
	}
	return x
}

// union merges the sets holding x and y and reports whether they were
// separate.
func (ds *disjointSet) union(x, y int) bool {
	rx, ry := ds.find(x), ds.find(y)
	if rx == ry {
		return false
	}
	switch {
	case ds.rank[rx] < ds.rank[ry]:
		ds.parent[rx] = int32(ry)
	case ds.rank[rx] > ds.rank[ry]:
		ds.parent[ry] = int32(rx)
	default:
		ds.parent[ry] = int32(rx)
		ds.rank[rx]++
	}
	return true
}

func (ds *disjointSet) same(x, y int) bool {
	return ds.find(x) == ds.find(y)
}
