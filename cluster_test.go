package logocluster

import (
	"errors"
	"reflect"
	"slices"
	"testing"
)

func domains(recs []LogoRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Domain
	}
	return out
}

func TestBuildClusters_Scenario(t *testing.T) {
	t.Parallel()
	fps := []Fingerprint{
		bitsFP(t, "a.com", "00000000"),
		bitsFP(t, "b.com", "00000011"),
		bitsFP(t, "c.com", "11111111"),
	}

	for _, strategy := range []Strategy{StrategyExhaustive, StrategyBanded} {
		t.Run(string(strategy), func(t *testing.T) {
			t.Parallel()
			res, err := BuildClusters(fps, ClusterOptions{Threshold: 2, Strategy: strategy})
			if err != nil {
				t.Fatalf("BuildClusters: %v", err)
			}
			if len(res.Clusters) != 2 {
				t.Fatalf("got %d clusters, want 2", len(res.Clusters))
			}
			first, second := res.Clusters[0], res.Clusters[1]
			if first.ID != 1 || !slices.Equal(domains(first.Members), []string{"a.com", "b.com"}) {
				t.Errorf("cluster 1 = %+v", first)
			}
			if first.Representative.Domain != "a.com" {
				t.Errorf("representative = %s, want a.com", first.Representative.Domain)
			}
			if second.ID != 2 || !slices.Equal(domains(second.Members), []string{"c.com"}) {
				t.Errorf("cluster 2 = %+v", second)
			}
			if res.Strategy != strategy {
				t.Errorf("strategy = %s, want %s", res.Strategy, strategy)
			}
		})
	}
}

func TestBuildClusters_ThresholdInclusive(t *testing.T) {
	t.Parallel()
	fps := []Fingerprint{
		bitsFP(t, "a.com", "00000000"),
		bitsFP(t, "b.com", "00001111"),
	}
	tests := []struct {
		threshold int
		want      int
	}{
		{3, 2},
		{4, 1},
		{5, 1},
	}
	for _, tt := range tests {
		res, err := BuildClusters(fps, ClusterOptions{Threshold: tt.threshold})
		if err != nil {
			t.Fatalf("BuildClusters: %v", err)
		}
		if len(res.Clusters) != tt.want {
			t.Errorf("threshold %d: %d clusters, want %d", tt.threshold, len(res.Clusters), tt.want)
		}
	}
}

func TestBuildClusters_Transitive(t *testing.T) {
	t.Parallel()
	// a-b and b-c are within 2, a-c is 4 apart: single linkage joins all three.
	fps := []Fingerprint{
		bitsFP(t, "a.com", "00000000"),
		bitsFP(t, "b.com", "00000011"),
		bitsFP(t, "c.com", "00001111"),
	}
	res, err := BuildClusters(fps, ClusterOptions{Threshold: 2})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if len(res.Clusters) != 1 || res.Clusters[0].Size() != 3 {
		t.Fatalf("clusters = %+v, want one of size 3", res.Clusters)
	}
	if res.Merges != 2 {
		t.Errorf("merges = %d, want 2", res.Merges)
	}
}

func TestBuildClusters_ZeroThreshold(t *testing.T) {
	t.Parallel()
	fps := []Fingerprint{
		bitsFP(t, "a.com", "10101010"),
		bitsFP(t, "b.com", "10101011"),
		bitsFP(t, "c.com", "10101010"),
	}
	res, err := BuildClusters(fps, ClusterOptions{Threshold: 0, Strategy: StrategyBanded})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	got := assignment(res.Clusters)
	if got["a.com"] != got["c.com"] || got["a.com"] == got["b.com"] {
		t.Errorf("assignment = %v, want a and c together, b alone", got)
	}
}

func TestBuildClusters_Empty(t *testing.T) {
	t.Parallel()
	res, err := BuildClusters(nil, ClusterOptions{Threshold: DefaultThreshold})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if len(res.Clusters) != 0 || res.Comparisons != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestBuildClusters_Single(t *testing.T) {
	t.Parallel()
	res, err := BuildClusters([]Fingerprint{bitsFP(t, "a.com", "00000001")}, ClusterOptions{Threshold: 8})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if len(res.Clusters) != 1 || res.Clusters[0].Size() != 1 || res.Clusters[0].ID != 1 {
		t.Errorf("clusters = %+v, want one singleton", res.Clusters)
	}
}

func TestBuildClusters_Errors(t *testing.T) {
	t.Parallel()
	if _, err := BuildClusters(nil, ClusterOptions{Threshold: -1}); err == nil {
		t.Error("negative threshold: want error")
	}

	mixed := []Fingerprint{
		NewFingerprint(LogoRecord{Domain: "a.com"}, AlgorithmPHash, []uint64{0}, 64),
		NewFingerprint(LogoRecord{Domain: "b.com"}, AlgorithmDHash, []uint64{0}, 64),
	}
	_, err := BuildClusters(mixed, ClusterOptions{Threshold: 8})
	var incompat *IncompatibleFingerprintError
	if !errors.As(err, &incompat) {
		t.Fatalf("mixed kinds: err = %v, want *IncompatibleFingerprintError", err)
	}
}

func TestBuildClusters_Partition(t *testing.T) {
	t.Parallel()
	fps := family(1, 20, 5, 6)
	res, err := BuildClusters(fps, ClusterOptions{Threshold: DefaultThreshold})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}

	seen := make(map[string]int)
	total := 0
	for k, c := range res.Clusters {
		if c.ID != k+1 {
			t.Errorf("cluster %d has ID %d", k, c.ID)
		}
		if c.Size() == 0 {
			t.Errorf("cluster %d is empty", c.ID)
		}
		if c.Representative != c.Members[0] {
			t.Errorf("cluster %d representative is not its first member", c.ID)
		}
		for m := 1; m < len(c.Members); m++ {
			if c.Members[m-1].Index >= c.Members[m].Index {
				t.Errorf("cluster %d members out of input order", c.ID)
			}
		}
		for _, m := range c.Members {
			seen[m.Domain]++
			total++
		}
	}
	if total != len(fps) || len(seen) != len(fps) {
		t.Fatalf("partition covers %d members (%d distinct), want %d", total, len(seen), len(fps))
	}

	// Any two fingerprints within the threshold must share a cluster.
	got := assignment(res.Clusters)
	for i := range fps {
		for j := i + 1; j < len(fps); j++ {
			d, _ := Distance(fps[i], fps[j])
			if d <= DefaultThreshold && got[fps[i].Record.Domain] != got[fps[j].Record.Domain] {
				t.Errorf("%s and %s are %d apart but in different clusters",
					fps[i].Record.Domain, fps[j].Record.Domain, d)
			}
		}
	}
}

func TestBuildClusters_BandedMatchesExhaustive(t *testing.T) {
	t.Parallel()
	for _, threshold := range []int{0, 2, 5, 8, 12} {
		fps := family(uint64(threshold)+10, 40, 6, threshold+2)
		ex, err := BuildClusters(fps, ClusterOptions{Threshold: threshold, Strategy: StrategyExhaustive})
		if err != nil {
			t.Fatalf("exhaustive: %v", err)
		}
		bd, err := BuildClusters(fps, ClusterOptions{Threshold: threshold, Strategy: StrategyBanded})
		if err != nil {
			t.Fatalf("banded: %v", err)
		}
		if bd.Strategy != StrategyBanded {
			t.Fatalf("threshold %d: banded run used %s", threshold, bd.Strategy)
		}
		if !reflect.DeepEqual(ex.Clusters, bd.Clusters) {
			t.Errorf("threshold %d: banded and exhaustive partitions differ", threshold)
		}
		if bd.Comparisons > ex.Comparisons {
			t.Errorf("threshold %d: banded compared %d pairs, exhaustive %d", threshold, bd.Comparisons, ex.Comparisons)
		}
	}
}

func TestBuildClusters_AutoStrategy(t *testing.T) {
	t.Parallel()
	fps := family(3, 10, 3, 4)
	small, err := BuildClusters(fps, ClusterOptions{Threshold: 8, Strategy: StrategyAuto, BandedMinInputs: 100})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if small.Strategy != StrategyExhaustive {
		t.Errorf("below BandedMinInputs: strategy = %s", small.Strategy)
	}
	large, err := BuildClusters(fps, ClusterOptions{Threshold: 8, Strategy: StrategyAuto, BandedMinInputs: 10})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if large.Strategy != StrategyBanded {
		t.Errorf("at BandedMinInputs: strategy = %s", large.Strategy)
	}
	if !reflect.DeepEqual(small.Clusters, large.Clusters) {
		t.Error("auto strategies disagree")
	}

	// 64 bits cannot be split into 65 bands: banded falls back.
	wide, err := BuildClusters(fps, ClusterOptions{Threshold: 64, Strategy: StrategyBanded})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	if wide.Strategy != StrategyExhaustive || len(wide.Clusters) != 1 {
		t.Errorf("threshold 64: strategy %s, %d clusters", wide.Strategy, len(wide.Clusters))
	}
}

func TestBuildClusters_Deterministic(t *testing.T) {
	t.Parallel()
	fps := family(4, 25, 4, 6)
	first, err := BuildClusters(fps, ClusterOptions{Threshold: 8})
	if err != nil {
		t.Fatalf("BuildClusters: %v", err)
	}
	for range 3 {
		again, err := BuildClusters(fps, ClusterOptions{Threshold: 8, Strategy: StrategyBanded})
		if err != nil {
			t.Fatalf("BuildClusters: %v", err)
		}
		if !reflect.DeepEqual(first.Clusters, again.Clusters) {
			t.Fatal("repeated runs produced different clusters")
		}
	}
}

func TestBuildClusters_Monotonic(t *testing.T) {
	t.Parallel()
	fps := family(5, 30, 4, 10)
	prev := -1
	var prevAssign map[string]int
	for threshold := 0; threshold <= 16; threshold += 2 {
		res, err := BuildClusters(fps, ClusterOptions{Threshold: threshold})
		if err != nil {
			t.Fatalf("BuildClusters: %v", err)
		}
		if prev >= 0 && len(res.Clusters) > prev {
			t.Errorf("threshold %d: %d clusters, more than %d at a lower threshold", threshold, len(res.Clusters), prev)
		}
		cur := assignment(res.Clusters)
		// Each cluster at the lower threshold lies inside one cluster here.
		if prevAssign != nil {
			inside := make(map[int]int)
			for domain, old := range prevAssign {
				if id, ok := inside[old]; ok && id != cur[domain] {
					t.Errorf("threshold %d splits a cluster from threshold %d", threshold, threshold-2)
					break
				}
				inside[old] = cur[domain]
			}
		}
		prev, prevAssign = len(res.Clusters), cur
	}
}
