package logocluster

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"time"
)

// Format selects the report serialization.
type Format string

const (
	FormatJSON  Format = "json"  // one document with stats and all clusters
	FormatJSONL Format = "jsonl" // stats record, then one record per cluster
	FormatText  Format = "text"  // human-readable cluster listing
)

// ParseFormat validates a configured report format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatJSONL, FormatText:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want json, jsonl or text)", s)
	}
}

// Stats are the aggregate numbers of one run.
type Stats struct {
	ManifestRows    int            `json:"manifest_rows"`
	ManifestSkipped int            `json:"manifest_skipped"`
	Inputs          int            `json:"inputs"`
	Fingerprinted   int            `json:"fingerprinted"`
	Failed          int            `json:"failed"`
	FailedByReason  map[string]int `json:"failed_by_reason,omitempty"`
	Clusters        int            `json:"clusters"`
	MultiClusters   int            `json:"multi_clusters"`
	Singletons      int            `json:"singletons"`
	LargestCluster  int            `json:"largest_cluster"`
	Comparisons     int64          `json:"comparisons"`
	Threshold       int            `json:"threshold"`
	Algorithm       HashAlgorithm  `json:"algorithm,omitempty"`
	HashBits        int            `json:"hash_bits,omitempty"`
	Strategy        Strategy       `json:"strategy,omitempty"`
	Elapsed         time.Duration  `json:"elapsed_ns"` // wall time of hashing and clustering
}

// Report is the ranked cluster listing plus run statistics.
type Report struct {
	Stats    Stats
	Clusters []Cluster // descending size, then ascending ID
}

// NewReport ranks the clusters of res and completes stats with the cluster
// counts. res is not modified.
func NewReport(res ClusterResult, stats Stats) *Report {
	ranked := slices.Clone(res.Clusters)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Size() != ranked[j].Size() {
			return ranked[i].Size() > ranked[j].Size()
		}
		return ranked[i].ID < ranked[j].ID
	})

	stats.Clusters = len(ranked)
	stats.MultiClusters, stats.Singletons, stats.LargestCluster = 0, 0, 0
	for _, c := range ranked {
		if c.Size() == 1 {
			stats.Singletons++
		} else {
			stats.MultiClusters++
		}
		stats.LargestCluster = max(stats.LargestCluster, c.Size())
	}
	stats.Comparisons = res.Comparisons
	stats.Threshold = res.Threshold
	if res.Strategy != "" {
		stats.Strategy = res.Strategy
	}
	return &Report{Stats: stats, Clusters: ranked}
}

type clusterRecord struct {
	ID             int          `json:"id"`
	Size           int          `json:"size"`
	Representative LogoRecord   `json:"representative"`
	Members        []LogoRecord `json:"members"`
}

func toRecord(c Cluster) clusterRecord {
	return clusterRecord{ID: c.ID, Size: c.Size(), Representative: c.Representative, Members: c.Members}
}

// Write serializes the report to w in the given format.
func (r *Report) Write(w io.Writer, format Format) error {
	switch format {
	case FormatJSON, "":
		return r.writeJSON(w)
	case FormatJSONL:
		return r.writeJSONL(w)
	case FormatText:
		return r.writeText(w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func (r *Report) writeJSON(w io.Writer) error {
	doc := struct {
		Stats    Stats           `json:"stats"`
		Clusters []clusterRecord `json:"clusters"`
	}{Stats: r.Stats, Clusters: make([]clusterRecord, 0, len(r.Clusters))}
	for _, c := range r.Clusters {
		doc.Clusters = append(doc.Clusters, toRecord(c))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func (r *Report) writeJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(struct {
		Stats Stats `json:"stats"`
	}{r.Stats}); err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	for _, c := range r.Clusters {
		if err := enc.Encode(toRecord(c)); err != nil {
			return fmt.Errorf("encode cluster %d: %w", c.ID, err)
		}
	}
	return nil
}

// writeText renders multi-member clusters largest first, each with its
// domains sorted, followed by all singletons.
func (r *Report) writeText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	s := r.Stats
	fmt.Fprintln(bw, "# Logo Clustering Report (Perceptual Hash)")
	fmt.Fprintf(bw, "# Threshold: Hamming distance <= %d\n", s.Threshold)
	fmt.Fprintf(bw, "# Total logos: %d\n", s.Fingerprinted)
	fmt.Fprintf(bw, "# Failed to load: %d\n", s.Failed)
	fmt.Fprintf(bw, "# Clusters (2+ logos): %d\n", s.MultiClusters)
	fmt.Fprintf(bw, "# Singletons: %d\n\n", s.Singletons)

	var singletons []string
	rank := 0
	for _, c := range r.Clusters {
		if c.Size() == 1 {
			singletons = append(singletons, c.Members[0].Domain)
			continue
		}
		rank++
		fmt.Fprintf(bw, "=== Cluster %d (%d logos) ===\n", rank, c.Size())
		for _, d := range sortedDomains(c.Members) {
			fmt.Fprintf(bw, "  %s\n", d)
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw, "=== Singletons ===")
	slices.Sort(singletons)
	for _, d := range singletons {
		fmt.Fprintf(bw, "  %s\n", d)
	}
	return bw.Flush()
}

func sortedDomains(members []LogoRecord) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Domain
	}
	slices.Sort(out)
	return out
}
