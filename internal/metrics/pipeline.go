package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anatolykoptev/go-logocluster"
)

// Pipeline Prometheus metrics.
var (
	LogosFingerprintedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "logocluster",
			Name:      "logos_fingerprinted_total",
			Help:      "Total number of logos decoded and hashed",
		},
	)

	LogoLoadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "logocluster",
			Name:      "logo_load_failures_total",
			Help:      "Total number of logos skipped because they could not be decoded",
		},
		[]string{"reason"},
	)

	FingerprintDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "logocluster",
			Name:      "fingerprint_duration_seconds",
			Help:      "Time to load, decode and hash one logo",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	DistanceComparisonsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "logocluster",
			Name:      "distance_comparisons_total",
			Help:      "Total number of fingerprint distance evaluations",
		},
	)

	Clusters = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "logocluster",
			Name:      "clusters",
			Help:      "Clusters produced by the last run",
		},
		[]string{"kind"}, // "multi" / "singleton"
	)

	LargestClusterSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "logocluster",
			Name:      "largest_cluster_size",
			Help:      "Member count of the largest cluster of the last run",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers the pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(LogosFingerprintedTotal)
	prometheus.MustRegister(LogoLoadFailuresTotal)
	prometheus.MustRegister(FingerprintDuration)
	prometheus.MustRegister(DistanceComparisonsTotal)
	prometheus.MustRegister(Clusters)
	prometheus.MustRegister(LargestClusterSize)
	pipelineMetricsRegistered = true
}

// Instrument chains metric updates onto the pipeline callbacks of cfg,
// keeping any callbacks already set.
func Instrument(cfg *logocluster.Config) {
	prevFP, prevFail, prevClustered := cfg.OnFingerprint, cfg.OnLoadFailure, cfg.OnClustered

	cfg.OnFingerprint = func(rec logocluster.LogoRecord, elapsed time.Duration) {
		LogosFingerprintedTotal.Inc()
		FingerprintDuration.Observe(elapsed.Seconds())
		if prevFP != nil {
			prevFP(rec, elapsed)
		}
	}
	cfg.OnLoadFailure = func(rec logocluster.LogoRecord, err *logocluster.ImageDecodeError) {
		LogoLoadFailuresTotal.WithLabelValues(err.Reason).Inc()
		if prevFail != nil {
			prevFail(rec, err)
		}
	}
	cfg.OnClustered = func(res logocluster.ClusterResult) {
		DistanceComparisonsTotal.Add(float64(res.Comparisons))
		var multi, single, largest int
		for _, c := range res.Clusters {
			if c.Size() == 1 {
				single++
			} else {
				multi++
			}
			largest = max(largest, c.Size())
		}
		Clusters.WithLabelValues("multi").Set(float64(multi))
		Clusters.WithLabelValues("singleton").Set(float64(single))
		LargestClusterSize.Set(float64(largest))
		if prevClustered != nil {
			prevClustered(res)
		}
	}
}

// WriteTextfile writes all registered metrics to path in the text exposition
// format, for the node-exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
