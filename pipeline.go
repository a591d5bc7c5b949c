package logocluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// hashOutcome is the per-record result of the parallel phase. Each task
// writes only its own slot.
type hashOutcome struct {
	fp  Fingerprint
	err *ImageDecodeError
}

// RunManifest reads the manifest at path and runs the pipeline over it. A
// manifest that cannot be read is logged and the run continues with the rows
// read before the failure (none if it could not be opened), so a report is
// always produced.
func (cfg *Config) RunManifest(ctx context.Context, path, baseDir string) (*Report, error) {
	recs, mstats, err := ReadManifestFile(path, baseDir)
	if err != nil {
		slog.Warn("logocluster: manifest read failed, continuing with rows read so far",
			"path", path, "entries", len(recs), "error", err.Error())
	}
	slog.Info("logocluster: manifest read", "path", path, "entries", len(recs), "skipped", mstats.Skipped)

	rep, err := cfg.Run(ctx, recs)
	if err != nil {
		return nil, err
	}
	rep.Stats.ManifestRows = mstats.Rows
	rep.Stats.ManifestSkipped = mstats.Skipped
	return rep, nil
}

// Run fingerprints recs in parallel, then clusters the fingerprints in
// manifest order and ranks the result. Images that fail to load are counted
// and skipped. The only errors are invalid configuration, fingerprint
// incompatibility and ctx cancellation.
func (cfg *Config) Run(ctx context.Context, recs []LogoRecord) (*Report, error) {
	// Defaults are applied to a copy: ExactMatch must survive repeated runs.
	c := *cfg
	c.defaults()
	cfg = &c

	hasher := cfg.hasher()
	if err := hasher.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hash config: %w", err)
	}

	if cfg.OnStart != nil {
		cfg.OnStart(len(recs))
	}
	start := time.Now()
	outcomes, err := cfg.fingerprintAll(ctx, hasher, recs)
	if err != nil {
		return nil, err
	}

	stats := Stats{Inputs: len(recs), Algorithm: hasher.algorithm(), HashBits: hasher.size() * hasher.size()}
	fps := make([]Fingerprint, 0, len(recs))
	for _, o := range outcomes {
		if o.err != nil {
			stats.Failed++
			if stats.FailedByReason == nil {
				stats.FailedByReason = make(map[string]int)
			}
			stats.FailedByReason[o.err.Reason]++
			continue
		}
		fps = append(fps, o.fp)
	}
	stats.Fingerprinted = len(fps)
	slog.Info("logocluster: hashed logos",
		"fingerprinted", stats.Fingerprinted, "failed", stats.Failed, "elapsed", time.Since(start).String())

	clusterStart := time.Now()
	res, err := BuildClusters(fps, cfg.clusterOptions())
	if err != nil {
		return nil, fmt.Errorf("build clusters: %w", err)
	}
	if cfg.OnClustered != nil {
		cfg.OnClustered(res)
	}

	rep := NewReport(res, stats)
	rep.Stats.Elapsed = time.Since(start)
	slog.Info("logocluster: clustered logos",
		"threshold", res.Threshold,
		"strategy", string(res.Strategy),
		"comparisons", res.Comparisons,
		"clusters", rep.Stats.MultiClusters,
		"singletons", rep.Stats.Singletons,
		"largest", rep.Stats.LargestCluster,
		"elapsed", time.Since(clusterStart).String(),
	)
	return rep, nil
}

// fingerprintAll is the fan-out phase: one task per record, at most
// cfg.Workers at a time. It returns once every task has finished.
func (cfg *Config) fingerprintAll(ctx context.Context, hasher *Hasher, recs []LogoRecord) ([]hashOutcome, error) {
	outcomes := make([]hashOutcome, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, rec := range recs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = cfg.fingerprintOne(hasher, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fingerprint logos: %w", err)
	}
	return outcomes, nil
}

func (cfg *Config) fingerprintOne(hasher *Hasher, rec LogoRecord) hashOutcome {
	start := time.Now()

	img, err := loadImage(rec.LocalPath, cfg.MaxPixels)
	if err != nil {
		return cfg.failed(rec, err)
	}
	fp, err := hasher.Fingerprint(rec, img)
	if err != nil {
		return cfg.failed(rec, err)
	}

	elapsed := time.Since(start)
	slog.Debug("logocluster: fingerprinted", "domain", rec.Domain, "hash", fp.String(), "elapsed", elapsed.String())
	if cfg.OnFingerprint != nil {
		cfg.OnFingerprint(rec, elapsed)
	}
	return hashOutcome{fp: fp}
}

func (cfg *Config) failed(rec LogoRecord, err error) hashOutcome {
	var decErr *ImageDecodeError
	if !errors.As(err, &decErr) {
		decErr = &ImageDecodeError{Path: rec.LocalPath, Reason: ReasonCorrupt, Err: err}
	}
	slog.Warn("logocluster: failed to load logo",
		"domain", rec.Domain, "path", rec.LocalPath, "reason", decErr.Reason, "error", decErr.Error())
	if cfg.OnLoadFailure != nil {
		cfg.OnLoadFailure(rec, decErr)
	}
	return hashOutcome{err: decErr}
}
