// Command logocluster groups downloaded site logos into clusters of visually
// identical images and writes a ranked cluster report.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/anatolykoptev/go-logocluster"
	"github.com/anatolykoptev/go-logocluster/internal/config"
	logpkg "github.com/anatolykoptev/go-logocluster/internal/logger"
	"github.com/anatolykoptev/go-logocluster/internal/metrics"
	"github.com/anatolykoptev/go-logocluster/internal/version"
)

// flags mirrors the config file; set flags override file values.
type flags struct {
	env         string
	configPath  string
	manifest    string
	baseDir     string
	threshold   int
	algorithm   string
	hashSize    int
	strategy    string
	workers     int
	output      string
	format      string
	metricsFile string
	logLevel    string
	progress    bool
	version     bool
}

func (f *flags) addToSet(fs *pflag.FlagSet) {
	fs.StringVar(&f.env, "env", config.GetEnv(), "environment: local, dev, docker or prod (selects logger and config/<env>.yaml)")
	fs.StringVarP(&f.configPath, "config", "c", "", "path to YAML config (default: config/<env>.yaml if present)")
	fs.StringVarP(&f.manifest, "manifest", "m", "", "CSV manifest with domain and local_path columns")
	fs.StringVar(&f.baseDir, "base-dir", "", "directory that relative local_path values are resolved against")
	fs.IntVarP(&f.threshold, "threshold", "t", 8, "max Hamming distance (inclusive) linking two logos")
	fs.StringVar(&f.algorithm, "algorithm", "phash", "perceptual hash: phash, dhash or ahash")
	fs.IntVar(&f.hashSize, "hash-size", 8, "hash grid side (8 = 64-bit fingerprints)")
	fs.StringVar(&f.strategy, "strategy", "auto", "pair enumeration: auto, exhaustive or banded")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel decode+hash workers (0 = one per CPU)")
	fs.StringVarP(&f.output, "output", "o", "", "report path, - for stdout")
	fs.StringVarP(&f.format, "format", "f", "", "report format: json, jsonl or text (default: from output extension)")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	fs.StringVar(&f.logLevel, "log-level", "", "log level override: debug, info, warn, error")
	fs.BoolVar(&f.progress, "progress", false, "show a progress bar on stderr while hashing")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
}

// apply copies explicitly set flags over cfg.
func (f *flags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("manifest") {
		cfg.Manifest.Path = f.manifest
	}
	if fs.Changed("base-dir") {
		cfg.Manifest.BaseDir = f.baseDir
	}
	if fs.Changed("threshold") {
		t := f.threshold
		cfg.Cluster.Threshold = &t
	}
	if fs.Changed("algorithm") {
		cfg.Hash.Algorithm = f.algorithm
	}
	if fs.Changed("hash-size") {
		cfg.Hash.Size = f.hashSize
	}
	if fs.Changed("strategy") {
		cfg.Cluster.Strategy = f.strategy
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if fs.Changed("output") {
		cfg.Output.Path = f.output
		if !fs.Changed("format") {
			cfg.Output.Format = ""
		}
	}
	if fs.Changed("format") {
		cfg.Output.Format = f.format
	}
	if fs.Changed("metrics-file") {
		cfg.Metrics.Textfile = f.metricsFile
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
}

func main() {
	fs := pflag.NewFlagSet(filepath.Base(os.Args[0]), pflag.ExitOnError)
	var f flags
	f.addToSet(fs)
	_ = fs.Parse(os.Args[1:])

	if f.version {
		fmt.Printf("logocluster %s (%s, %s)\n", version.Version, version.Commit, version.Date)
		return
	}

	configPath := f.configPath
	if configPath == "" {
		configPath = config.FindConfigPath(f.env)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	f.apply(fs, &cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(2)
	}

	logger, err := logpkg.NewLogger(f.env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()
	logpkg.SetSlogDefault(logger)

	logger.Info("Starting logocluster",
		zap.String("version", version.Version),
		zap.String("env", f.env),
		zap.String("config", configPath),
		zap.String("manifest", cfg.Manifest.Path),
		zap.Int("threshold", cfg.ThresholdValue()),
		zap.String("algorithm", cfg.Hash.Algorithm),
		zap.Int("hash_size", cfg.Hash.Size),
		zap.String("strategy", cfg.Cluster.Strategy),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := pipelineConfig(cfg)
	if cfg.Metrics.Textfile != "" {
		metrics.RegisterPipelineMetrics()
		metrics.Instrument(pipeline)
	}
	if f.progress {
		withProgressBar(pipeline)
	}

	rep, err := pipeline.RunManifest(ctx, cfg.Manifest.Path, cfg.Manifest.BaseDir)
	if err != nil {
		logger.Fatal("Clustering failed", zap.Error(err))
	}

	format, _ := logocluster.ParseFormat(cfg.Output.Format)
	if err := writeReport(rep, cfg.Output.Path, format); err != nil {
		logger.Fatal("Failed to write report", zap.Error(err))
	}

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Error("Failed to write metrics", zap.Error(err))
		}
	}

	logger.Info("Report written",
		zap.String("path", cfg.Output.Path),
		zap.String("format", string(format)),
		zap.Int("fingerprinted", rep.Stats.Fingerprinted),
		zap.Int("failed", rep.Stats.Failed),
		zap.Int("clusters", rep.Stats.MultiClusters),
		zap.Int("singletons", rep.Stats.Singletons),
		zap.Duration("elapsed", rep.Stats.Elapsed),
	)
}

// pipelineConfig maps the validated file/flag config onto the library config.
func pipelineConfig(cfg config.Config) *logocluster.Config {
	threshold := cfg.ThresholdValue()
	if threshold == 0 {
		threshold = logocluster.ExactMatch
	}
	return &logocluster.Config{
		Threshold:       threshold,
		Algorithm:       logocluster.HashAlgorithm(cfg.Hash.Algorithm),
		HashSize:        cfg.Hash.Size,
		Strategy:        logocluster.Strategy(cfg.Cluster.Strategy),
		Workers:         cfg.Workers,
		MaxPixels:       cfg.Hash.MaxPixels,
		BandedMinInputs: cfg.Cluster.BandedMinInputs,
	}
}

func withProgressBar(cfg *logocluster.Config) {
	var bar *progressbar.ProgressBar
	prevStart, prevFP, prevFail := cfg.OnStart, cfg.OnFingerprint, cfg.OnLoadFailure

	cfg.OnStart = func(total int) {
		bar = progressbar.Default(int64(total), "hashing logos")
		if prevStart != nil {
			prevStart(total)
		}
	}
	cfg.OnFingerprint = func(rec logocluster.LogoRecord, elapsed time.Duration) {
		_ = bar.Add(1)
		if prevFP != nil {
			prevFP(rec, elapsed)
		}
	}
	cfg.OnLoadFailure = func(rec logocluster.LogoRecord, err *logocluster.ImageDecodeError) {
		_ = bar.Add(1)
		if prevFail != nil {
			prevFail(rec, err)
		}
	}
}

func writeReport(rep *logocluster.Report, path string, format logocluster.Format) error {
	if path == "-" {
		return rep.Write(os.Stdout, format)
	}
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return closeAfter(file, rep.Write(file, format))
}

func closeAfter(c io.Closer, err error) error {
	if cerr := c.Close(); err == nil && cerr != nil {
		return fmt.Errorf("close report: %w", cerr)
	}
	return err
}
