package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-canon/internal/config"
	"github.com/albapepper/scoracle-canon/internal/export"
	"github.com/albapepper/scoracle-canon/internal/identity"
	"github.com/albapepper/scoracle-canon/internal/merge"
	"github.com/albapepper/scoracle-canon/internal/pipeline"
	"github.com/albapepper/scoracle-canon/internal/player"
	"github.com/albapepper/scoracle-canon/internal/scale"
	"github.com/albapepper/scoracle-canon/internal/source"
)

const lockFile = ".canon.lock"

// runFlags override the environment configuration.
type runFlags struct {
	manifest   string
	output     string
	policy     string
	priorAudit string
	shards     int
	xlsx       bool
	threshold  string
}

func (f *runFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.manifest, "manifest", "", "Snapshot manifest (overrides CANON_MANIFEST)")
	pf.StringVar(&f.output, "output", "", "Artifact directory (overrides CANON_OUTPUT_DIR)")
	pf.StringVar(&f.policy, "policy", "", "Field precedence policy TOML (overrides CANON_POLICY_FILE)")
	pf.StringVar(&f.priorAudit, "prior-audit", "", "Correction audit of an earlier run (default: the output directory's)")
	pf.IntVar(&f.shards, "shards", 0, "Concurrent identity shards (overrides CANON_SHARDS)")
	pf.BoolVar(&f.xlsx, "xlsx", false, "Also write the canonical.xlsx workbook")
	pf.StringVar(&f.threshold, "scale-threshold", "", "Monetary scale threshold (overrides CANON_SCALE_THRESHOLD)")
}

// config loads the environment configuration and applies the flags that were set.
func (f *runFlags) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("manifest") {
		cfg.ManifestPath = f.manifest
	}
	if flags.Changed("output") {
		cfg.OutputDir = f.output
	}
	if flags.Changed("policy") {
		cfg.PolicyFile = f.policy
	}
	if flags.Changed("prior-audit") {
		cfg.PriorAudit = f.priorAudit
	}
	if flags.Changed("shards") {
		cfg.Shards = f.shards
	}
	if flags.Changed("xlsx") {
		cfg.WriteXLSX = f.xlsx
	}
	if flags.Changed("scale-threshold") {
		d, err := decimal.NewFromString(f.threshold)
		if err != nil {
			return nil, fmt.Errorf("--scale-threshold: %w", err)
		}
		cfg.ScaleThreshold = d
	}
	return cfg, nil
}

// runContext is what a finished pipeline run hands to a command.
type runContext struct {
	cfg       *config.Config
	logger    *slog.Logger
	result    *pipeline.Result
	snapshots []string
	written   []string
}

// withRun loads the config, holds the output directory lock, runs the
// pipeline, writes the artifacts and then calls fn.
func withRun(cmd *cobra.Command, flags *runFlags, fn func(ctx context.Context, r *runContext) error) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := flags.config(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.OutputDir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another run is writing to %s", cfg.OutputDir)
	}
	defer lock.Unlock()

	opts, err := pipelineOptions(cfg, logger)
	if err != nil {
		return err
	}

	m, err := source.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return err
	}
	snaps, err := source.Load(ctx, m, logger)
	if err != nil {
		return fmt.Errorf("load snapshots: %w", err)
	}

	start := time.Now()
	res, err := pipeline.Run(ctx, snaps, opts)
	if err != nil {
		var dup *player.DuplicateIDError
		if errors.As(err, &dup) {
			logger.Error("Run aborted: duplicate canonical id", "id", dup.ID.String(), "stage", dup.Stage)
		}
		return fmt.Errorf("run pipeline: %w", err)
	}
	logger.Info("Pipeline finished",
		"duration", time.Since(start).Round(time.Millisecond),
		"summary", res.Summary())

	names := make([]string, len(m.Snapshots))
	for i, s := range m.Snapshots {
		names[i] = s.Name
	}
	written, err := export.WriteRun(cfg.OutputDir, res, names, export.Options{Workbook: cfg.WriteXLSX})
	if err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}
	logger.Info("Artifacts written", "dir", cfg.OutputDir, "files", len(written))

	return fn(ctx, &runContext{cfg: cfg, logger: logger, result: res, snapshots: names, written: written})
}

// pipelineOptions translates the configuration into pipeline options.
func pipelineOptions(cfg *config.Config, logger *slog.Logger) (pipeline.Options, error) {
	policy := merge.DefaultPolicy()
	if cfg.PolicyFile != "" {
		p, err := merge.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return pipeline.Options{}, err
		}
		policy = p
		if uncovered := p.Uncovered(); len(uncovered) > 0 {
			logger.Warn("Policy leaves fields without a rule; conflicts will go to review", "fields", uncovered)
		}
	}

	fields, err := scaleFields(cfg.ScaleFields)
	if err != nil {
		return pipeline.Options{}, err
	}
	scaleOpts := scale.Options{Fields: fields, Threshold: cfg.ScaleThreshold, Factor: cfg.ScaleFactor}

	auditPath := cfg.PriorAudit
	if auditPath == "" {
		auditPath = filepath.Join(cfg.OutputDir, export.AuditFile)
	}
	prior, err := export.ReadAuditFile(auditPath)
	if err != nil {
		return pipeline.Options{}, err
	}
	if len(prior) > 0 {
		logger.Info("Prior correction audit loaded", "path", auditPath, "entries", len(prior))
	}

	return pipeline.Options{
		Shards:    cfg.Shards,
		Extractor: identity.NewExtractor(cfg.IDSegments...),
		Resolve: identity.Options{
			MaxNameGroup:     cfg.MaxNameGroup,
			RequireBirthYear: cfg.RequireBirthYear,
		},
		Policy:          &policy,
		Scale:           &scaleOpts,
		PriorAudit:      scale.NewAudit(prior),
		Logger:          logger,
		InferYouthClubs: cfg.InferYouthClubs,
	}, nil
}

func scaleFields(names []string) ([]player.Field, error) {
	fields := make([]player.Field, 0, len(names))
	for _, n := range names {
		f := player.Field(n)
		if !f.IsKnown() {
			return nil, fmt.Errorf("CANON_SCALE_FIELDS: unknown field %q", n)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return logger
}
