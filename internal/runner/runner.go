// Package runner drives the batch stages: clean, aggregate and render. Each
// stage reads its input from disk and writes its artifacts back, so stages
// can run separately or in sequence.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v2"

	"vgsales-dashboard/internal/charts"
	"vgsales-dashboard/internal/config"
	"vgsales-dashboard/internal/dataset"
	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/pipeline"
)

const (
	StageClean     = "clean"
	StageAggregate = "aggregate"
	StageRender    = "render"
)

// AllStages lists the stages in dependency order.
var AllStages = []string{StageClean, StageAggregate, StageRender}

const ManifestFile = "manifest.yaml"

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Manifest records one invocation of the runner.
type Manifest struct {
	RunID     string        `yaml:"run_id"`
	StartTime time.Time     `yaml:"start_time"`
	EndTime   time.Time     `yaml:"end_time"`
	Status    string        `yaml:"status"`
	RawFile   string        `yaml:"raw_file"`
	CleanFile string        `yaml:"clean_file"`
	OutputDir string        `yaml:"output_dir"`
	Stages    []StageResult `yaml:"stages"`
	Error     string        `yaml:"error,omitempty"`
}

type StageResult struct {
	Stage     string         `yaml:"stage"`
	Status    string         `yaml:"status"`
	StartTime time.Time      `yaml:"start_time"`
	Duration  string         `yaml:"duration"`
	Outputs   []string       `yaml:"outputs,omitempty"`
	Counters  map[string]int `yaml:"counters,omitempty"`
	Error     string         `yaml:"error,omitempty"`
}

type Runner struct {
	paths    config.PathsConfig
	logger   *slog.Logger
	renderer *charts.Renderer
}

func New(paths config.PathsConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		paths:    paths,
		logger:   logger,
		renderer: charts.NewRenderer(logger),
	}
}

// Run executes stages in the order given and writes the manifest to the
// output directory, even when a stage fails. It stops at the first failure.
func (r *Runner) Run(ctx context.Context, stages ...string) (*Manifest, error) {
	m := &Manifest{
		RunID:     uuid.NewString(),
		StartTime: time.Now().UTC(),
		Status:    StatusRunning,
		RawFile:   r.paths.RawFile,
		CleanFile: r.paths.CleanFile,
		OutputDir: r.paths.OutputDir,
	}
	logger := r.logger.With("run_id", m.RunID)

	ctx, span := observability.StartSpan(ctx, "runner.run", attribute.String("run_id", m.RunID))

	var runErr error
	for _, stage := range stages {
		res := r.runStage(ctx, logger, stage)
		m.Stages = append(m.Stages, res.StageResult)
		if res.err != nil {
			runErr = res.err
			break
		}
	}

	m.EndTime = time.Now().UTC()
	m.Status = StatusCompleted
	if runErr != nil {
		m.Status = StatusFailed
		m.Error = runErr.Error()
	}
	observability.FinishSpan(span, runErr)

	if err := WriteManifest(r.paths.OutputDir, m); err != nil {
		logger.Warn("failed to write manifest", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return m, runErr
}

type stageOutcome struct {
	StageResult
	err error
}

func (r *Runner) runStage(ctx context.Context, logger *slog.Logger, stage string) stageOutcome {
	start := time.Now()
	res := stageOutcome{StageResult: StageResult{Stage: stage, StartTime: start.UTC()}}

	ctx, span := observability.StartSpan(ctx, "runner."+stage)
	logger.Info("stage started", "stage", stage)

	switch stage {
	case StageClean:
		summary, err := r.Clean(ctx)
		res.err = err
		res.Outputs = []string{r.paths.CleanFile}
		res.Counters = map[string]int{
			"rows_in":            summary.RowsIn,
			"rows_invalid":       summary.RowsInvalid,
			"duplicates_removed": summary.DuplicatesRemoved,
			"rows_out":           summary.RowsOut,
			"missing_year":       summary.MissingYear,
			"columns":            summary.Columns,
		}
	case StageAggregate:
		res.Outputs, res.err = r.Aggregate(ctx)
	case StageRender:
		res.Outputs, res.err = r.Render(ctx)
	default:
		res.err = fmt.Errorf("unknown stage %q", stage)
	}

	observability.FinishSpan(span, res.err)
	elapsed := time.Since(start)
	res.Duration = elapsed.String()

	if res.err != nil {
		res.Status = StatusFailed
		res.Error = res.err.Error()
		res.Outputs = nil
		logger.Error("stage failed", "stage", stage, "duration", elapsed, "error", res.err)
		return res
	}

	res.Status = StatusCompleted
	logger.Info("stage completed", "stage", stage, "duration", elapsed, "outputs", len(res.Outputs))
	return res
}

// Clean reads the raw dataset, cleans it and writes the cleaned file.
func (r *Runner) Clean(ctx context.Context) (pipeline.CleanSummary, error) {
	raw, err := dataset.Load(ctx, r.paths.RawFile)
	if err != nil {
		return pipeline.CleanSummary{}, err
	}

	ds, summary, err := pipeline.Clean(raw)
	if err != nil {
		var schemaErr *errors.SchemaError
		if stderrors.As(err, &schemaErr) && schemaErr.Path == "" {
			schemaErr.Path = r.paths.RawFile
		}
		return summary, err
	}

	if err := dataset.WriteClean(r.paths.CleanFile, ds); err != nil {
		return summary, fmt.Errorf("write cleaned dataset: %w", err)
	}

	r.logger.Info("dataset cleaned",
		"rows_in", summary.RowsIn,
		"rows_invalid", summary.RowsInvalid,
		"duplicates_removed", summary.DuplicatesRemoved,
		"rows_out", summary.RowsOut,
		"missing_year", summary.MissingYear,
		"columns", summary.Columns,
		"path", r.paths.CleanFile,
	)
	return summary, nil
}

// Aggregate computes every aggregate table from the cleaned dataset.
func (r *Runner) Aggregate(ctx context.Context) ([]string, error) {
	ds, err := dataset.LoadClean(ctx, r.paths.CleanFile)
	if err != nil {
		return nil, err
	}

	agg := pipeline.Aggregate(ds)
	paths, err := pipeline.WriteAggregates(r.paths.OutputDir, ds, agg)
	if err != nil {
		return nil, fmt.Errorf("write aggregates: %w", err)
	}

	r.logger.Info("aggregates written",
		"records", len(ds.Records),
		"genres", len(agg.GenreSales),
		"years", len(agg.AnnualSales),
		"platform_decades", len(agg.PlatformByDecade),
		"publishers", len(agg.TopPublishers),
		"dir", r.paths.OutputDir,
	)
	return paths, nil
}

// Render regenerates every chart from the cleaned dataset.
func (r *Runner) Render(ctx context.Context) ([]string, error) {
	ds, err := dataset.LoadClean(ctx, r.paths.CleanFile)
	if err != nil {
		return nil, err
	}

	paths, err := r.renderer.RenderAll(ctx, ds, r.paths.OutputDir)
	if err != nil {
		return nil, err
	}

	r.logger.Info("charts rendered", "charts", len(paths), "dir", r.paths.OutputDir)
	return paths, nil
}

func WriteManifest(dir string, m *Manifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644)
}

func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
