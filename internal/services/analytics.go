package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"vgsales-dashboard/internal/dataset"
	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/models"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/pipeline"
)

const (
	DefaultTopN = 10
	MinTopN     = 5
	MaxTopN     = 50

	// RecordRows caps the filtered records shown on the page; exports
	// carry the full subset.
	RecordRows = 100
)

type snapshot struct {
	ds       *models.CleanDataset
	options  FilterOptions
	modTime  time.Time
	size     int64
	loadedAt time.Time
}

// Analytics serves dashboard views over the cleaned dataset. The dataset is
// read once and kept until the file's modification time or size changes.
type Analytics struct {
	path    string
	logger  *slog.Logger
	metrics *observability.Metrics

	group singleflight.Group
	mu    sync.RWMutex
	snap  *snapshot

	loads      atomic.Int64
	cacheHits  atomic.Int64
	lastLoadMs atomic.Int64
}

// NewAnalytics reads the cleaned dataset at path on demand. metrics may be nil.
func NewAnalytics(path string, logger *slog.Logger, metrics *observability.Metrics) *Analytics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		path:    path,
		logger:  logger,
		metrics: metrics,
	}
}

// SetDataset pins ds as the current snapshot. With an empty path the
// snapshot is never reloaded.
func (a *Analytics) SetDataset(ds *models.CleanDataset) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap = &snapshot{ds: ds, options: OptionsOf(ds), loadedAt: time.Now()}
}

func (a *Analytics) Path() string {
	return a.path
}

// Dataset returns the current cleaned dataset, reloading it when the file
// has changed since the last load. Concurrent cold loads share one read,
// and a caller that gives up does not cancel it for the others.
func (a *Analytics) Dataset(ctx context.Context) (*models.CleanDataset, error) {
	snap, err := a.current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ds, nil
}

func (a *Analytics) current(ctx context.Context) (*snapshot, error) {
	a.mu.RLock()
	snap := a.snap
	a.mu.RUnlock()

	if a.path == "" {
		if snap == nil {
			return nil, errors.ServiceUnavailable("no dataset loaded")
		}
		return snap, nil
	}

	info, err := os.Stat(a.path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, &errors.MissingInputError{
				Artifact: "cleaned dataset",
				Path:     a.path,
				Remedy:   dataset.RemedyClean,
				Cause:    err,
			}
		}
		return nil, fmt.Errorf("stat %s: %w", a.path, err)
	}

	if snap != nil && snap.modTime.Equal(info.ModTime()) && snap.size == info.Size() {
		a.cacheHits.Add(1)
		if a.metrics != nil {
			a.metrics.CacheHits.Inc()
		}
		return snap, nil
	}

	// The shared load outlives any one caller; each caller only stops
	// waiting when its own context ends.
	loadCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(a.path, func() (any, error) {
		return a.load(loadCtx, info)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Analytics) load(ctx context.Context, info fs.FileInfo) (*snapshot, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.load", attribute.String("path", a.path))
	start := time.Now()

	ds, err := dataset.LoadClean(ctx, a.path)
	if a.metrics != nil {
		a.metrics.ObserveLoad(err)
	}
	observability.FinishSpan(span, err)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		ds:       ds,
		options:  OptionsOf(ds),
		modTime:  info.ModTime(),
		size:     info.Size(),
		loadedAt: time.Now(),
	}

	a.mu.Lock()
	a.snap = snap
	a.mu.Unlock()

	elapsed := time.Since(start)
	a.loads.Add(1)
	a.lastLoadMs.Store(elapsed.Milliseconds())
	a.logger.Info("cleaned dataset loaded",
		"path", a.path,
		"records", len(ds.Records),
		"columns", len(ds.Columns),
		"duration", elapsed,
	)

	return snap, nil
}

// Filtered returns the records admitted by f.
func (a *Analytics) Filtered(ctx context.Context, f Filter) (*models.CleanDataset, error) {
	ds, err := a.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	subset := f.Apply(ds)
	if a.metrics != nil {
		a.metrics.FilteredRows.Observe(float64(len(subset.Records)))
	}
	return subset, nil
}

func (a *Analytics) Options(ctx context.Context) (FilterOptions, error) {
	snap, err := a.current(ctx)
	if err != nil {
		return FilterOptions{}, err
	}
	return snap.options, nil
}

// Summary holds the headline metric cards.
type Summary struct {
	Games       int     `json:"games"`
	GlobalSales float64 `json:"global_sales"`
	NASales     float64 `json:"na_sales"`
	EUSales     float64 `json:"eu_sales"`
}

func Summarize(ds *models.CleanDataset) Summary {
	return Summary{
		Games:       len(ds.Records),
		GlobalSales: pipeline.Total(ds, models.ColGlobalSales),
		NASales:     pipeline.Total(ds, models.ColNASales),
		EUSales:     pipeline.Total(ds, models.ColEUSales),
	}
}

// View is everything the dashboard renders for one filter.
type View struct {
	Filter         Filter                       `json:"filter"`
	TopN           int                          `json:"top_n"`
	Summary        Summary                      `json:"summary"`
	GenreSales     []models.GenreSales          `json:"genre_sales"`
	AnnualSales    []models.YearSales           `json:"annual_sales"`
	TopGames       []models.Game                `json:"top_games"`
	PlatformSales  []models.PlatformSales       `json:"platform_sales"`
	PlatformDecade []models.PlatformDecadeSales `json:"platform_decade"`
	Records        []models.Game                `json:"records"`
	Options        FilterOptions                `json:"options"`
}

// View computes the dashboard tables over the subset admitted by f.
func (a *Analytics) View(ctx context.Context, f Filter, topN int) (*View, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.view")
	defer span.End()

	snap, err := a.current(ctx)
	if err != nil {
		return nil, err
	}

	subset := f.Apply(snap.ds)
	if a.metrics != nil {
		a.metrics.FilteredRows.Observe(float64(len(subset.Records)))
	}
	span.SetAttributes(attribute.Int("rows", len(subset.Records)))

	records := subset.Records
	if len(records) > RecordRows {
		records = records[:RecordRows]
	}

	n := ClampTopN(topN)
	return &View{
		Filter:         f,
		TopN:           n,
		Summary:        Summarize(subset),
		GenreSales:     pipeline.SalesByGenre(subset),
		AnnualSales:    pipeline.AnnualSales(subset),
		TopGames:       pipeline.TopGames(subset, n),
		PlatformSales:  pipeline.PlatformTotals(subset),
		PlatformDecade: pipeline.PlatformByDecade(subset),
		Records:        records,
		Options:        snap.options,
	}, nil
}

// ClampTopN maps a requested row count into [MinTopN, MaxTopN]; zero or a
// negative value selects DefaultTopN.
func ClampTopN(n int) int {
	switch {
	case n <= 0:
		return DefaultTopN
	case n < MinTopN:
		return MinTopN
	case n > MaxTopN:
		return MaxTopN
	}
	return n
}

// Stats reports cache state for the admin endpoint.
func (a *Analytics) Stats() map[string]any {
	a.mu.RLock()
	snap := a.snap
	a.mu.RUnlock()

	stats := map[string]any{
		"path":         a.path,
		"loads":        a.loads.Load(),
		"cache_hits":   a.cacheHits.Load(),
		"last_load_ms": a.lastLoadMs.Load(),
		"loaded":       snap != nil,
	}
	if snap != nil {
		stats["record_count"] = len(snap.ds.Records)
		stats["loaded_at"] = snap.loadedAt
		stats["platforms"] = len(snap.options.Platforms)
		stats["genres"] = len(snap.options.Genres)
		stats["decades"] = len(snap.options.Decades)
	}
	return stats
}
