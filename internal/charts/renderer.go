// Package charts draws the dashboard and pipeline charts as PNG images.
package charts

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"vgsales-dashboard/internal/models"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/pipeline"
)

var barColor = color.RGBA{R: 0x3b, G: 0x6e, B: 0xa8, A: 0xff}

// Chart is one named figure computed from a dataset.
type Chart struct {
	Name   string
	File   string
	Title  string
	Width  vg.Length
	Height vg.Length
	build  func(p *plot.Plot, ds *models.CleanDataset) error
}

var registry = []Chart{
	{Name: "genre-distribution", File: "genre_distribution.png", Title: "Records per genre",
		Width: 8 * vg.Inch, Height: 4 * vg.Inch, build: genreDistribution},
	{Name: "region-distribution", File: "region_distribution.png", Title: "Sales by region (millions)",
		Width: 8 * vg.Inch, Height: 4 * vg.Inch, build: regionDistribution},
	{Name: "genre-sales", File: "plot_genre_global_sales.png", Title: "Global sales by genre (millions)",
		Width: 10 * vg.Inch, Height: 5 * vg.Inch, build: genreSales},
	{Name: "annual-sales", File: "plot_annual_global_sales.png", Title: "Global sales per year (millions)",
		Width: 10 * vg.Inch, Height: 5 * vg.Inch, build: annualSales},
	{Name: "platform-sales", File: "plot_platform_global_sales.png", Title: "Global sales by platform (millions)",
		Width: 12 * vg.Inch, Height: 6 * vg.Inch, build: platformSales},
	{Name: "platform-decade", File: "plot_platform_decade_heatmap.png", Title: "Global sales by platform and decade",
		Width: 12 * vg.Inch, Height: 8 * vg.Inch, build: platformDecade},
	{Name: "region-share", File: "plot_region_share_pie.png", Title: "Share of sales by region",
		Width: 6 * vg.Inch, Height: 6 * vg.Inch, build: regionShare},
	{Name: "sales-correlation", File: "plot_sales_correlation_heatmap.png", Title: "Correlation between regional sales",
		Width: 7 * vg.Inch, Height: 6 * vg.Inch, build: salesCorrelation},
}

func Charts() []Chart {
	return registry
}

func Lookup(name string) (Chart, bool) {
	for _, c := range registry {
		if c.Name == name {
			return c, true
		}
	}
	return Chart{}, false
}

// IsChartFile reports whether file is one of the PNGs RenderAll writes.
func IsChartFile(file string) bool {
	for _, c := range registry {
		if c.File == file {
			return true
		}
	}
	return false
}

type Renderer struct {
	logger *slog.Logger
}

func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render draws the named chart for ds as PNG into w.
func (r *Renderer) Render(w io.Writer, name string, ds *models.CleanDataset) error {
	c, ok := Lookup(name)
	if !ok {
		return fmt.Errorf("unknown chart %q", name)
	}
	return c.render(w, ds)
}

// RenderAll regenerates every chart under dir and returns the written paths.
func (r *Renderer) RenderAll(ctx context.Context, ds *models.CleanDataset, dir string) ([]string, error) {
	_, span := observability.StartSpan(ctx, "charts.render_all", attribute.String("dir", dir))
	paths, err := r.renderAll(ctx, ds, dir)
	observability.FinishSpan(span, err)
	return paths, err
}

func (r *Renderer) renderAll(ctx context.Context, ds *models.CleanDataset, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	paths := make([]string, 0, len(registry))
	for _, c := range registry {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		var buf bytes.Buffer
		if err := c.render(&buf, ds); err != nil {
			return paths, fmt.Errorf("render %s: %w", c.Name, err)
		}

		path := filepath.Join(dir, c.File)
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		r.logger.Debug("chart written", "chart", c.Name, "path", path, "bytes", buf.Len())
		paths = append(paths, path)
	}
	return paths, nil
}

func (c Chart) render(w io.Writer, ds *models.CleanDataset) error {
	p := plot.New()
	p.Title.Text = c.Title
	if err := c.build(p, ds); err != nil {
		return err
	}

	wt, err := p.WriterTo(c.Width, c.Height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

func genreDistribution(p *plot.Plot, ds *models.CleanDataset) error {
	counts := pipeline.GenreCounts(ds)
	labels := make([]string, len(counts))
	values := make(plotter.Values, len(counts))
	for i, c := range counts {
		labels[i] = c.Genre
		values[i] = float64(c.Count)
	}
	p.Y.Label.Text = "Records"
	return addBars(p, labels, values)
}

func regionDistribution(p *plot.Plot, ds *models.CleanDataset) error {
	var labels []string
	var values plotter.Values
	for _, col := range []string{models.ColNASales, models.ColEUSales, models.ColJPSales} {
		if !ds.Has(col) {
			continue
		}
		labels = append(labels, col)
		values = append(values, pipeline.Total(ds, col))
	}
	p.Y.Label.Text = "Sales (millions)"
	return addBars(p, labels, values)
}

func genreSales(p *plot.Plot, ds *models.CleanDataset) error {
	rows := pipeline.SalesByGenre(ds)
	labels := make([]string, len(rows))
	values := make(plotter.Values, len(rows))
	for i, row := range rows {
		labels[i] = row.Genre
		values[i] = row.GlobalSales
	}
	p.Y.Label.Text = "Sales (millions)"
	return addBars(p, labels, values)
}

func platformSales(p *plot.Plot, ds *models.CleanDataset) error {
	rows := pipeline.PlatformTotals(ds)
	labels := make([]string, len(rows))
	values := make(plotter.Values, len(rows))
	for i, row := range rows {
		labels[i] = row.Platform
		values[i] = row.GlobalSales
	}
	p.Y.Label.Text = "Global sales (millions)"
	return addBars(p, labels, values)
}

func annualSales(p *plot.Plot, ds *models.CleanDataset) error {
	rows := pipeline.AnnualSales(ds)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Global sales (millions)"
	if len(rows) == 0 {
		p.Title.Text += " (no data)"
		return nil
	}

	xys := make(plotter.XYs, len(rows))
	for i, row := range rows {
		xys[i].X = float64(row.Year)
		xys[i].Y = row.GlobalSales
	}

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return err
	}
	line.Color = barColor
	points.Color = barColor
	points.Shape = draw.CircleGlyph{}
	p.Add(plotter.NewGrid(), line, points)
	return nil
}

func platformDecade(p *plot.Plot, ds *models.CleanDataset) error {
	grid := newDecadeGrid(pipeline.PlatformByDecade(ds))
	if len(grid.platforms) == 0 {
		p.Title.Text += " (no data)"
		return nil
	}

	hm := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	labels := make([]string, len(grid.decades))
	for i, d := range grid.decades {
		labels[i] = strconv.Itoa(d) + "s"
	}
	p.NominalX(labels...)
	p.NominalY(grid.platforms...)
	p.X.Label.Text = "Decade"
	return nil
}

func regionShare(p *plot.Plot, ds *models.CleanDataset) error {
	pie := pieChart{}
	for _, row := range pipeline.RegionTotals(ds) {
		if row.Sales > 0 {
			pie.labels = append(pie.labels, row.Region)
			pie.values = append(pie.values, row.Sales)
		}
	}
	p.HideAxes()
	if len(pie.values) == 0 {
		p.Title.Text += " (no data)"
		return nil
	}

	total := floats.Sum(pie.values)
	for i, label := range pie.labels {
		p.Legend.Add(fmt.Sprintf("%s %.1f%%", label, 100*pie.values[i]/total), swatch{plotutil.Color(i)})
	}
	p.Legend.Top = true
	p.Add(pie)
	return nil
}

func salesCorrelation(p *plot.Plot, ds *models.CleanDataset) error {
	columns, matrix := pipeline.SalesCorrelation(ds)
	if len(columns) == 0 || len(ds.Records) == 0 {
		p.Title.Text += " (no data)"
		return nil
	}

	hm := plotter.NewHeatMap(matrixGrid(matrix), palette.Heat(12, 1))
	hm.Min, hm.Max = -1, 1
	p.Add(hm)
	p.NominalX(columns...)
	p.NominalY(columns...)
	return nil
}

func addBars(p *plot.Plot, labels []string, values plotter.Values) error {
	if len(values) == 0 {
		p.Title.Text += " (no data)"
		return nil
	}

	bars, err := plotter.NewBarChart(values, barWidth(len(values)))
	if err != nil {
		return err
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0

	p.Add(plotter.NewGrid(), bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	return nil
}

func barWidth(n int) vg.Length {
	switch {
	case n > 30:
		return vg.Points(8)
	case n > 12:
		return vg.Points(14)
	default:
		return vg.Points(24)
	}
}

// decadeGrid lays platform×decade sums out as a plotter.GridXYZ. Columns are
// decades, rows are platforms, absent combinations are zero.
type decadeGrid struct {
	decades   []int
	platforms []string
	z         [][]float64
}

func newDecadeGrid(rows []models.PlatformDecadeSales) *decadeGrid {
	decadeIdx := map[int]int{}
	platformIdx := map[string]int{}
	g := &decadeGrid{}
	for _, row := range rows {
		if _, ok := decadeIdx[row.Decade]; !ok {
			decadeIdx[row.Decade] = len(g.decades)
			g.decades = append(g.decades, row.Decade)
		}
		if _, ok := platformIdx[row.Platform]; !ok {
			platformIdx[row.Platform] = len(g.platforms)
			g.platforms = append(g.platforms, row.Platform)
		}
	}

	g.z = make([][]float64, len(g.platforms))
	for i := range g.z {
		g.z[i] = make([]float64, len(g.decades))
	}
	for _, row := range rows {
		g.z[platformIdx[row.Platform]][decadeIdx[row.Decade]] += row.GlobalSales
	}
	return g
}

func (g *decadeGrid) Dims() (c, r int)   { return len(g.decades), len(g.platforms) }
func (g *decadeGrid) Z(c, r int) float64 { return g.z[r][c] }
func (g *decadeGrid) X(c int) float64    { return float64(c) }
func (g *decadeGrid) Y(r int) float64    { return float64(r) }

// matrixGrid exposes a square matrix to plotter.HeatMap. Undefined (NaN)
// coefficients are drawn as zero.
type matrixGrid [][]float64

func (m matrixGrid) Dims() (c, r int) { return len(m), len(m) }
func (m matrixGrid) X(c int) float64  { return float64(c) }
func (m matrixGrid) Y(r int) float64  { return float64(r) }

func (m matrixGrid) Z(c, r int) float64 {
	if v := m[r][c]; !math.IsNaN(v) {
		return v
	}
	return 0
}

// pieChart draws one wedge per value, counterclockwise from twelve o'clock.
type pieChart struct {
	labels []string
	values []float64
}

func (pc pieChart) Plot(c draw.Canvas, _ *plot.Plot) {
	total := floats.Sum(pc.values)
	if total <= 0 {
		return
	}

	center := c.Center()
	radius := min(c.Max.X-c.Min.X, c.Max.Y-c.Min.Y) * 0.45
	start := math.Pi / 2
	for i, v := range pc.values {
		sweep := 2 * math.Pi * v / total

		var wedge vg.Path
		wedge.Move(center)
		wedge.Arc(center, radius, start, sweep)
		wedge.Close()

		c.SetColor(plotutil.Color(i))
		c.Fill(wedge)
		start += sweep
	}
}

// swatch is a legend entry filled with a single color.
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, c.ClipPolygonY(pts))
}
