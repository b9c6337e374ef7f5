package handlers

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"vgsales-dashboard/internal/charts"
	"vgsales-dashboard/internal/dataset"
	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/models"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/pipeline"
	"vgsales-dashboard/internal/services"
)

const (
	cacheShort     = "public, max-age=60"
	exportFileName = "filtered_video_game_sales"
)

type APIHandlers struct {
	analytics *services.Analytics
	renderer  *charts.Renderer
	outputDir string
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewAPIHandlers(analytics *services.Analytics, renderer *charts.Renderer, outputDir string, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		renderer:  renderer,
		outputDir: outputDir,
		logger:    logger,
		validate:  validator.New(),
	}
}

type viewQuery struct {
	Top int `validate:"omitempty,min=5,max=50"`
}

// parseView reads the filter and the optional top parameter.
func (h *APIHandlers) parseView(r *http.Request) (services.Filter, int, error) {
	q := r.URL.Query()

	f, err := services.FilterFromQuery(q)
	if err != nil {
		return services.Filter{}, 0, errors.BadRequestWrap(err, err.Error())
	}

	var vq viewQuery
	if raw := q.Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return services.Filter{}, 0, errors.BadRequest("top must be an integer")
		}
		vq.Top = n
	}
	if err := h.validate.Struct(vq); err != nil {
		return services.Filter{}, 0, errors.ValidationWrap(err, "top must be between 5 and 50")
	}

	return f, vq.Top, nil
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, r, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) subset(w http.ResponseWriter, r *http.Request) (*models.CleanDataset, bool) {
	f, _, err := h.parseView(r)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	ds, err := h.analytics.Filtered(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return ds, true
}

func (h *APIHandlers) respond(w http.ResponseWriter, r *http.Request, data any) {
	errors.WriteSuccessWithHeaders(w, r, data, map[string]string{
		"Cache-Control": cacheShort,
	})
}

func (h *APIHandlers) HandleOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.analytics.Options(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, opts)
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if ds, ok := h.subset(w, r); ok {
		h.respond(w, r, services.Summarize(ds))
	}
}

func (h *APIHandlers) HandleGenreSales(w http.ResponseWriter, r *http.Request) {
	if ds, ok := h.subset(w, r); ok {
		h.respond(w, r, pipeline.SalesByGenre(ds))
	}
}

func (h *APIHandlers) HandleAnnualSales(w http.ResponseWriter, r *http.Request) {
	if ds, ok := h.subset(w, r); ok {
		h.respond(w, r, pipeline.AnnualSales(ds))
	}
}

func (h *APIHandlers) HandleTopGames(w http.ResponseWriter, r *http.Request) {
	f, top, err := h.parseView(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ds, err := h.analytics.Filtered(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, pipeline.TopGames(ds, services.ClampTopN(top)))
}

func (h *APIHandlers) HandlePlatformSales(w http.ResponseWriter, r *http.Request) {
	if ds, ok := h.subset(w, r); ok {
		h.respond(w, r, pipeline.PlatformTotals(ds))
	}
}

func (h *APIHandlers) HandlePlatformDecade(w http.ResponseWriter, r *http.Request) {
	if ds, ok := h.subset(w, r); ok {
		h.respond(w, r, pipeline.PlatformByDecade(ds))
	}
}

// HandleExportCSV downloads the filtered records in the cleaned file layout.
func (h *APIHandlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.subset(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := dataset.EncodeClean(&buf, ds); err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to encode export"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFileName+`.csv"`)
	w.Write(buf.Bytes())
}

func (h *APIHandlers) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.subset(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := dataset.EncodeWorkbook(&buf, ds); err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to encode workbook"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFileName+`.xlsx"`)
	w.Write(buf.Bytes())
}

// PrecomputedTable is a persisted aggregate table as served to the browser.
type PrecomputedTable struct {
	File   string     `json:"file"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// HandlePrecomputed serves one of the tables written by the aggregate stage.
func (h *APIHandlers) HandlePrecomputed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	if !strings.HasSuffix(name, ".csv") {
		name += ".csv"
	}
	if !slices.Contains(pipeline.AggregateFiles, name) {
		h.fail(w, r, errors.NotFound("unknown table "+name))
		return
	}

	path := filepath.Join(h.outputDir, name)
	table, err := dataset.ReadTable(r.Context(), path, name, "run `vgsales aggregate` first")
	if err != nil {
		var missing *errors.MissingInputError
		if stderrors.As(err, &missing) {
			err = errors.Wrap(err, errors.CodeNotFound, name+" has not been generated").WithDetails(missing.Remedy)
		}
		h.fail(w, r, err)
		return
	}

	h.respond(w, r, PrecomputedTable{File: name, Header: table.Header, Rows: table.Rows})
}

// HandleChart renders a chart for the filtered view.
func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(chi.URLParam(r, "chart"), ".png")
	if _, ok := charts.Lookup(name); !ok {
		h.fail(w, r, errors.NotFound("unknown chart "+name))
		return
	}

	ds, ok := h.subset(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, name, ds); err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to render chart"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", cacheShort)
	w.Write(buf.Bytes())
}

// HandleStaticChart serves a PNG written by the render stage.
func (h *APIHandlers) HandleStaticChart(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if !charts.IsChartFile(file) {
		h.fail(w, r, errors.NotFound("unknown chart file "+file))
		return
	}

	path := filepath.Join(h.outputDir, file)
	if _, err := os.Stat(path); err != nil {
		h.fail(w, r, errors.NotFound(file+" has not been rendered").WithDetails("run `vgsales render` first"))
		return
	}

	w.Header().Set("Cache-Control", cacheShort)
	http.ServeFile(w, r, path)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, r, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, r, h.analytics.Stats())
}
