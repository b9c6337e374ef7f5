package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/services"
	"vgsales-dashboard/internal/ui/templates"
)

// filterSignals mirrors the signals declared on the dashboard page.
type filterSignals struct {
	Decades   []string `json:"decades"`
	Platforms []string `json:"platforms"`
	Genres    []string `json:"genres"`
	TopN      flexInt  `json:"topN"`
}

// flexInt accepts a JSON number or a numeric string; range inputs may bind
// either.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var v json.Number
	if err := json.Unmarshal(data, &v); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v = json.Number(s)
	}
	if v == "" {
		*n = 0
		return nil
	}
	f, err := v.Float64()
	if err != nil {
		return err
	}
	*n = flexInt(f)
	return nil
}

func (s filterSignals) query() url.Values {
	q := url.Values{}
	q["decade"] = s.Decades
	q["platform"] = s.Platforms
	q["genre"] = s.Genres
	if s.TopN > 0 {
		q.Set("top", strconv.Itoa(int(s.TopN)))
	}
	return q
}

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func renderFragment(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HandleRefresh recomputes the view for the filter signals and patches the
// metric cards, tables, chart images, download links and the records table.
func (h *SSEHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	requestID := observability.GetRequestID(r.Context())

	var signals filterSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		errors.WriteError(w, r, h.logger, errors.BadRequestWrap(err, "invalid signals"), requestID)
		return
	}

	q := signals.query()
	f, err := services.FilterFromQuery(q)
	if err != nil {
		errors.WriteError(w, r, h.logger, errors.BadRequestWrap(err, err.Error()), requestID)
		return
	}

	view, err := h.analytics.View(r.Context(), f, int(signals.TopN))
	if err != nil {
		errors.WriteError(w, r, h.logger, err, requestID)
		return
	}

	// Chart and download URLs carry only the filter.
	q.Del("top")

	sse := datastar.NewSSE(w, r)
	ctx := r.Context()

	for _, c := range []templ.Component{
		templates.Metrics(view.Summary),
		templates.GenreSales(view.GenreSales),
		templates.TopGames(view.TopN, view.TopGames),
		templates.PlatformSales(view.PlatformSales),
		templates.Charts(q),
		templates.Downloads(q),
		templates.Records(view.Records, view.Summary.Games),
	} {
		html, err := renderFragment(ctx, c)
		if err != nil {
			h.logger.Error("render fragment", "error", err, "request_id", requestID)
			return
		}
		if err := sse.PatchElements(html); err != nil {
			h.logger.Warn("patch elements", "error", err, "request_id", requestID)
			return
		}
	}

	data, err := json.Marshal(map[string]any{
		"annualSales":   view.AnnualSales,
		"platformSales": view.PlatformSales,
		"games":         view.Summary.Games,
	})
	if err != nil {
		h.logger.Error("marshal signals", "error", err, "request_id", requestID)
		return
	}
	sse.PatchSignals(data)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
