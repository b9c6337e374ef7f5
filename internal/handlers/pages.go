package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/services"
	"vgsales-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type PageHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewPageHandlers(analytics *services.Analytics, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// HandleDashboard renders the page for the unfiltered view. Without a
// cleaned dataset it answers 503 naming the stage to run.
func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	requestID := observability.GetRequestID(ctx)

	view, err := h.analytics.View(ctx, services.Filter{}, services.DefaultTopN)
	if err != nil {
		errors.WriteError(w, r, h.logger, err, requestID)
		return
	}

	var buf bytes.Buffer
	if err := templates.Dashboard(view).Render(ctx, &buf); err != nil {
		errors.WriteError(w, r, h.logger, errors.InternalWrap(err, "failed to render dashboard"), requestID)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}
