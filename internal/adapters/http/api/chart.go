package api

import (
	"bytes"
	"fmt"
	"html"
	"net/http"

	"github.com/okian/stemai/internal/domain/energy"
	"github.com/okian/stemai/internal/domain/model"
)

// Chart geometry in SVG user units.
const (
	chartWidth   = 640
	chartLabelW  = 90
	chartValueW  = 60
	chartBarH    = 28
	chartGap     = 10
	chartTop     = 16
	chartAxisH   = 40
	chartBarArea = chartWidth - chartLabelW - chartValueW
)

// ChartAxisLabel is printed under the percentage axis.
const ChartAxisLabel = "Percentage of Total Energy (%)"

var chartPalette = []string{"#4e79a7", "#f28e2b", "#59a14f", "#e15759", "#76b7b2", "#edc948"}

// ChartHandler renders a job's energy distribution.
type ChartHandler struct {
	deps Dependencies
}

// NewChartHandler creates a new chart handler.
func NewChartHandler(deps Dependencies) *ChartHandler {
	return &ChartHandler{deps: deps}
}

// HandleChart handles GET /separations/{id}/chart.svg.
func (h *ChartHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_chart"

	job, err := h.deps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if job.Status != model.JobSucceeded {
		writeError(w, http.StatusConflict, "not_ready", NewKind(op, ErrBadRequest))
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(RenderChart(energy.Ranked(job.Distribution)))
}

// RenderChart draws shares as horizontal bars, largest first as given,
// on a fixed 0-100% scale.
func RenderChart(shares []energy.Share) []byte {
	height := chartTop + len(shares)*(chartBarH+chartGap) + chartAxisH
	axisY := chartTop + len(shares)*(chartBarH+chartGap)

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="13">`+"\n",
		chartWidth, height, chartWidth, height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`+"\n", chartWidth, height)

	for i, s := range shares {
		y := chartTop + i*(chartBarH+chartGap)
		w := s.Percent / 100 * chartBarArea
		if w < 0 {
			w = 0
		}
		label := html.EscapeString(s.Label)
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="end" dominant-baseline="middle">%s</text>`+"\n",
			chartLabelW-8, y+chartBarH/2, label)
		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%.2f" height="%d" fill="%s"><title>%s</title></rect>`+"\n",
			chartLabelW, y, w, chartBarH, chartPalette[i%len(chartPalette)], label)
		fmt.Fprintf(&b, `<text x="%.2f" y="%d" dominant-baseline="middle">%.1f%%</text>`+"\n",
			float64(chartLabelW)+w+6, y+chartBarH/2, s.Percent)
	}

	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#333"/>`+"\n",
		chartLabelW, axisY, chartLabelW+chartBarArea, axisY)
	for pct := 0; pct <= 100; pct += 25 {
		x := chartLabelW + pct*chartBarArea/100
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" font-size="11">%d</text>`+"\n", x, axisY+14, pct)
	}
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle">%s</text>`+"\n",
		chartLabelW+chartBarArea/2, axisY+32, html.EscapeString(ChartAxisLabel))
	b.WriteString("</svg>\n")
	return b.Bytes()
}
