// Package chart serves chart-ready telemetry over HTTP: each request runs
// the pkg/chartdata reduction pipeline over stored samples and returns a
// fixed-budget point set plus a stable axis ceiling. It also hosts the CSV
// export endpoint and the live WebSocket hub.
package chart

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pulseboard/pulseboard/pkg/chartdata"
	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/httpx"
	"github.com/pulseboard/pulseboard/pkg/storage"
)

// palette assigns stable colors to series by index; the renderer may
// override but gets a sensible default.
var palette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2",
	"#59a14f", "#edc949", "#af7aa1", "#ff9da7",
}

// Handler serves chart data for stored metrics.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a chart handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// ChartResponse is the payload the renderer consumes: reduced series plus
// one shared axis ceiling. AxisMax is omitted when unspecified, telling the
// renderer to auto-scale.
type ChartResponse struct {
	Metric      string              `json:"metric"`
	Granularity storage.Granularity `json:"granularity"`
	AxisMax     *float64            `json:"axis_max,omitempty"`
	Series      []chartdata.Series  `json:"series"`
}

// chartParams are the parsed query parameters of one chart request.
type chartParams struct {
	granularity storage.Granularity
	start       time.Time
	end         time.Time
	points      int
	smoothing   float64
	floor       float64
}

// HandleChart handles GET /v1/charts/{metric}.
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	metric := mux.Vars(r)["metric"]

	params, err := parseChartParams(r)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := contextWithTimeout(r, config.ChartQueryTimeout)
	defer cancel()

	names, err := h.storage.SeriesNames(ctx, metric)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	if len(names) == 0 {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown metric %q", metric))
		return
	}

	// Smoothing happens before the axis is computed so the shared ceiling
	// reflects what will actually be drawn, and before downsampling so the
	// ceiling does not depend on which points the reduction keeps.
	smoothed := make([]chartdata.Sequence, 0, len(names))
	series := make([]chartdata.Series, 0, len(names))

	for i, name := range names {
		samples, err := h.storage.Query(ctx, storage.QueryRequest{
			Metric:      metric,
			Series:      name,
			Granularity: params.granularity,
			Start:       params.start,
			End:         params.end,
		})
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		seq := toSequence(samples)
		if params.smoothing > 0 {
			seq = chartdata.Smooth(seq, params.smoothing)
		}
		smoothed = append(smoothed, seq)

		label := name
		if label == "" {
			label = metric
		}
		series = append(series, chartdata.Series{
			Name:   label,
			Color:  palette[i%len(palette)],
			Points: chartdata.Downsample(seq, params.points),
		})
	}

	resp := ChartResponse{
		Metric:      metric,
		Granularity: params.granularity,
		Series:      series,
	}
	if axis, ok := chartdata.AxisMaxAll(smoothed, params.floor); ok {
		resp.AxisMax = &axis
	}

	httpx.RespondJSON(w, http.StatusOK, resp)
}

// HandleMetricsList handles GET /v1/metrics.
func (h *Handler) HandleMetricsList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, config.MetricsListTimeout)
	defer cancel()

	metrics, err := h.storage.Metrics(ctx)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"metrics": metrics,
		"count":   len(metrics),
	})
}

// HandleStats handles GET /v1/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, config.MetricsListTimeout)
	defer cancel()

	stats, err := h.storage.Stats(ctx)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, stats)
}

func parseChartParams(r *http.Request) (chartParams, error) {
	q := r.URL.Query()

	params := chartParams{
		points: config.ChartDefaultPoints,
		end:    time.Now().UTC(),
	}

	var err error
	if params.granularity, err = storage.ParseGranularity(q.Get("granularity")); err != nil {
		return params, err
	}

	if raw := q.Get("end"); raw != "" {
		if params.end, err = time.Parse(time.RFC3339, raw); err != nil {
			return params, fmt.Errorf("invalid end time: %w", err)
		}
	}
	params.start = params.end.Add(-config.ChartDefaultWindow)
	if raw := q.Get("start"); raw != "" {
		if params.start, err = time.Parse(time.RFC3339, raw); err != nil {
			return params, fmt.Errorf("invalid start time: %w", err)
		}
	}
	if params.end.Before(params.start) {
		return params, fmt.Errorf("end time precedes start time")
	}
	if params.end.Sub(params.start) > config.ChartMaxWindow {
		return params, fmt.Errorf("window exceeds maximum of %v", config.ChartMaxWindow)
	}

	if raw := q.Get("points"); raw != "" {
		points, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("invalid points: %w", err)
		}
		// Budgets below 3 make the reduction a no-op by contract; the cap
		// protects the renderer, not the pipeline.
		if points > config.ChartMaxPoints {
			points = config.ChartMaxPoints
		}
		params.points = points
	}

	if raw := q.Get("smoothing"); raw != "" {
		alpha, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, fmt.Errorf("invalid smoothing: %w", err)
		}
		if alpha < 0 || alpha > 1 {
			return params, fmt.Errorf("smoothing must be in [0,1], got %v", alpha)
		}
		params.smoothing = alpha
	}

	if raw := q.Get("floor"); raw != "" {
		floor, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, fmt.Errorf("invalid floor: %w", err)
		}
		params.floor = floor
	}

	return params, nil
}

// toSequence normalizes stored samples into the pipeline's numeric form.
// Unparseable timestamps become NaN points and ride through; one bad sample
// must not blank the chart.
func toSequence(samples []storage.Sample) chartdata.Sequence {
	seq := make(chartdata.Sequence, len(samples))
	for i, smp := range samples {
		seq[i] = chartdata.Sample{
			T: chartdata.NormalizeTimestamp(smp.Timestamp),
			V: smp.Value,
		}
	}
	return seq
}
