package chart

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/pulseboard/pulseboard/pkg/config"
	"github.com/pulseboard/pulseboard/pkg/httpx"
	"github.com/pulseboard/pulseboard/pkg/storage"
)

// MaxExportWindow caps the export range; anything larger should go
// through the rollup tiers instead of a raw dump.
const MaxExportWindow = 30 * 24 * time.Hour

// ExportOptions configures one export run.
type ExportOptions struct {
	Start       time.Time
	End         time.Time
	Granularity storage.Granularity

	// Metrics filters by metric name (nil = all metrics).
	Metrics []string
}

// ExportResult summarizes what an export wrote.
type ExportResult struct {
	SamplesExported int       `json:"samples_exported"`
	TimeRange       string    `json:"time_range"`
	Format          string    `json:"format"`
	ExportedAt      time.Time `json:"exported_at"`
}

// collect gathers every sample matching the options, grouped by metric in
// storage order.
func (h *Handler) collect(ctx context.Context, opts ExportOptions) ([]storage.Sample, error) {
	names := opts.Metrics
	if len(names) == 0 {
		var err error
		if names, err = h.storage.Metrics(ctx); err != nil {
			return nil, fmt.Errorf("failed to list metrics: %w", err)
		}
	}

	var out []storage.Sample
	for _, metric := range names {
		samples, err := h.storage.Query(ctx, storage.QueryRequest{
			Metric:      metric,
			Granularity: opts.Granularity,
			Start:       opts.Start,
			End:         opts.End,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", metric, err)
		}
		out = append(out, samples...)
	}
	return out, nil
}

// ExportJSON writes samples as a JSON document with export metadata, in the
// same shape Append accepts, so a dump can be replayed into another instance.
func (h *Handler) ExportJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	samples, err := h.collect(ctx, opts)
	if err != nil {
		return nil, err
	}

	doc := struct {
		Metadata struct {
			ExportedAt  time.Time           `json:"exported_at"`
			StartTime   time.Time           `json:"start_time"`
			EndTime     time.Time           `json:"end_time"`
			Granularity storage.Granularity `json:"granularity"`
			SampleCount int                 `json:"sample_count"`
			Version     string              `json:"version"`
		} `json:"metadata"`
		Samples []storage.Sample `json:"samples"`
	}{
		Samples: samples,
	}
	doc.Metadata.ExportedAt = time.Now().UTC()
	doc.Metadata.StartTime = opts.Start
	doc.Metadata.EndTime = opts.End
	doc.Metadata.Granularity = opts.Granularity
	doc.Metadata.SampleCount = len(samples)
	doc.Metadata.Version = "1.0"

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		SamplesExported: len(samples),
		TimeRange:       fmt.Sprintf("%s to %s", opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339)),
		Format:          "json",
		ExportedAt:      doc.Metadata.ExportedAt,
	}, nil
}

// ExportCSV writes samples as flat CSV rows for spreadsheets and pandas.
func (h *Handler) ExportCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	samples, err := h.collect(ctx, opts)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"timestamp", "metric", "series", "granularity", "value"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, smp := range samples {
		row := []string{
			smp.Timestamp,
			smp.Metric,
			smp.Series,
			string(smp.Granularity),
			strconv.FormatFloat(smp.Value, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return &ExportResult{
		SamplesExported: len(samples),
		TimeRange:       fmt.Sprintf("%s to %s", opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339)),
		Format:          "csv",
		ExportedAt:      time.Now().UTC(),
	}, nil
}

// HandleExport handles GET /v1/export.
// Query params:
//   - format: "json" or "csv" (default: json)
//   - granularity: raw, hourly, daily, monthly (default: raw)
//   - start: RFC3339 timestamp (default: 24h before end)
//   - end: RFC3339 timestamp (default: now)
//   - metric: metric name filter (optional)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid format, must be 'json' or 'csv'")
		return
	}

	g, err := storage.ParseGranularity(query.Get("granularity"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	end := parseTimeParam(query.Get("end"), time.Now().UTC())
	start := parseTimeParam(query.Get("start"), end.Add(-config.DefaultExportWindow))

	if !start.Before(end) {
		httpx.RespondErrorString(w, http.StatusBadRequest, "start must be before end")
		return
	}
	if end.Sub(start) > MaxExportWindow {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("time range too large, maximum is %v", MaxExportWindow))
		return
	}

	opts := ExportOptions{
		Start:       start,
		End:         end,
		Granularity: g,
	}
	if metric := query.Get("metric"); metric != "" {
		opts.Metrics = []string{metric}
	}

	stamp := time.Now().Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=pulseboard-export-%s.json", stamp))
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=pulseboard-export-%s.csv", stamp))
	}

	ctx, cancel := contextWithTimeout(r, config.ExportTimeout)
	defer cancel()

	var result *ExportResult
	if format == "json" {
		result, err = h.ExportJSON(ctx, w, opts)
	} else {
		result, err = h.ExportCSV(ctx, w, opts)
	}
	if err != nil {
		// Headers are already out; the truncated body is the best signal left.
		log.Printf("Export failed: %v", err)
		return
	}

	log.Printf("Exported %d samples (%s) from %s", result.SamplesExported, format, result.TimeRange)
}

// parseTimeParam parses an RFC3339 query value, falling back on empty or
// malformed input.
func parseTimeParam(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fallback
	}
	return at
}
