/*
handlers.go - HTTP API handlers for the reporting catalog

PURPOSE:
  Exposes the indicator registry, reports, and exports via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  factory and indicator packages.

ENDPOINTS:
  Indicators:
    GET    /api/indicators                     List registered indicators
    GET    /api/indicators/{name}              Evaluate over one period
    GET    /api/indicators/{name}/series       Evaluate per month or quarter

  Periods:
    GET    /api/periods                        Named windows resolved for today

  Reports:
    POST   /api/reports                        Run a report definition
    POST   /api/reports/export                 Run and download (xlsx, parquet)

  Participants:
    GET    /api/participants/{id}              Name and stays

  Plots:
    POST   /api/plot                           Monthly Month / Value frame

  Aggregates (when an aggregate database is configured):
    GET    /api/agg/{table}?columns=a,b        Monthly plot table
    GET    /api/agg/{table}/teams/{column}     One column per team

PERIOD PARAMETERS:
  ?window=last_quarter, or ?start=2024-01-01&end=2024-03-31. Without either
  a single value covers the last month and a series the default series
  window.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid period, window, granularity, identifier or report, or a
         series longer than the sub-period cap
  - 404: Unknown indicator, column or participant
  - 503: Database unreachable
  - 500: Query failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/whatscottcodes/paceutils/agg"
	"github.com/whatscottcodes/paceutils/export"
	"github.com/whatscottcodes/paceutils/factory"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/logging"
	"github.com/whatscottcodes/paceutils/observability"
	"github.com/whatscottcodes/paceutils/participant"
	"github.com/whatscottcodes/paceutils/plot"
	"go.uber.org/zap"
)

// maxReportBody bounds report definitions read from a request.
const maxReportBody = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the reporting database the handlers query.
type Store interface {
	generic.Executor
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry *factory.Registry
	Reports  *factory.ReportFactory

	store        Store
	calendar     generic.Calendar
	participants *participant.Participant
	plotter      *plot.Plotter
	agg          *agg.Agg // nil without an aggregate database
	maxSeries    int
	log          *zap.Logger
}

// NewHandler builds the catalog over db and resolves windows against cal.
func NewHandler(db Store, cal generic.Calendar, log *zap.Logger) *Handler {
	reg := factory.Catalog(db)
	return &Handler{
		Registry:     reg,
		Reports:      factory.NewReportFactory(reg, cal),
		store:        db,
		calendar:     cal,
		participants: participant.New(db),
		plotter:      plot.New(db),
		maxSeries:    generic.DefaultMaxSubPeriods,
		log:          logging.OrNop(log),
	}
}

// WithMaxSubPeriods caps series requests and report series items at n
// sub-periods. Zero or less removes the cap.
func (h *Handler) WithMaxSubPeriods(n int) *Handler {
	h.maxSeries = n
	h.Reports.WithMaxSubPeriods(n)
	return h
}

// WithAgg enables the aggregate plot endpoints.
func (h *Handler) WithAgg(a *agg.Agg) *Handler {
	h.agg = a
	return h
}

// =============================================================================
// INDICATOR HANDLERS
// =============================================================================

// ListIndicators returns registered indicators, optionally filtered by
// ?kind= and ?prefix=.
// GET /api/indicators
func (h *Handler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	kind := factory.Kind(r.URL.Query().Get("kind"))
	prefix := r.URL.Query().Get("prefix")

	dtos := []IndicatorDTO{}
	for _, d := range h.Registry.List() {
		if kind != "" && d.Kind != kind {
			continue
		}
		if !strings.HasPrefix(d.Name, prefix) {
			continue
		}
		dtos = append(dtos, IndicatorDTO{Name: d.Name, Description: d.Description, Kind: d.Kind})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetIndicator evaluates one indicator over the requested period.
// GET /api/indicators/{name}
func (h *Handler) GetIndicator(w http.ResponseWriter, r *http.Request) {
	def, err := h.Registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	win, p, err := h.period(r, h.calendar.LastMonth())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	v, err := def.Evaluate(r.Context(), p)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValueDTO{
		Indicator: def.Name,
		Kind:      def.Kind,
		Period:    toPeriodDTO(win, p),
		Value:     v.Number,
		Table:     v.Table,
	})
}

// GetSeries evaluates one indicator per sub-period. ?granularity defaults
// to monthly.
// GET /api/indicators/{name}/series
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	def, err := h.Registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	win, p, err := h.period(r, h.calendar.SeriesWindow())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	g, err := generic.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := generic.CheckSeriesLength(p, g, h.maxSeries); err != nil {
		h.writeErr(w, r, err)
		return
	}

	s, err := def.BuildSeries(r.Context(), p, g)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SeriesDTO{
		Indicator:   def.Name,
		Kind:        def.Kind,
		Period:      toPeriodDTO(win, p),
		Granularity: g,
		Table:       s.Table(),
	})
}

// ListPeriods resolves every named window against today.
// GET /api/periods
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	dtos := make([]PeriodDTO, 0, len(generic.Windows))
	for _, win := range generic.Windows {
		p, err := h.calendar.Window(win)
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		dtos = append(dtos, toPeriodDTO(win, p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// RunReport runs the report definition in the body.
// POST /api/reports
func (h *Handler) RunReport(w http.ResponseWriter, r *http.Request) {
	result, err := h.runReport(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ExportReport runs the report and returns a workbook, or with
// ?format=parquet the series items in long form.
// POST /api/reports/export
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "parquet" {
		h.writeErr(w, r, fmt.Errorf("%w: unsupported export format %q", generic.ErrInvalidReport, format))
		return
	}

	result, err := h.runReport(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s.%s", result.ID, format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	switch format {
	case "parquet":
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
		err = export.WriteSeriesParquet(w, export.ReportRows(result))
	default:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = export.WriteWorkbook(w, export.ReportSheets(result))
	}
	if err != nil {
		// Headers may already be sent; log only.
		h.log.Error("export failed", zap.String("report", result.ID), zap.Error(err))
		observability.CaptureErr(err)
	}
}

func (h *Handler) runReport(r *http.Request) (*factory.Result, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxReportBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", generic.ErrInvalidReport, err)
	}
	report, err := h.Reports.ParseReport(string(body))
	if err != nil {
		return nil, err
	}
	return report.Run(r.Context())
}

// =============================================================================
// PARTICIPANT HANDLERS
// =============================================================================

// GetParticipant returns a participant's name and stays in the period.
// GET /api/participants/{id}
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid member id", err)
		return
	}
	win, p, err := h.period(r, h.calendar.LastYear())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	ctx := r.Context()
	first, last, err := h.participants.Name(ctx, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	stays, err := h.participants.Stays(ctx, p, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ParticipantDTO{
		MemberID: id,
		First:    first,
		Last:     last,
		Period:   toPeriodDTO(win, p),
		Stays:    stays,
	})
}

// =============================================================================
// AGGREGATE HANDLERS
// =============================================================================

// AggPlot returns the monthly rows of ?columns= from an aggregate table.
// GET /api/agg/{table}
func (h *Handler) AggPlot(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		writeError(w, http.StatusNotFound, "Aggregate database not configured", nil)
		return
	}
	var cols []string
	for _, c := range strings.Split(r.URL.Query().Get("columns"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	_, p, err := h.optionalPeriod(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	t, err := h.agg.PlotTable(r.Context(), chi.URLParam(r, "table"), cols, p)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// AggTeamPlot returns one column of an aggregate table split by team.
// GET /api/agg/{table}/teams/{column}
func (h *Handler) AggTeamPlot(w http.ResponseWriter, r *http.Request) {
	if h.agg == nil {
		writeError(w, http.StatusNotFound, "Aggregate database not configured", nil)
		return
	}
	_, p, err := h.optionalPeriod(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	t, err := h.agg.TeamPlotTable(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "column"), p)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// =============================================================================
// PLOT HANDLERS
// =============================================================================

// PlotFrame summarizes one reporting table by month for the period in the
// query string, defaulting to the series window.
// POST /api/plot
func (h *Handler) PlotFrame(w http.ResponseWriter, r *http.Request) {
	var req plot.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxReportBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plot request", err)
		return
	}
	win, p, err := h.period(r, h.calendar.SeriesWindow())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := generic.CheckSeriesLength(p, generic.Monthly, h.maxSeries); err != nil {
		h.writeErr(w, r, err)
		return
	}

	s, err := h.plotter.Frame(r.Context(), req, p)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PlotDTO{
		Request: req,
		Period:  toPeriodDTO(win, p),
		Table:   s.Table(),
	})
}

// =============================================================================
// HEALTH
// =============================================================================

// Health pings the reporting database.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// period reads ?window= or ?start=&end=, falling back to def.
func (h *Handler) period(r *http.Request, def generic.Period) (generic.Window, generic.Period, error) {
	win, p, err := h.optionalPeriod(r)
	if err != nil || !p.IsZero() {
		return win, p, err
	}
	return "", def, nil
}

// optionalPeriod is period without a default; the zero Period means none
// was given.
func (h *Handler) optionalPeriod(r *http.Request) (generic.Window, generic.Period, error) {
	q := r.URL.Query()
	if s := q.Get("window"); s != "" {
		win, err := generic.ParseWindow(s)
		if err != nil {
			return "", generic.Period{}, err
		}
		p, err := h.calendar.Window(win)
		return win, p, err
	}
	if q.Get("start") != "" || q.Get("end") != "" {
		p, err := generic.ParsePeriod(q.Get("start"), q.Get("end"))
		return "", p, err
	}
	return "", generic.Period{}, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConnectivity(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
		observability.CaptureBackendErr(err)
		writeError(w, status, http.StatusText(status), err)
		return
	}
	writeError(w, status, http.StatusText(status), err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
