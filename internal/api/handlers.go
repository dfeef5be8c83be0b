package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charliek/m3tail/internal/constants"
	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/ingest"
	"github.com/charliek/m3tail/internal/logs"
	"github.com/charliek/m3tail/internal/notify"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	store       *logs.Store
	controller  *ingest.Controller
	notices     *notify.Center
	diagnostics *notify.Diagnostics
	logger      *slog.Logger
	configFile  string
	startedAt   time.Time
	shutdownFn  func()
}

// NewHandlers creates new HTTP handlers
func NewHandlers(ctrl *ingest.Controller, notices *notify.Center, diags *notify.Diagnostics, logger *slog.Logger, configFile string) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:       ctrl.Store(),
		controller:  ctrl,
		notices:     notices,
		diagnostics: diags,
		logger:      logger,
		configFile:  configFile,
		startedAt:   time.Now(),
	}
}

// OnShutdown sets the function POST /api/v1/shutdown triggers.
// Without one the endpoint reports a precondition failure.
func (h *Handlers) OnShutdown(fn func()) {
	h.shutdownFn = fn
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.controller.Status()
	stats := h.store.Stats()

	resp := StatusResponse{
		State:          status.State.String(),
		Path:           status.Path,
		Include:        status.Include,
		TotalRecords:   stats.TotalRecords,
		VisibleRecords: stats.VisibleRecords,
		Filter:         ToFilterResponse(h.store.Criteria()),
		UptimeSeconds:  int64(time.Since(h.startedAt).Seconds()),
		ConfigFile:     h.configFile,
		APIVersion:     "v1",
	}
	if h.diagnostics != nil {
		resp.Diagnostics = h.diagnostics.Count()
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetLogs handles GET /api/v1/logs.
// With search, level or tags present the records are filtered ad hoc and
// the session criteria are left alone; otherwise the session view is returned.
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	params, adhoc := parseLogParams(r)

	var (
		records  []domain.LogRecord
		filtered int
	)
	if adhoc {
		records, filtered = h.store.Query(params.Criteria(), params.Lines)
	} else {
		view := h.store.View()
		filtered = len(view)
		records = logs.LastN(view, params.Lines)
	}

	resp := LogsResponse{
		Logs:          ToLogRecordResponses(records),
		FilteredCount: filtered,
		TotalCount:    h.store.Stats().TotalRecords,
	}

	writeJSON(w, http.StatusOK, resp)
}

// IngestLogs handles POST /api/v1/logs. The body is m3log text.
func (h *Handlers) IngestLogs(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxIngestBodySize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "reading request body: " + err.Error(),
			Code:  domain.ErrCodeInvalidRequest,
		})
		return
	}
	if len(body) > constants.MaxIngestBodySize {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "request body too large",
			Code:  domain.ErrCodeInvalidRequest,
		})
		return
	}

	result := h.controller.IngestContent("api", string(body))
	writeJSON(w, http.StatusOK, ToIngestResponse(result))
}

// ClearLogs handles POST /api/v1/logs/clear
func (h *Handlers) ClearLogs(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	if h.notices != nil {
		h.notices.Notify(notify.LevelInfo, "logs cleared")
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// GetFilter handles GET /api/v1/filter
func (h *Handlers) GetFilter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ToFilterResponse(h.store.Criteria()))
}

// SetFilter handles PUT /api/v1/filter. All three criteria are replaced.
func (h *Handlers) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid filter body: " + err.Error(),
			Code:  domain.ErrCodeInvalidRequest,
		})
		return
	}

	h.store.SetCriteria(req.Criteria())
	writeJSON(w, http.StatusOK, ToFilterResponse(h.store.Criteria()))
}

// GetLevels handles GET /api/v1/levels
func (h *Handlers) GetLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LevelsResponse{Levels: h.store.AvailableLevels()})
}

// GetTags handles GET /api/v1/tags
func (h *Handlers) GetTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TagsResponse{Tags: h.store.AvailableTags()})
}

// StartWatch handles POST /api/v1/watch
func (h *Handlers) StartWatch(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "invalid watch body: " + err.Error(),
			Code:  domain.ErrCodeInvalidRequest,
		})
		return
	}

	if err := h.controller.StartWatching(r.Context(), req.Path); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ToWatchResponse(h.controller.Status()))
}

// StopWatch handles POST /api/v1/watch/stop
func (h *Handlers) StopWatch(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.StopWatching(); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToWatchResponse(h.controller.Status()))
}

// GetDiagnostics handles GET /api/v1/diagnostics
func (h *Handlers) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	resp := DiagnosticsResponse{Diagnostics: []notify.Diagnostic{}}
	if h.diagnostics != nil {
		if d := h.diagnostics.Recent(parseLines(r, 0)); d != nil {
			resp.Diagnostics = d
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetNotices handles GET /api/v1/notices
func (h *Handlers) GetNotices(w http.ResponseWriter, r *http.Request) {
	resp := NoticesResponse{Notices: []notify.Notice{}}
	if h.notices != nil {
		if n := h.notices.Recent(parseLines(r, 0)); n != nil {
			resp.Notices = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Shutdown handles POST /api/v1/shutdown
func (h *Handlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	if h.shutdownFn == nil {
		h.writeError(w, fmt.Errorf("%w: shutdown not supported by this instance", domain.ErrPrecondition))
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})

	// Trigger shutdown asynchronously so the response is sent first
	go func() {
		time.Sleep(100 * time.Millisecond)
		h.shutdownFn()
	}()
}

// parseLogParams extracts query parameters. The second result reports
// whether any ad-hoc filter parameter was present.
func parseLogParams(r *http.Request) (domain.LogParams, bool) {
	q := r.URL.Query()
	params := domain.LogParams{
		Search: q.Get("search"),
		Level:  q.Get("level"),
		Lines:  parseLines(r, constants.DefaultLogLimit),
	}

	if tags := q.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				params.Tags = append(params.Tags, tag)
			}
		}
	}

	adhoc := q.Has("search") || q.Has("level") || q.Has("tags")
	return params, adhoc
}

// parseLines reads the lines parameter, capped at MaxLogLines to prevent DoS.
// Missing or invalid values give def.
func parseLines(r *http.Request, def int) int {
	linesStr := r.URL.Query().Get("lines")
	if linesStr == "" {
		return def
	}
	l, err := strconv.Atoi(linesStr)
	if err != nil || l <= 0 {
		return def
	}
	if l > constants.MaxLogLines {
		return constants.MaxLogLines
	}
	return l
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "err", err)
	}
}

// writeError writes an error response with a status from the error taxonomy
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := domain.ErrorCode(err)
	message := "an internal error occurred"

	switch {
	case errors.Is(err, domain.ErrPrecondition):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrWatchRegistration):
		status = http.StatusBadGateway
		message = err.Error()
	case errors.Is(err, domain.ErrFormat):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	default:
		// For unknown errors, log the actual error but return a sanitized message
		// to avoid leaking internal paths or sensitive information
		h.logger.Error("internal error", "err", err)
	}

	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
