package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/safer-strategy/data-transformation-tool/internal/adapters/repository"
	"github.com/safer-strategy/data-transformation-tool/internal/adapters/sink"
	"github.com/safer-strategy/data-transformation-tool/pkg/logger"
)

const (
	uploadField   = "file"
	maxRunsLimit  = 1000
	multipartMem  = 8 << 20
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// runResponse is the body of POST /runs.
type runResponse struct {
	Run       *repository.Run `json:"run"`
	Duplicate bool            `json:"duplicate"`
}

// RunsHandler handles upload, status and download requests.
type RunsHandler struct {
	deps     RunService
	maxBytes int64
	logger   logger.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps RunService, maxBytes int64, log logger.Logger) *RunsHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RunsHandler{deps: deps, maxBytes: maxBytes, logger: log}
}

// HandlePostRun handles POST /runs with a multipart "file" field.
// A new upload answers 202; content seen before answers 200 with the earlier run.
func (h *RunsHandler) HandlePostRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_run"
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(multipartMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, WrapKind(op, ErrTooLarge, err))
			return
		}
		h.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.fail(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("missing %q field: %w", uploadField, err)))
		return
	}
	defer func() { _ = file.Close() }()

	run, duplicate, err := h.deps.Submit(r.Context(), filepath.Base(header.Filename), file)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/runs/"+run.ID)
	writeJSON(w, status, runResponse{Run: run, Duplicate: duplicate})
}

// HandleListRuns handles GET /runs?limit=N. The limit is optional.
func (h *RunsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_runs"
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			h.fail(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("limit must be between 1 and %d", maxRunsLimit)))
			return
		}
		limit = n
	}
	runs, err := h.deps.Runs(r.Context(), limit)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	if runs == nil {
		runs = []*repository.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGetRun handles GET /runs/{id}.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run"
	run, err := h.deps.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleGetFile handles GET /runs/{id}/files/{kind}, kind being
// "converted" or "invalid".
func (h *RunsHandler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_run_file"
	kind := r.PathValue("kind")
	if kind != sink.KindConverted && kind != sink.KindInvalid {
		h.fail(w, r, WrapKind(op, ErrBadRequest, fmt.Errorf("unknown file kind %q", kind)))
		return
	}
	path, err := h.deps.File(r.Context(), r.PathValue("id"), kind)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (h *RunsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", logger.String("path", r.URL.Path), logger.Error(err))
	}
	writeError(w, status, code, err)
}
