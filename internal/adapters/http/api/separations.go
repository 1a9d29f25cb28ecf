package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	service "github.com/okian/stemai/internal/app"
)

// uploadField is the multipart form field carrying the audio file.
const uploadField = "file"

// defaultMaxBody bounds POST /separations when no option is given.
const defaultMaxBody = 200<<20 + multipartOverhead

// SeparationsHandler handles upload and job lookup requests.
type SeparationsHandler struct {
	deps    Dependencies
	maxBody int64
}

// NewSeparationsHandler creates a new separations handler.
func NewSeparationsHandler(deps Dependencies) *SeparationsHandler {
	return &SeparationsHandler{deps: deps, maxBody: defaultMaxBody}
}

type listResponse struct {
	Jobs []jobResponse `json:"jobs"`
}

// HandleCreate handles POST /separations. The file part is streamed into
// the service without buffering the whole form.
func (h *SeparationsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_separation"

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form", WrapKind(op, ErrBadRequest, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeServiceError(w, op, err)
			return
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		res, err := h.deps.Submit(r.Context(), service.Upload{FileName: part.FileName(), Body: part})
		_ = part.Close()
		if err != nil {
			writeServiceError(w, op, err)
			return
		}

		resp := newJobResponse(&res.Job)
		resp.Duplicate = res.Duplicate
		status := http.StatusAccepted
		if res.Duplicate {
			status = http.StatusOK
		}
		w.Header().Set("Location", "/separations/"+res.Job.ID)
		writeJSON(w, status, resp)
		return
	}

	writeError(w, http.StatusBadRequest, "missing_file", WrapKind(op, ErrBadRequest, errors.New(`form field "file" is required`)))
}

// HandleList handles GET /separations?limit=N.
func (h *SeparationsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_separations"

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	jobs, err := h.deps.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	resp := listResponse{Jobs: make([]jobResponse, 0, len(jobs))}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, newJobResponse(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /separations/{id}.
func (h *SeparationsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_separation"

	job, err := h.deps.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(&job))
}
