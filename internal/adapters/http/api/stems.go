package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/okian/stemai/internal/adapters/audiofile"
)

// StemsHandler serves separated stem files for playback and download.
type StemsHandler struct {
	deps Dependencies
}

// NewStemsHandler creates a new stems handler.
func NewStemsHandler(deps Dependencies) *StemsHandler {
	return &StemsHandler{deps: deps}
}

// HandleStem handles GET /separations/{id}/stems/{label}. Range requests
// are honoured so browsers can seek; ?download=1 asks for an attachment.
func (h *StemsHandler) HandleStem(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stem"

	label := r.PathValue("label")
	path, err := h.deps.StemPath(r.Context(), r.PathValue("id"), label)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	name := audiofile.StemFileName(label)
	w.Header().Set("Content-Type", "audio/wav")
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}
