package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bnema/mediaq/internal/domain"
	"github.com/bnema/mediaq/internal/infrastructure/logger"
)

// TaskService is the queue surface the ingress needs.
type TaskService interface {
	Submit(r io.ReadSeeker, payload domain.CreatePayload) (*domain.Task, error)
	Get(id string) (*domain.Task, error)
}

type Handlers struct {
	taskSvc   TaskService
	layout    domain.Layout
	maxSizeMB int
}

func NewHandlers(taskSvc TaskService, layout domain.Layout, maxSizeMB int) *Handlers {
	return &Handlers{
		taskSvc:   taskSvc,
		layout:    layout,
		maxSizeMB: maxSizeMB,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Upload accepts a multipart submission, classifies it and enqueues a task.
// The response is the QUEUED task record; processing happens asynchronously.
func (h *Handlers) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := int64(h.maxSizeMB) * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close() //nolint:errcheck

		payload := domain.CreatePayload{
			Caption: strings.TrimSpace(r.FormValue("caption")),
		}
		if v := r.FormValue("post_id"); v != "" {
			postID, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid post_id")
				return
			}
			payload.PostID = postID
		}

		task, err := h.taskSvc.Submit(file, payload)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrUnrecognizedType):
				writeError(w, http.StatusBadRequest, "unrecognized file type")
			case errors.Is(err, domain.ErrUnsupportedType):
				writeError(w, http.StatusUnsupportedMediaType, "unsupported file type")
			default:
				log.Error().
					Err(err).
					Str("filename", logger.SanitizeForLog(header.Filename)).
					Msg("upload submission failed")
				writeError(w, http.StatusInternalServerError, "failed to accept upload")
			}
			return
		}

		writeJSON(w, http.StatusAccepted, task)
	}
}

// TaskStatus returns the current record for one task.
func (h *Handlers) TaskStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing task id")
			return
		}

		task, err := h.taskSvc.Get(id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "task not found")
				return
			}
			log.Error().Err(err).Str("task_id", logger.SanitizeForLog(id)).Msg("task lookup failed")
			writeError(w, http.StatusInternalServerError, "task lookup failed")
			return
		}

		writeJSON(w, http.StatusOK, task)
	}
}

// Files serves placed renditions from the permanent category directories.
// The queue directory is never exposed.
func (h *Handlers) Files() http.HandlerFunc {
	dirs := map[string]string{
		string(domain.CategoryOriginal):   h.layout.OriginalDir(),
		string(domain.CategoryCompressed): h.layout.CompressedDir(),
		string(domain.CategoryThumbnail):  h.layout.ThumbnailDir(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		dir, ok := dirs[r.PathValue("category")]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown category")
			return
		}

		name := r.PathValue("name")
		if name == "" || name != sanitizeFilename(name) {
			writeError(w, http.StatusBadRequest, "invalid file name")
			return
		}

		http.ServeFile(w, r, filepath.Join(dir, name))
	}
}

// sanitizeFilename rejects anything that could escape the category directory.
func sanitizeFilename(name string) string {
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return ""
	}
	return name
}
