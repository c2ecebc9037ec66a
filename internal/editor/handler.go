package editor

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/internal/sessions"
	"github.com/scrivenerhq/scrivener/pkg/handlers"
	"github.com/scrivenerhq/scrivener/pkg/routes"
)

// Handler provides HTTP endpoints for editor integration.
type Handler struct {
	sys           sessions.System
	logger        *slog.Logger
	basePath      string
	maxUploadSize int64
}

// NewHandler creates a Handler bound to the session system. basePath is the
// mounted API prefix used when composing document references.
func NewHandler(
	sys sessions.System,
	logger *slog.Logger,
	basePath string,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "editor"),
		basePath:      basePath,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for editor endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/editor", Handler: h.Config},
			{Method: "POST", Pattern: "/{id}/editor/save", Handler: h.Save},
		},
	}
}

// Config returns the editor load configuration for the session's current revision.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, sessions.ErrInvalidFile)
		return
	}

	sess, err := h.sys.Get(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, sessions.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, BuildConfig(sess, h.basePath))
}

// Save accepts the edited document from the editor client, either as a
// multipart "file" field or as a raw request body, and commits it as a new
// session revision.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, sessions.ErrInvalidFile)
		return
	}

	data, err := h.readPayload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, sessions.ErrFileTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, sessions.ErrInvalidFile)
		return
	}

	if len(data) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, sessions.ErrInvalidFile)
		return
	}

	sess, err := h.sys.SaveEdited(r.Context(), id, data)
	if err != nil {
		handlers.RespondError(w, h.logger, sessions.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) readPayload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			return nil, err
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()

		return io.ReadAll(file)
	}

	return io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxUploadSize))
}
