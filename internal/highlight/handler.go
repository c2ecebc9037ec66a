package highlight

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/scrivenerhq/scrivener/pkg/handlers"
	"github.com/scrivenerhq/scrivener/pkg/routes"
)

var errInvalidCommand = errors.New("invalid highlight command")

// Handler provides HTTP endpoints for issuing and polling highlight commands.
type Handler struct {
	relay  *Relay
	logger *slog.Logger
}

// IssueRequest carries the text to highlight and an optional severity tag.
type IssueRequest struct {
	Text     string `json:"text"`
	Severity string `json:"severity,omitempty"`
}

// PollResponse reports the relay state and the command to act on, if any.
type PollResponse struct {
	State   string   `json:"state"`
	Command *Command `json:"command,omitempty"`
}

// NewHandler creates a Handler bound to the given relay.
func NewHandler(relay *Relay, logger *slog.Logger) *Handler {
	return &Handler{
		relay:  relay,
		logger: logger.With("handler", "highlight"),
	}
}

// Routes returns the route group definition for highlight endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/highlight",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Issue},
			{Method: "GET", Pattern: "/poll", Handler: h.Poll},
		},
	}
}

// Issue places a highlight command in the relay slot. Issuing is
// fire-and-forget: the response confirms the stamped command, not delivery.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidCommand)
		return
	}

	if req.Text == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidCommand)
		return
	}

	cmd := h.relay.Issue(req.Text, req.Severity)

	h.logger.Info("highlight issued", "timestamp", cmd.Timestamp)
	handlers.RespondJSON(w, http.StatusAccepted, cmd)
}

// Poll returns the pending command when its timestamp is newer than the
// caller's since cursor.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, errInvalidCommand)
			return
		}
		since = parsed
	}

	cmd, _ := h.relay.Poll(since)

	handlers.RespondJSON(w, http.StatusOK, PollResponse{
		State:   h.relay.State(),
		Command: cmd,
	})
}
