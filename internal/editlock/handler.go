package editlock

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/handlers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/routes"
)

// Handler exposes edit sessions under /products/{id}/session.
type Handler struct {
	guard  *Guard
	gate   *permissions.Gate
	logger *slog.Logger
}

// SessionStatus reports whether a record is being edited.
type SessionStatus struct {
	Editing bool     `json:"editing"`
	Session *Session `json:"session,omitempty"`
}

func NewHandler(guard *Guard, gate *permissions.Gate, logger *slog.Logger) *Handler {
	return &Handler{
		guard:  guard,
		gate:   gate,
		logger: logger.With("handler", "editlock"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/products/{id}/session",
		Children: []routes.Group{
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.RecordsRead, h.logger),
				},
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.Status},
				},
			},
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.RecordsEdit, h.logger),
				},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Begin},
					{Method: "DELETE", Pattern: "", Handler: h.End},
				},
			},
		},
	}
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid record id"))
		return uuid.Nil, false
	}
	return id, true
}

// Status reports the active session of the record.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := h.record(w, r)
	if !ok {
		return
	}
	s, editing := h.guard.Active(id)
	status := SessionStatus{Editing: editing}
	if editing {
		status.Session = &s
	}
	handlers.RespondJSON(w, http.StatusOK, status)
}

// Begin opens or refreshes the caller's session.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	id, ok := h.record(w, r)
	if !ok {
		return
	}
	actor, _ := identity.FromContext(r.Context())

	s, err := h.guard.Begin(id, actor)
	if err != nil {
		handlers.RespondError(w, h.logger, outcome.HTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, s)
}

// End closes the caller's session.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := h.record(w, r)
	if !ok {
		return
	}
	actor, _ := identity.FromContext(r.Context())

	if err := h.guard.End(id, actor.ActorID); err != nil {
		handlers.RespondError(w, h.logger, outcome.HTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
