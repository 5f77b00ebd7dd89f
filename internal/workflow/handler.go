package workflow

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

// Handler exposes transitions under /products/{id}/transitions.
type Handler struct {
	exec    *Executor
	gate    *permissions.Gate
	logger  *slog.Logger
	maxBody int64
}

func NewHandler(exec *Executor, gate *permissions.Gate, logger *slog.Logger, maxBody int64) *Handler {
	return &Handler{
		exec:    exec,
		gate:    gate,
		logger:  logger.With("handler", "workflow"),
		maxBody: maxBody,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/products/{id}/transitions",
		Children: []routes.Group{
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.RecordsRead, h.logger),
				},
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.Options},
				},
			},
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.RecordsTransition, h.logger),
				},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Transition},
					{Method: "POST", Pattern: "/validate", Handler: h.Validate},
				},
			},
		},
	}
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) (Request, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid record id"))
		return Request{}, false
	}

	var req Request
	if err := handlers.DecodeJSON(w, r, &req, h.maxBody); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return Request{}, false
	}
	req.RecordID = id
	req.Actor, _ = identity.FromContext(r.Context())
	return req, true
}

// Transition executes one transition. The body is the Result, with the status
// derived from its first error.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	res := h.exec.Execute(r.Context(), req)
	status := outcome.StatusFor(res.Kind())
	if !res.Success {
		h.logger.Warn("transition rejected", "id", req.RecordID, "to", req.To, "status", status, "error", res.Error)
	}
	handlers.RespondJSON(w, status, res)
}

// Validate checks a transition without executing it.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}

	v, err := h.exec.Check(r.Context(), req)
	if err != nil {
		handlers.RespondJSON(w, outcome.HTTPStatus(err), outcome.Fail[Validation](err))
		return
	}
	handlers.RespondJSON(w, http.StatusOK, outcome.OK(v))
}

// Options lists next and previous states for the caller's role, or for the role
// query parameter when given.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid record id"))
		return
	}

	actor, _ := identity.FromContext(r.Context())
	role := actor.Role()
	if q := r.URL.Query().Get("role"); q != "" {
		role = permissions.Role(q)
	}

	opts, err := h.exec.Options(r.Context(), id, role)
	if err != nil {
		handlers.RespondError(w, h.logger, outcome.HTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, opts)
}
