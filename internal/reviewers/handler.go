package reviewers

import (
	"log/slog"
	"net/http"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/handlers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/routes"
)

// Handler provides HTTP endpoints for the reviewer directory.
type Handler struct {
	sys        System
	gate       *permissions.Gate
	logger     *slog.Logger
	pagination pagination.Config
	maxBody    int64
}

type capacityRequest struct {
	MaxAssignments int `json:"max_assignments"`
}

type backupRequest struct {
	BackupReviewerID *string `json:"backup_reviewer_id"`
}

func NewHandler(
	sys System,
	gate *permissions.Gate,
	logger *slog.Logger,
	pagination pagination.Config,
	maxBody int64,
) *Handler {
	return &Handler{
		sys:        sys,
		gate:       gate,
		logger:     logger.With("handler", "reviewers"),
		pagination: pagination,
		maxBody:    maxBody,
	}
}

func (h *Handler) require(action permissions.Action) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{identity.Require(h.gate, action, h.logger)}
}

// Routes returns the route group for directory endpoints. Profile updates use the
// reviewers.manage action, which reviewers hold for their own profile.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/reviewers",
		Children: []routes.Group{
			{
				Middleware: h.require(permissions.ReviewersRead),
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
					{Method: "GET", Pattern: "/{id}/summary", Handler: h.Summary},
					{Method: "GET", Pattern: "/{id}/availability", Handler: h.GetAvailability},
				},
			},
			{
				Middleware: h.require(permissions.ReviewersManage),
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Register},
					{Method: "PUT", Pattern: "/{id}/availability", Handler: h.SetAvailability},
					{Method: "PUT", Pattern: "/{id}/capacity", Handler: h.SetCapacity},
					{Method: "PUT", Pattern: "/{id}/backup", Handler: h.SetBackup},
					{Method: "PUT", Pattern: "/{id}/delegation", Handler: h.SetDelegation},
					{Method: "DELETE", Pattern: "/{id}/delegation", Handler: h.ClearDelegation},
				},
			},
			{
				Middleware: h.require(permissions.ReviewersAssign),
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/assignments", Handler: h.Assign},
				},
			},
		},
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, status, data)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := handlers.DecodeJSON(w, r, dst, h.maxBody); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return false
	}
	return true
}

// List returns a page of reviewer profiles.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	result, err := h.sys.List(r.Context(), page, FiltersFromQuery(r.URL.Query()))
	h.respond(w, http.StatusOK, result, err)
}

// Find returns one reviewer profile.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	p, err := h.sys.Find(r.Context(), r.PathValue("id"))
	h.respond(w, http.StatusOK, p, err)
}

// Summary returns the workload and quality summary of one reviewer.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.sys.Summary(r.Context(), r.PathValue("id"))
	h.respond(w, http.StatusOK, s, err)
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	a, err := h.sys.GetAvailability(r.Context(), r.PathValue("id"))
	h.respond(w, http.StatusOK, a, err)
}

// Register adds a reviewer to the directory.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var cmd RegisterCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	p, err := h.sys.Register(r.Context(), cmd)
	h.respond(w, http.StatusCreated, p, err)
}

func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var cmd AvailabilityCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	p, err := h.sys.SetAvailability(r.Context(), r.PathValue("id"), cmd)
	h.respond(w, http.StatusOK, p, err)
}

func (h *Handler) SetCapacity(w http.ResponseWriter, r *http.Request) {
	var req capacityRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.sys.SetMaxAssignments(r.Context(), r.PathValue("id"), req.MaxAssignments)
	h.respond(w, http.StatusOK, p, err)
}

func (h *Handler) SetBackup(w http.ResponseWriter, r *http.Request) {
	var req backupRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.sys.SetBackupReviewer(r.Context(), r.PathValue("id"), req.BackupReviewerID)
	h.respond(w, http.StatusOK, p, err)
}

func (h *Handler) SetDelegation(w http.ResponseWriter, r *http.Request) {
	var d Delegation
	if !h.decode(w, r, &d) {
		return
	}
	p, err := h.sys.SetTemporaryDelegation(r.Context(), r.PathValue("id"), &d)
	h.respond(w, http.StatusOK, p, err)
}

func (h *Handler) ClearDelegation(w http.ResponseWriter, r *http.Request) {
	p, err := h.sys.SetTemporaryDelegation(r.Context(), r.PathValue("id"), nil)
	h.respond(w, http.StatusOK, p, err)
}

// Assign selects a reviewer for the request and records the assignment.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !h.decode(w, r, &req) {
		return
	}
	sel, err := h.sys.Assign(r.Context(), req)
	h.respond(w, http.StatusOK, sel, err)
}
