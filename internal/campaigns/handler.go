package campaigns

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/handlers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/outcome"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/routes"
)

// Handler provides HTTP endpoints for campaigns. Responses use the outcome
// envelope.
type Handler struct {
	sys        System
	gate       *permissions.Gate
	logger     *slog.Logger
	pagination pagination.Config
	maxBody    int64
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
		logger:     logger.With("handler", "campaigns"),
		pagination: pagination,
		maxBody:    maxBody,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/campaigns",
		Children: []routes.Group{
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.CampaignsRead, h.logger),
				},
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
				},
			},
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.CampaignsStart, h.logger),
				},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Start},
				},
			},
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.CampaignsCancel, h.logger),
				},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "/{id}/cancel", Handler: h.Cancel},
				},
			},
		},
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("campaign request failed", "status", status, "error", err)
	} else {
		h.logger.Warn("campaign request rejected", "status", status, "error", err)
	}
	handlers.RespondJSON(w, status, outcome.Fail[Campaign](err))
}

func (h *Handler) campaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.fail(w, outcome.Wrap(outcome.Validation, "invalid campaign id", err))
		return uuid.Nil, false
	}
	return id, true
}

// Start launches a campaign. A real run answers 202 while it proceeds in the
// background; a dry run answers 200 with its finished preview.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var cmd StartCommand
	if err := handlers.DecodeJSON(w, r, &cmd, h.maxBody); err != nil {
		h.fail(w, outcome.Wrap(outcome.Validation, "invalid request body", err))
		return
	}

	actor, _ := identity.FromContext(r.Context())
	c, err := h.sys.Start(r.Context(), actor, cmd)
	if err != nil {
		h.fail(w, err)
		return
	}

	status := http.StatusAccepted
	if c.DryRun {
		status = http.StatusOK
	}
	handlers.RespondJSON(w, status, outcome.OK(*c))
}

// List returns a page of campaigns, optionally filtered by status and creator.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	page := pagination.PageRequestFromQuery(values, h.pagination)

	var filters Filters
	if raw := values.Get("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			h.fail(w, outcome.New(outcome.Validation, "unknown campaign status "+raw))
			return
		}
		filters.Status = &status
	}
	if by := values.Get("created_by"); by != "" {
		filters.CreatedBy = &by
	}

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, outcome.OK(*result))
}

// Find returns the current state of a campaign.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}
	c, err := h.sys.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, outcome.OK(*c))
}

// Cancel asks a campaign to stop after its current batch.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}
	actor, _ := identity.FromContext(r.Context())

	c, err := h.sys.Cancel(r.Context(), actor, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, outcome.OK(*c))
}
