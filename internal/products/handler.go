package products

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/handlers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/routes"
)

// Handler provides HTTP endpoints for records.
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
		logger:     logger.With("handler", "products"),
		pagination: pagination,
		maxBody:    maxBody,
	}
}

// Routes returns the route group for record endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/products",
		Children: []routes.Group{
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.RecordsRead, h.logger),
				},
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
				},
			},
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.RecordsCreate, h.logger),
				},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Create},
				},
			},
		},
	}
}

// List returns a page of records filtered by query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single record by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid record id"))
		return
	}

	p, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, p)
}

// Create adds a new DRAFT record.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := handlers.DecodeJSON(w, r, &cmd, h.maxBody); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	p, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, p)
}
