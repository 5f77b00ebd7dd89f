package audit

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

const maxRequestBody = 64 << 10

// Handler provides HTTP endpoints for audit queries, exports and archives.
type Handler struct {
	sys        System
	gate       *permissions.Gate
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// ArchiveRequest selects the entries and format of an archive.
type ArchiveRequest struct {
	Filters
	Format string `json:"format"`
}

func NewHandler(
	sys System,
	gate *permissions.Gate,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		gate:       gate,
		logger:     logger.With("handler", "audit"),
		pagination: pagination,
	}
}

// Routes returns the route group for audit endpoints. Reads require audit.read,
// exports and archives audit.export.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/audit",
		Children: []routes.Group{
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.AuditRead, h.logger),
				},
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "POST", Pattern: "/search", Handler: h.Search},
					{Method: "GET", Pattern: "/aggregate", Handler: h.Aggregate},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
				},
			},
			{
				Middleware: []func(http.Handler) http.Handler{
					identity.Require(h.gate, permissions.AuditExport, h.logger),
				},
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/export", Handler: h.Export},
					{Method: "POST", Pattern: "/archives", Handler: h.Archive},
				},
			},
		},
	}
}

// List returns a page of entries selected by query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	h.search(w, r, page, filters)
}

// Search accepts a JSON body with pagination and filter criteria.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := handlers.DecodeJSON(w, r, &req, maxRequestBody); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	h.search(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, filters Filters) {
	result, err := h.sys.Search(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single entry by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid audit entry id"))
		return
	}

	entry, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, entry)
}

// Aggregate returns entry counts grouped by action, actor, priority and day.
func (h *Handler) Aggregate(w http.ResponseWriter, r *http.Request) {
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	agg, err := h.sys.Aggregate(r.Context(), filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, agg)
}

// Export streams matching entries as JSON or CSV selected by the format parameter.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="audit.`+string(format)+`"`)
	if _, err := h.sys.Export(r.Context(), w, filters, format); err != nil {
		h.logger.Error("export failed", "format", format, "error", err)
	}
}

// Archive writes matching entries to blob storage and returns the archive descriptor.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if err := handlers.DecodeJSON(w, r, &req, maxRequestBody); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	format, err := ParseFormat(req.Format)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	archive, err := h.sys.Archive(r.Context(), req.Filters, format)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, archive)
}
