package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/audit"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/handlers"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/routes"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/storage"
)

// archiveHandler downloads audit archives previously written to blob storage.
type archiveHandler struct {
	store  storage.System
	gate   *permissions.Gate
	logger *slog.Logger
}

func newArchiveHandler(
	store storage.System,
	gate *permissions.Gate,
	logger *slog.Logger,
) *archiveHandler {
	return &archiveHandler{
		store:  store,
		gate:   gate,
		logger: logger.With("handler", "archives"),
	}
}

func (h *archiveHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/audit/archives",
		Middleware: []func(http.Handler) http.Handler{
			identity.Require(h.gate, permissions.AuditExport, h.logger),
		},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{key...}", Handler: h.download},
		},
	}
}

// download streams the archive at audit/exports/{key}.
func (h *archiveHandler) download(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.PathValue("key"), audit.ArchivePrefix)

	format, err := audit.ParseFormat(strings.TrimPrefix(path.Ext(key), "."))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	body, err := h.store.Download(r.Context(), audit.ArchivePrefix+key)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}
