package api

import (
	"net/http"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/editlock"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/workflow"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	logger := runtime.Logger

	routes.Register(
		mux,
		domain.Products.Handler(runtime.Gate, runtime.MaxBody).Routes(),
		workflow.NewHandler(domain.Workflow, runtime.Gate, logger, runtime.MaxBody).Routes(),
		editlock.NewHandler(runtime.Guard, runtime.Gate, logger).Routes(),
		domain.Campaigns.Handler(runtime.MaxBody).Routes(),
		domain.Audit.Handler(runtime.Gate).Routes(),
		newArchiveHandler(runtime.Storage, runtime.Gate, logger).routes(),
		domain.Reviewers.Handler(runtime.Gate, runtime.MaxBody).Routes(),
	)
}
