package main

import (
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/api"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/config"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/infrastructure"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/module"
)

// Modules holds the HTTP modules mounted on the top-level router.
type Modules struct {
	API *module.Module
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}
	return &Modules{API: apiModule}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()
	router.HandleProbes(infra.Lifecycle)
	return router
}
