// Package api assembles the API module with all lifecycle systems and route registration.
package api

import (
	"net/http"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/config"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/identity"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/infrastructure"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/middleware"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// Every API route requires a verified bearer identity.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain, err := NewDomain(cfg, runtime)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.Correlate())
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(identity.Middleware(runtime.Verifier, runtime.Logger))

	return m, nil
}
