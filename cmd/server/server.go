package main

import (
	"time"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/config"
	"github.com/jenymoen/Pimify-Firebase-sub007/internal/infrastructure"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/formatting"
)

// Server ties the shared infrastructure, the mounted modules and the HTTP
// listener to one lifecycle.
type Server struct {
	infra *infrastructure.Infrastructure
	http  *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}
	router := buildRouter(infra)
	modules.Mount(router)

	infra.Logger.Info(
		"server initialized",
		"rules", len(infra.Rules),
		"campaign_store", cfg.Workflow.CampaignStore,
		"identity", cfg.Identity.Mode,
		"notifications", cfg.Notifications.Driver,
		"max_body", formatting.FormatBytes(cfg.API.MaxBodySizeBytes(), 0),
	)

	return &Server{
		infra: infra,
		http:  newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start registers every subsystem and begins serving. Readiness is reported on
// /readyz once the startup hooks finish.
func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}
	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		s.infra.Lifecycle.WaitForStartup()
		if pending := s.infra.Lifecycle.NotReady(); len(pending) > 0 {
			s.infra.Logger.Warn("startup finished with subsystems not ready", "pending", pending)
			return
		}
		s.infra.Logger.Info("all subsystems ready")
	}()
	return nil
}

// Shutdown cancels running campaigns between batches, drains notifications and
// stops the HTTP server within timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	if err := s.infra.Lifecycle.Shutdown(timeout); err != nil {
		return err
	}
	if n := s.infra.Notifications.Dropped(); n > 0 {
		s.infra.Logger.Warn("notifications dropped during run", "count", n)
	}
	return nil
}
