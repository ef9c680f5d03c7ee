package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/procdoc/sop-flow/internal/config"
	"github.com/procdoc/sop-flow/internal/drive"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/processor"
	"github.com/procdoc/sop-flow/internal/session"
)

type handlers struct {
	cfg       *config.Config
	processor processor.Processor
	store     *session.Store
	uploader  drive.Uploader
	hub       *Hub
	logger    logger.Logger
}

type implServer struct {
	httpServer *http.Server
	logger     logger.Logger
}

// New builds the HTTP surface and wires the processor's progress
// notifications into the websocket hub.
func New(
	cfg *config.Config,
	proc processor.Processor,
	store *session.Store,
	uploader drive.Uploader,
	log logger.Logger,
) Server {
	hub := NewHub(log)
	proc.SetNotifier(hub.Broadcast)

	h := &handlers{
		cfg:       cfg,
		processor: proc,
		store:     store,
		uploader:  uploader,
		hub:       hub,
		logger:    log,
	}

	return &implServer{
		httpServer: &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: newRouter(cfg, h),
		},
		logger: log,
	}
}

func (s *implServer) Run() error {
	s.logger.Info(context.Background(), "HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *implServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
