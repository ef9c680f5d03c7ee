package processor

import (
	"github.com/procdoc/sop-flow/internal/analyzer"
	"github.com/procdoc/sop-flow/internal/config"
	"github.com/procdoc/sop-flow/internal/docbuilder"
	"github.com/procdoc/sop-flow/internal/drive"
	"github.com/procdoc/sop-flow/internal/generator"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/media"
	"github.com/procdoc/sop-flow/internal/session"
	"github.com/procdoc/sop-flow/internal/transcribe"
)

type implProcessor struct {
	cfg         *config.Config
	media       media.Media
	transcriber transcribe.Transcriber
	analyzer    analyzer.Analyzer
	generator   generator.Generator
	builder     docbuilder.Builder
	uploader    drive.Uploader
	store       *session.Store
	logger      logger.Logger
	notify      func(session.Snapshot)
}

// New creates a new Processor instance
func New(
	cfg *config.Config,
	med media.Media,
	tr transcribe.Transcriber,
	an analyzer.Analyzer,
	gen generator.Generator,
	builder docbuilder.Builder,
	uploader drive.Uploader,
	store *session.Store,
	log logger.Logger,
) Processor {
	return &implProcessor{
		cfg:         cfg,
		media:       med,
		transcriber: tr,
		analyzer:    an,
		generator:   gen,
		builder:     builder,
		uploader:    uploader,
		store:       store,
		logger:      log,
		notify:      func(session.Snapshot) {},
	}
}

func (p *implProcessor) SetNotifier(fn func(session.Snapshot)) {
	if fn != nil {
		p.notify = fn
	}
}
