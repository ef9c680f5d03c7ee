package media

import (
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/pkg/executor"
)

type implMedia struct {
	executor      executor.Executor
	logger        logger.Logger
	maxConcurrent int
}

// New creates a Media instance. maxConcurrent caps the frame-extraction
// fan-out; values below 1 fall back to sequential extraction.
func New(exec executor.Executor, log logger.Logger, maxConcurrent int) Media {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &implMedia{
		executor:      exec,
		logger:        log,
		maxConcurrent: maxConcurrent,
	}
}
