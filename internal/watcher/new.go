package watcher

import (
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/procdoc/sop-flow/internal/logger"
)

// New creates a drop-folder watcher. Each detected video is run through the
// unattended pipeline, at most maxConcurrent at a time.
func New(watchDir string, handler Handler, log logger.Logger, maxConcurrent int) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fsw.Add(watchDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &implWatcher{
		watchDir:  watchDir,
		handler:   handler,
		logger:    log,
		watcher:   fsw,
		semaphore: make(chan struct{}, maxConcurrent),
	}, nil
}
