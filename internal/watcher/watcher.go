package watcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/media"
)

const (
	settlePollInterval = 500 * time.Millisecond
	settleTimeout      = 2 * time.Minute
)

type implWatcher struct {
	watchDir  string
	handler   Handler
	logger    logger.Logger
	watcher   *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// Start blocks until the context is cancelled, dispatching each new video to
// the handler. Screen recorders write files incrementally, so a file is only
// dispatched once its size has stopped changing.
func (w *implWatcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "Drop folder watcher started: %s", w.watchDir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Waiting for in-flight videos to finish...")
			w.wg.Wait()
			w.logger.Info(ctx, "Drop folder watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !media.SupportedExtension(event.Name) {
				w.logger.Debug(ctx, "Ignoring non-video file: %s", event.Name)
				continue
			}

			w.logger.Info(ctx, "New video detected: %s", event.Name)
			select {
			case w.semaphore <- struct{}{}:
				w.wg.Add(1)
				go func(videoPath string) {
					defer w.wg.Done()
					defer func() { <-w.semaphore }()

					if err := w.waitSettled(ctx, videoPath); err != nil {
						w.logger.Warn(ctx, "Skipping %s: %v", videoPath, err)
						return
					}
					if err := w.handler(ctx, videoPath); err != nil {
						w.logger.Error(ctx, "Failed to process %s: %v", videoPath, err)
					}
				}(event.Name)
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error(ctx, "Watcher error: %v", err)
		}
	}
}

func (w *implWatcher) Stop() error {
	return w.watcher.Close()
}

// waitSettled waits for the file size to hold steady across two consecutive
// polls, which is as close as fsnotify gets to "the recorder finished
// writing".
func (w *implWatcher) waitSettled(ctx context.Context, path string) error {
	deadline := time.Now().Add(settleTimeout)
	lastSize := int64(-1)

	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat dropped file: %w", err)
		}
		if info.Size() == lastSize && info.Size() > 0 {
			return nil
		}
		lastSize = info.Size()

		if time.Now().After(deadline) {
			return fmt.Errorf("file still growing after %s", settleTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}
}
