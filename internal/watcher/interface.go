package watcher

import "context"

// Watcher monitors a drop folder and hands finished video files to a handler.
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
}

// Handler processes a single dropped video file.
type Handler func(ctx context.Context, videoPath string) error
