package processor

import (
	"context"
	"io"

	"github.com/procdoc/sop-flow/internal/session"
)

// Processor runs pipeline stages against a session. Each stage validates
// the session state, caches its artifact on success and records a
// StageError on failure so that exactly that stage can be retried.
type Processor interface {
	Ingest(ctx context.Context, s *session.Session, videoName string, src io.Reader) error
	ExtractAudio(s *session.Session) error
	Transcribe(s *session.Session) error
	AnalyzeMoments(s *session.Session) error
	ExtractFrames(s *session.Session) error
	GenerateDocument(s *session.Session) error
	BuildDocument(s *session.Session) error
	UploadToDrive(s *session.Session) error

	// Process runs the whole pipeline unattended (drop-folder mode),
	// auto-confirming the analyzer's proposed moments.
	Process(ctx context.Context, videoPath string) error

	// SetNotifier registers a callback invoked after every state change,
	// used for the websocket progress feed.
	SetNotifier(func(session.Snapshot))
}
