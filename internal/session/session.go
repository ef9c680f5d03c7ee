package session

import (
	"context"
	"sync"
	"time"

	"github.com/procdoc/sop-flow/internal/sop"
)

// Session is one end-to-end pipeline run for one uploaded video. It owns a
// scoped directory for every temp artifact (video, audio, frames, docx) and
// is destroyed, directory included, on teardown or TTL expiry.
type Session struct {
	ID        string
	Dir       string
	CreatedAt time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	state      State
	videoName  string
	videoPath  string
	duration   float64
	audioPath  string
	transcript []sop.TranscriptSegment
	moments    []sop.Moment
	frames     []sop.Frame
	document   *sop.Document
	degraded   bool
	docPath    string
	driveLink  string
	lastErr    *StageError
	warnings   []string
}

// Snapshot is the externally visible session view.
type Snapshot struct {
	ID         string                  `json:"id"`
	State      State                   `json:"state"`
	VideoName  string                  `json:"video_name,omitempty"`
	Duration   float64                 `json:"duration,omitempty"`
	Transcript []sop.TranscriptSegment `json:"transcript,omitempty"`
	Moments    []sop.Moment            `json:"moments,omitempty"`
	Frames     []sop.Frame             `json:"frames,omitempty"`
	Document   *sop.Document           `json:"document,omitempty"`
	Degraded   bool                    `json:"degraded,omitempty"`
	DriveLink  string                  `json:"drive_link,omitempty"`
	Error      string                  `json:"error,omitempty"`
	ErrorStage Stage                   `json:"error_stage,omitempty"`
	Warnings   []string                `json:"warnings,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// Context returns the session-scoped context. Stage work derived from it is
// cancelled when the session is destroyed, so an abandoned session cannot
// leak results into a later one.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.ID,
		State:      s.state,
		VideoName:  s.videoName,
		Duration:   s.duration,
		Transcript: s.transcript,
		Moments:    s.moments,
		Frames:     s.frames,
		Document:   s.document,
		Degraded:   s.degraded,
		DriveLink:  s.driveLink,
		Warnings:   append([]string(nil), s.warnings...),
		CreatedAt:  s.CreatedAt,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Cause.Error()
		snap.ErrorStage = s.lastErr.Stage
	}
	return snap
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin checks the stage is runnable from the current state and clears a
// previous error for it. It returns the inputs the stage needs.
func (s *Session) Begin(stage Stage) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !CanRun(stage, s.state) {
		return false
	}
	s.lastErr = nil
	return true
}

// Fail records a stage failure. Completed artifacts are kept so the stage
// can be retried on its own.
func (s *Session) Fail(stage Stage, cause error) *StageError {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = &StageError{Stage: stage, Cause: cause}
	return s.lastErr
}

func (s *Session) Warn(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
}

func (s *Session) SetUploaded(videoName, videoPath string, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoName = videoName
	s.videoPath = videoPath
	s.duration = duration
	s.state = advance(s.state, StateUploaded)
}

func (s *Session) Video() (path string, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoPath, s.duration
}

func (s *Session) VideoName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoName
}

func (s *Session) SetAudio(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioPath = path
	s.state = advance(s.state, StateAudioExtracted)
}

func (s *Session) Audio() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioPath
}

func (s *Session) SetTranscript(segments []sop.TranscriptSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = segments
	s.state = advance(s.state, StateTranscribed)
}

func (s *Session) Transcript() []sop.TranscriptSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// ProposeMoments stores analyzer output. An empty list is valid: the
// analyzer degrades to it when the model response is unparsable, and the
// user can still add moments by hand.
func (s *Session) ProposeMoments(moments []sop.Moment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moments = moments
	s.state = advance(s.state, StateMomentsProposed)
}

// EditMoments replaces the moment list during review. Allowed until frames
// are extracted.
func (s *Session) EditMoments(moments []sop.Moment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order[s.state] < order[StateMomentsProposed] || order[s.state] > order[StateMomentsConfirmed] {
		return false
	}
	for i := range moments {
		moments[i].UserEdited = true
	}
	s.moments = moments
	return true
}

// ConfirmMoments freezes the list for extraction. Requires at least one
// moment.
func (s *Session) ConfirmMoments() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateMomentsProposed && s.state != StateMomentsConfirmed {
		return false
	}
	if len(s.moments) == 0 {
		return false
	}
	s.state = advance(s.state, StateMomentsConfirmed)
	return true
}

func (s *Session) Moments() []sop.Moment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moments
}

func (s *Session) SetFrames(frames []sop.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = frames
	s.state = advance(s.state, StateFramesExtracted)
}

func (s *Session) Frames() []sop.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Session) SetDocument(doc *sop.Document, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = doc
	s.degraded = degraded
	s.state = advance(s.state, StateDocumentGenerated)
}

func (s *Session) Document() *sop.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

func (s *Session) SetBuilt(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docPath = path
	s.state = advance(s.state, StateExported)
}

func (s *Session) BuiltPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docPath
}

func (s *Session) SetDriveLink(link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driveLink = link
}
