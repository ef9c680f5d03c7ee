package session

import "fmt"

// State is the pipeline position of a session. Transitions only move
// forward; a stage failure records a StageError without discarding the
// artifacts of completed stages, so the failed stage can be retried alone.
type State string

const (
	StateIdle              State = "idle"
	StateUploaded          State = "uploaded"
	StateAudioExtracted    State = "audio_extracted"
	StateTranscribed       State = "transcribed"
	StateMomentsProposed   State = "moments_proposed"
	StateMomentsConfirmed  State = "moments_confirmed"
	StateFramesExtracted   State = "frames_extracted"
	StateDocumentGenerated State = "document_generated"
	StateExported          State = "exported"
)

// Stage names the pipeline step that produced an error.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StageAudio      Stage = "audio_extraction"
	StageTranscribe Stage = "transcription"
	StageAnalyze    Stage = "moment_analysis"
	StageFrames     Stage = "frame_extraction"
	StageGenerate   Stage = "document_generation"
	StageBuild      Stage = "document_build"
	StageUpload     Stage = "drive_upload"
)

// StageError pairs a failed stage with its cause.
type StageError struct {
	Stage Stage
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// required maps each stage to the minimum state it may run from.
// A stage can also re-run from any later state (retry without redoing
// upstream work).
var required = map[Stage]State{
	StageAudio:      StateUploaded,
	StageTranscribe: StateAudioExtracted,
	StageAnalyze:    StateTranscribed,
	StageFrames:     StateMomentsConfirmed,
	StageGenerate:   StateFramesExtracted,
	StageBuild:      StateDocumentGenerated,
	StageUpload:     StateExported,
}

var order = map[State]int{
	StateIdle:              0,
	StateUploaded:          1,
	StateAudioExtracted:    2,
	StateTranscribed:       3,
	StateMomentsProposed:   4,
	StateMomentsConfirmed:  5,
	StateFramesExtracted:   6,
	StateDocumentGenerated: 7,
	StateExported:          8,
}

// CanRun reports whether a stage may execute from the given state.
func CanRun(stage Stage, from State) bool {
	min, ok := required[stage]
	if !ok {
		return false
	}
	return order[from] >= order[min]
}

// advance moves forward only; retrying a stage from a later state keeps
// the later state's artifacts intact.
func advance(current, next State) State {
	if order[next] > order[current] {
		return next
	}
	return current
}
