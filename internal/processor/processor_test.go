package processor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/procdoc/sop-flow/internal/analyzer"
	"github.com/procdoc/sop-flow/internal/config"
	"github.com/procdoc/sop-flow/internal/generator"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/media"
	"github.com/procdoc/sop-flow/internal/session"
	"github.com/procdoc/sop-flow/internal/sop"
)

type fakeMedia struct {
	probeErr  error
	frameErrs map[int]error // moment index -> error
}

func (f *fakeMedia) Probe(ctx context.Context, videoPath string) (media.ProbeResult, error) {
	if f.probeErr != nil {
		return media.ProbeResult{}, f.probeErr
	}
	return media.ProbeResult{Duration: 120, HasAudio: true}, nil
}

func (f *fakeMedia) ExtractAudio(ctx context.Context, videoPath, destDir string) (string, error) {
	return destDir + "/audio.wav", nil
}

func (f *fakeMedia) ExtractFrames(ctx context.Context, videoPath string, duration float64, moments []sop.Moment, destDir string) []media.FrameResult {
	results := make([]media.FrameResult, len(moments))
	for i, m := range moments {
		if err, ok := f.frameErrs[i]; ok {
			results[i] = media.FrameResult{Err: err}
			continue
		}
		approximate := m.Timestamp > duration
		results[i] = media.FrameResult{Frame: sop.Frame{
			MomentIndex: i, Path: destDir + "/frame.jpg", Width: 2, Height: 2, Approximate: approximate,
		}}
	}
	return results
}

type fakeTranscriber struct {
	segments []sop.TranscriptSegment
	err      error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, language string) ([]sop.TranscriptSegment, error) {
	return f.segments, f.err
}

type fakeAnalyzer struct {
	moments []sop.Moment
	err     error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, segments []sop.TranscriptSegment, duration float64) ([]sop.Moment, error) {
	return f.moments, f.err
}

type fakeGenerator struct {
	doc *sop.Document
	err error
}

func (f *fakeGenerator) Generate(ctx context.Context, segments []sop.TranscriptSegment, moments []sop.Moment, frames []sop.Frame) (*sop.Document, error) {
	return f.doc, f.err
}

type fakeBuilder struct {
	err error
}

func (f *fakeBuilder) Build(ctx context.Context, doc *sop.Document, frames []sop.Frame, outputPath string) error {
	return f.err
}

type fakeUploader struct {
	link string
	err  error
}

func (f *fakeUploader) Enabled() bool                                   { return true }
func (f *fakeUploader) AuthURL(state string) string                     { return "" }
func (f *fakeUploader) Exchange(ctx context.Context, code string) error { return nil }
func (f *fakeUploader) Authorized() bool                                { return f.err == nil }
func (f *fakeUploader) Upload(ctx context.Context, filePath, name string) (string, error) {
	return f.link, f.err
}

type fixture struct {
	proc  Processor
	store *session.Store
}

func newFixture(t *testing.T, med *fakeMedia, tr *fakeTranscriber, an *fakeAnalyzer, gen *fakeGenerator, b *fakeBuilder) fixture {
	t.Helper()

	cfg := &config.Config{AI: config.AIConfig{Gemini: config.GeminiConfig{APIKeys: []string{"k"}}}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	log := logger.New("error")
	store, err := session.NewStore(t.TempDir(), time.Hour, log)
	if err != nil {
		t.Fatal(err)
	}

	proc := New(cfg, med, tr, an, gen, b, &fakeUploader{link: "https://drive/doc"}, store, log)
	return fixture{proc: proc, store: store}
}

func defaultFakes() (*fakeMedia, *fakeTranscriber, *fakeAnalyzer, *fakeGenerator, *fakeBuilder) {
	segments := []sop.TranscriptSegment{{Start: 0, End: 5, Text: "open the portal"}}
	moments := []sop.Moment{
		{Timestamp: 5, Description: "Open the portal"},
		{Timestamp: 42, Description: "Enter the amount"},
		{Timestamp: 90, Description: "Submit"},
	}
	doc := &sop.Document{Sections: []sop.DocumentSection{
		{Kind: sop.SectionTitle, Text: "T"},
		{Kind: sop.SectionStep, Text: "Open the portal", StepNumber: 1, FrameIndex: 0},
		{Kind: sop.SectionStep, Text: "Enter the amount", StepNumber: 2, FrameIndex: 1},
		{Kind: sop.SectionStep, Text: "Submit", StepNumber: 3, FrameIndex: 2},
	}}
	return &fakeMedia{}, &fakeTranscriber{segments: segments}, &fakeAnalyzer{moments: moments}, &fakeGenerator{doc: doc}, &fakeBuilder{}
}

func ingest(t *testing.T, f fixture) *session.Session {
	t.Helper()
	ctx := context.Background()
	s, err := f.store.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.proc.Ingest(ctx, s, "demo.mp4", strings.NewReader("video-bytes")); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	return s
}

func TestPipelineHappyPath(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	f := newFixture(t, med, tr, an, gen, b)
	s := ingest(t, f)

	if err := f.proc.ExtractAudio(s); err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}
	if err := f.proc.Transcribe(s); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if err := f.proc.AnalyzeMoments(s); err != nil {
		t.Fatalf("AnalyzeMoments() error = %v", err)
	}
	if got := len(s.Moments()); got != 3 {
		t.Fatalf("got %d proposed moments, want 3", got)
	}
	if !s.ConfirmMoments() {
		t.Fatal("ConfirmMoments() = false")
	}
	if err := f.proc.ExtractFrames(s); err != nil {
		t.Fatalf("ExtractFrames() error = %v", err)
	}
	if got := len(s.Frames()); got != 3 {
		t.Fatalf("got %d frames, want 3", got)
	}
	if err := f.proc.GenerateDocument(s); err != nil {
		t.Fatalf("GenerateDocument() error = %v", err)
	}
	if got := len(s.Document().Steps()); got != 3 {
		t.Fatalf("got %d steps, want 3", got)
	}
	if err := f.proc.BuildDocument(s); err != nil {
		t.Fatalf("BuildDocument() error = %v", err)
	}
	if s.State() != session.StateExported {
		t.Errorf("final state = %v, want exported", s.State())
	}
	if err := f.proc.UploadToDrive(s); err != nil {
		t.Fatalf("UploadToDrive() error = %v", err)
	}
	if s.Snapshot().DriveLink == "" {
		t.Error("drive link not recorded")
	}
}

func TestStageGuardRejectsOutOfOrder(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	f := newFixture(t, med, tr, an, gen, b)
	s, _ := f.store.Create(context.Background())

	if err := f.proc.Transcribe(s); err == nil {
		t.Error("Transcribe() on idle session should fail")
	}
	if err := f.proc.ExtractFrames(s); err == nil {
		t.Error("ExtractFrames() on idle session should fail")
	}
}

func TestIngestRejectsUnsupportedExtension(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	f := newFixture(t, med, tr, an, gen, b)
	s, _ := f.store.Create(context.Background())

	err := f.proc.Ingest(context.Background(), s, "demo.wmv", strings.NewReader("x"))
	var ufe *media.UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("Ingest() error = %v, want UnsupportedFormatError", err)
	}
	if s.State() != session.StateIdle {
		t.Errorf("state after rejected upload = %v, want idle", s.State())
	}
}

func TestTranscribeFailureIsRetryable(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	tr.err = errors.New("rate limited")
	f := newFixture(t, med, tr, an, gen, b)

	s := ingest(t, f)
	if err := f.proc.ExtractAudio(s); err != nil {
		t.Fatal(err)
	}

	if err := f.proc.Transcribe(s); err == nil {
		t.Fatal("Transcribe() expected error")
	}
	snap := s.Snapshot()
	if snap.ErrorStage != session.StageTranscribe {
		t.Errorf("ErrorStage = %v, want transcription", snap.ErrorStage)
	}
	if snap.State != session.StateAudioExtracted {
		t.Errorf("state = %v, want audio_extracted (upstream artifact kept)", snap.State)
	}

	// Retry just this stage without redoing audio extraction.
	tr.err = nil
	if err := f.proc.Transcribe(s); err != nil {
		t.Fatalf("retry Transcribe() error = %v", err)
	}
	if s.State() != session.StateTranscribed {
		t.Errorf("state after retry = %v, want transcribed", s.State())
	}
}

func TestAnalyzeParseErrorDegradesGracefully(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	an.err = &analyzer.MomentParseError{Err: errors.New("not json")}
	f := newFixture(t, med, tr, an, gen, b)

	s := ingest(t, f)
	if err := f.proc.ExtractAudio(s); err != nil {
		t.Fatal(err)
	}
	if err := f.proc.Transcribe(s); err != nil {
		t.Fatal(err)
	}

	if err := f.proc.AnalyzeMoments(s); err != nil {
		t.Fatalf("AnalyzeMoments() error = %v, want graceful degradation", err)
	}

	snap := s.Snapshot()
	if snap.State != session.StateMomentsProposed {
		t.Errorf("state = %v, want moments_proposed", snap.State)
	}
	if len(snap.Moments) != 0 {
		t.Errorf("moments = %v, want empty", snap.Moments)
	}
	if len(snap.Warnings) == 0 {
		t.Error("expected a warning about the unparsable response")
	}
}

func TestExtractFramesPartialFailure(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	med.frameErrs = map[int]error{1: &media.FrameExtractionError{MomentIndex: 1, Timestamp: 42, Err: errors.New("decode failed")}}
	f := newFixture(t, med, tr, an, gen, b)

	s := ingest(t, f)
	for _, stage := range []func(*session.Session) error{f.proc.ExtractAudio, f.proc.Transcribe, f.proc.AnalyzeMoments} {
		if err := stage(s); err != nil {
			t.Fatal(err)
		}
	}
	s.ConfirmMoments()

	if err := f.proc.ExtractFrames(s); err != nil {
		t.Fatalf("ExtractFrames() error = %v, want partial success", err)
	}

	snap := s.Snapshot()
	if len(snap.Frames) != 2 {
		t.Errorf("got %d frames, want 2", len(snap.Frames))
	}
	if len(snap.Warnings) == 0 {
		t.Error("expected per-moment warning for the failed extraction")
	}
}

func TestExtractFramesClampsOutOfRangeMoment(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	an.moments = []sop.Moment{
		{Timestamp: 5, Description: "a"},
		{Timestamp: 500, Description: "past the end"},
		{Timestamp: 90, Description: "c"},
	}
	f := newFixture(t, med, tr, an, gen, b)

	s := ingest(t, f)
	for _, stage := range []func(*session.Session) error{f.proc.ExtractAudio, f.proc.Transcribe, f.proc.AnalyzeMoments} {
		if err := stage(s); err != nil {
			t.Fatal(err)
		}
	}
	s.ConfirmMoments()

	if err := f.proc.ExtractFrames(s); err != nil {
		t.Fatalf("ExtractFrames() error = %v", err)
	}

	frames := s.Frames()
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	approx := 0
	for _, fr := range frames {
		if fr.Approximate {
			approx++
		}
	}
	if approx != 1 {
		t.Errorf("got %d approximate frames, want 1", approx)
	}
}

func TestGenerateFallsBackToSkeleton(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	gen.err = &generator.GenerationError{Err: errors.New("not json")}
	f := newFixture(t, med, tr, an, gen, b)

	s := ingest(t, f)
	for _, stage := range []func(*session.Session) error{f.proc.ExtractAudio, f.proc.Transcribe, f.proc.AnalyzeMoments} {
		if err := stage(s); err != nil {
			t.Fatal(err)
		}
	}
	s.ConfirmMoments()
	if err := f.proc.ExtractFrames(s); err != nil {
		t.Fatal(err)
	}

	if err := f.proc.GenerateDocument(s); err != nil {
		t.Fatalf("GenerateDocument() error = %v, want skeleton fallback", err)
	}

	snap := s.Snapshot()
	if !snap.Degraded {
		t.Error("document not marked degraded")
	}
	if got := len(snap.Document.Steps()); got != 3 {
		t.Errorf("skeleton has %d steps, want 3 (captured data preserved)", got)
	}
}

func TestNotifierSeesTransitions(t *testing.T) {
	med, tr, an, gen, b := defaultFakes()
	f := newFixture(t, med, tr, an, gen, b)

	var states []session.State
	f.proc.SetNotifier(func(snap session.Snapshot) {
		states = append(states, snap.State)
	})

	s := ingest(t, f)
	if err := f.proc.ExtractAudio(s); err != nil {
		t.Fatal(err)
	}

	if len(states) != 2 || states[0] != session.StateUploaded || states[1] != session.StateAudioExtracted {
		t.Errorf("notified states = %v", states)
	}
}
