package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/procdoc/sop-flow/internal/analyzer"
	"github.com/procdoc/sop-flow/internal/generator"
	"github.com/procdoc/sop-flow/internal/media"
	"github.com/procdoc/sop-flow/internal/session"
	"github.com/procdoc/sop-flow/internal/sop"
)

// stageCtx derives a bounded context from the session so that destroying
// the session cancels in-flight stage work.
func (p *implProcessor) stageCtx(s *session.Session) (context.Context, context.CancelFunc) {
	timeout := time.Duration(p.cfg.Performance.StageTimeoutSeconds) * time.Second
	return context.WithTimeout(s.Context(), timeout)
}

// Ingest persists the upload into the session directory and validates the
// container before anything else runs.
func (p *implProcessor) Ingest(ctx context.Context, s *session.Session, videoName string, src io.Reader) error {
	videoName = filepath.Base(videoName)
	if !media.SupportedExtension(videoName) {
		err := &media.UnsupportedFormatError{Path: videoName, Reason: "extension not supported"}
		return s.Fail(session.StageIngest, err)
	}

	videoPath := filepath.Join(s.Dir, "upload"+strings.ToLower(filepath.Ext(videoName)))
	dst, err := os.Create(videoPath)
	if err != nil {
		return s.Fail(session.StageIngest, fmt.Errorf("persist upload: %w", err))
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return s.Fail(session.StageIngest, fmt.Errorf("persist upload: %w", err))
	}
	if err := dst.Close(); err != nil {
		return s.Fail(session.StageIngest, fmt.Errorf("persist upload: %w", err))
	}

	probe, err := p.media.Probe(ctx, videoPath)
	if err != nil {
		return s.Fail(session.StageIngest, err)
	}

	s.SetUploaded(videoName, videoPath, probe.Duration)
	p.logger.Info(ctx, "Session %s: ingested %s (%.1fs)", s.ID, videoName, probe.Duration)
	p.notify(s.Snapshot())
	return nil
}

func (p *implProcessor) ExtractAudio(s *session.Session) error {
	if !s.Begin(session.StageAudio) {
		return fmt.Errorf("audio extraction not available in state %s", s.State())
	}
	ctx, cancel := p.stageCtx(s)
	defer cancel()

	videoPath, _ := s.Video()
	audioPath, err := p.media.ExtractAudio(ctx, videoPath, s.Dir)
	if err != nil {
		return s.Fail(session.StageAudio, err)
	}

	s.SetAudio(audioPath)
	p.notify(s.Snapshot())
	return nil
}

func (p *implProcessor) Transcribe(s *session.Session) error {
	if !s.Begin(session.StageTranscribe) {
		return fmt.Errorf("transcription not available in state %s", s.State())
	}
	ctx, cancel := p.stageCtx(s)
	defer cancel()

	segments, err := p.transcriber.Transcribe(ctx, s.Audio(), p.cfg.AI.Language)
	if err != nil {
		return s.Fail(session.StageTranscribe, err)
	}

	s.SetTranscript(segments)
	p.notify(s.Snapshot())
	return nil
}

// AnalyzeMoments proposes moments from the transcript. An unparsable model
// response is not fatal: the session moves to review with an empty list and
// a warning, and the user can add moments by hand.
func (p *implProcessor) AnalyzeMoments(s *session.Session) error {
	if !s.Begin(session.StageAnalyze) {
		return fmt.Errorf("moment analysis not available in state %s", s.State())
	}
	ctx, cancel := p.stageCtx(s)
	defer cancel()

	_, duration := s.Video()
	moments, err := p.analyzer.Analyze(ctx, s.Transcript(), duration)
	if err != nil {
		var parseErr *analyzer.MomentParseError
		if errors.As(err, &parseErr) {
			p.logger.Warn(ctx, "Session %s: moment analysis unparsable, continuing with empty list: %v", s.ID, err)
			s.Warn("The model's moment list could not be parsed; add moments manually or retry the analysis.")
			s.ProposeMoments(nil)
			p.notify(s.Snapshot())
			return nil
		}
		return s.Fail(session.StageAnalyze, err)
	}

	s.ProposeMoments(moments)
	p.notify(s.Snapshot())
	return nil
}

// ExtractFrames decodes one frame per confirmed moment. Individual failures
// become per-moment warnings; the stage only fails when no frame at all
// could be extracted.
func (p *implProcessor) ExtractFrames(s *session.Session) error {
	if !s.Begin(session.StageFrames) {
		return fmt.Errorf("frame extraction not available in state %s", s.State())
	}
	ctx, cancel := p.stageCtx(s)
	defer cancel()

	videoPath, duration := s.Video()
	results := p.media.ExtractFrames(ctx, videoPath, duration, s.Moments(), s.Dir)

	var frames []sop.Frame
	failures := 0
	for i, r := range results {
		if r.Err != nil {
			failures++
			s.Warn(fmt.Sprintf("No screenshot for step %d: %v", i+1, r.Err))
			continue
		}
		frames = append(frames, r.Frame)
	}

	if len(frames) == 0 && failures > 0 {
		return s.Fail(session.StageFrames, fmt.Errorf("all %d frame extractions failed", failures))
	}

	s.SetFrames(frames)
	p.notify(s.Snapshot())
	return nil
}

// GenerateDocument asks the model for SOP prose. A malformed response
// degrades to the skeleton document so the captured moments and
// screenshots survive.
func (p *implProcessor) GenerateDocument(s *session.Session) error {
	if !s.Begin(session.StageGenerate) {
		return fmt.Errorf("document generation not available in state %s", s.State())
	}
	ctx, cancel := p.stageCtx(s)
	defer cancel()

	doc, err := p.generator.Generate(ctx, s.Transcript(), s.Moments(), s.Frames())
	if err != nil {
		var genErr *generator.GenerationError
		if errors.As(err, &genErr) {
			p.logger.Warn(ctx, "Session %s: generation unparsable, falling back to skeleton: %v", s.ID, err)
			s.Warn("Narrative generation failed; a draft with your steps and screenshots was kept.")
			s.SetDocument(generator.Skeleton(s.Moments(), s.Frames()), true)
			p.notify(s.Snapshot())
			return nil
		}
		return s.Fail(session.StageGenerate, err)
	}

	s.SetDocument(doc, false)
	p.notify(s.Snapshot())
	return nil
}

func (p *implProcessor) BuildDocument(s *session.Session) error {
	if !s.Begin(session.StageBuild) {
		return fmt.Errorf("document build not available in state %s", s.State())
	}
	ctx, cancel := p.stageCtx(s)
	defer cancel()

	outputPath := filepath.Join(s.Dir, DocxName(s.VideoName()))
	if err := p.builder.Build(ctx, s.Document(), s.Frames(), outputPath); err != nil {
		return s.Fail(session.StageBuild, err)
	}

	s.SetBuilt(outputPath)
	p.notify(s.Snapshot())
	return nil
}

func (p *implProcessor) UploadToDrive(s *session.Session) error {
	if !s.Begin(session.StageUpload) {
		return fmt.Errorf("drive upload not available in state %s", s.State())
	}
	ctx, cancel := p.stageCtx(s)
	defer cancel()

	link, err := p.uploader.Upload(ctx, s.BuiltPath(), DocxName(s.VideoName()))
	if err != nil {
		return s.Fail(session.StageUpload, err)
	}

	s.SetDriveLink(link)
	p.notify(s.Snapshot())
	return nil
}

// Process orchestrates the entire pipeline for one video file, unattended.
// Used by the drop-folder watcher; the analyzer's proposed moments are
// confirmed as-is.
func (p *implProcessor) Process(ctx context.Context, videoPath string) error {
	startTime := time.Now()

	p.logger.Info(ctx, "========================================")
	p.logger.Info(ctx, "Starting video processing: %s", videoPath)
	p.logger.Info(ctx, "========================================")

	s, err := p.store.Create(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = p.store.Destroy(ctx, s.ID)
	}()

	src, err := os.Open(videoPath)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	err = p.Ingest(ctx, s, filepath.Base(videoPath), src)
	src.Close()
	if err != nil {
		return err
	}

	for _, stage := range []func(*session.Session) error{
		p.ExtractAudio,
		p.Transcribe,
		p.AnalyzeMoments,
	} {
		if err := stage(s); err != nil {
			return err
		}
	}

	if !s.ConfirmMoments() {
		return fmt.Errorf("no moments detected in %s", videoPath)
	}

	for _, stage := range []func(*session.Session) error{
		p.ExtractFrames,
		p.GenerateDocument,
		p.BuildDocument,
	} {
		if err := stage(s); err != nil {
			return err
		}
	}

	// The session dir is destroyed on return; move the finished document
	// out first, next to the source video.
	finalPath := filepath.Join(filepath.Dir(videoPath), DocxName(filepath.Base(videoPath)))
	if err := os.Rename(s.BuiltPath(), finalPath); err != nil {
		// Rename fails across filesystems; fall back to a copy.
		if err := copyFile(s.BuiltPath(), finalPath); err != nil {
			return s.Fail(session.StageBuild, fmt.Errorf("move document: %w", err))
		}
	}

	p.logger.Info(ctx, "========================================")
	p.logger.Info(ctx, "Processing completed successfully!")
	p.logger.Info(ctx, "Output document: %s", finalPath)
	p.logger.Info(ctx, "Processing time: %s", time.Since(startTime))
	p.logger.Info(ctx, "========================================")

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write destination: %w", err)
	}
	return nil
}

// DocxName derives the output document name from the uploaded video name.
func DocxName(videoName string) string {
	base := strings.TrimSuffix(videoName, filepath.Ext(videoName))
	if base == "" {
		base = "sop"
	}
	return base + "_sop.docx"
}
