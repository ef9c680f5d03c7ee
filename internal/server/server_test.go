package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/procdoc/sop-flow/internal/config"
	"github.com/procdoc/sop-flow/internal/logger"
	"github.com/procdoc/sop-flow/internal/media"
	"github.com/procdoc/sop-flow/internal/session"
	"github.com/procdoc/sop-flow/internal/sop"
)

// fakeProcessor drives the real session state machine without touching
// ffmpeg or any AI backend.
type fakeProcessor struct {
	notify func(session.Snapshot)
}

func (f *fakeProcessor) Ingest(ctx context.Context, s *session.Session, videoName string, src io.Reader) error {
	if !media.SupportedExtension(videoName) {
		return s.Fail(session.StageIngest, &media.UnsupportedFormatError{Path: videoName, Reason: "extension not supported"})
	}
	if _, err := io.Copy(io.Discard, src); err != nil {
		return s.Fail(session.StageIngest, err)
	}
	s.SetUploaded(videoName, s.Dir+"/upload.mp4", 60)
	f.notify(s.Snapshot())
	return nil
}

func (f *fakeProcessor) ExtractAudio(s *session.Session) error {
	if !s.Begin(session.StageAudio) {
		return fmt.Errorf("audio extraction not available in state %s", s.State())
	}
	s.SetAudio(s.Dir + "/audio.wav")
	f.notify(s.Snapshot())
	return nil
}

func (f *fakeProcessor) Transcribe(s *session.Session) error {
	if !s.Begin(session.StageTranscribe) {
		return fmt.Errorf("transcription not available in state %s", s.State())
	}
	s.SetTranscript([]sop.TranscriptSegment{{Start: 0, End: 5, Text: "hello"}})
	f.notify(s.Snapshot())
	return nil
}

func (f *fakeProcessor) AnalyzeMoments(s *session.Session) error {
	if !s.Begin(session.StageAnalyze) {
		return fmt.Errorf("moment analysis not available in state %s", s.State())
	}
	s.ProposeMoments([]sop.Moment{{Timestamp: 5, Description: "step one"}})
	f.notify(s.Snapshot())
	return nil
}

func (f *fakeProcessor) ExtractFrames(s *session.Session) error      { return nil }
func (f *fakeProcessor) GenerateDocument(s *session.Session) error   { return nil }
func (f *fakeProcessor) BuildDocument(s *session.Session) error      { return nil }
func (f *fakeProcessor) UploadToDrive(s *session.Session) error      { return nil }
func (f *fakeProcessor) Process(ctx context.Context, p string) error { return nil }
func (f *fakeProcessor) SetNotifier(fn func(session.Snapshot))       { f.notify = fn }

type disabledUploader struct{}

func (disabledUploader) Enabled() bool                          { return false }
func (disabledUploader) AuthURL(string) string                  { return "" }
func (disabledUploader) Exchange(context.Context, string) error { return nil }
func (disabledUploader) Authorized() bool                       { return false }
func (disabledUploader) Upload(context.Context, string, string) (string, error) {
	return "", nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.Addr = ":0"
	cfg.Server.MaxUploadMB = 8

	log := logger.New("error")
	store, err := session.NewStore(t.TempDir(), time.Hour, log)
	if err != nil {
		t.Fatal(err)
	}

	proc := &fakeProcessor{notify: func(session.Snapshot) {}}
	hub := NewHub(log)
	proc.SetNotifier(hub.Broadcast)

	h := &handlers{
		cfg:       cfg,
		processor: proc,
		store:     store,
		uploader:  disabledUploader{},
		hub:       hub,
		logger:    log,
	}
	return newRouter(cfg, h), store
}

func multipartVideo(t *testing.T, filename string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("video", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	fields := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &fields)
	}
	return rec, fields
}

func createSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	body, contentType := multipartVideo(t, "demo.mp4", []byte("video"))
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var snap session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.ID == "" || snap.State != session.StateUploaded {
		t.Fatalf("unexpected snapshot after upload: %+v", snap)
	}
	return snap.ID
}

func TestHealthcheck(t *testing.T) {
	r, _ := newTestRouter(t)
	rec, _ := doJSON(t, r, http.MethodGet, "/healthcheck", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCreateAndFetchSession(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	rec, _ := doJSON(t, r, http.MethodGet, "/api/sessions/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session: status = %d", rec.Code)
	}

	rec, _ = doJSON(t, r, http.MethodGet, "/api/sessions/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d, want 404", rec.Code)
	}
}

func TestCreateSessionRejectsUnsupportedExtension(t *testing.T) {
	r, store := newTestRouter(t)

	body, contentType := multipartVideo(t, "demo.wmv", []byte("video"))
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
	if n := store.Len(); n != 0 {
		t.Errorf("store holds %d sessions after rejected upload, want 0", n)
	}
}

func TestStageGuardReturnsConflict(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	rec, _ := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/transcribe", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("transcribe before audio: status = %d, want 409", rec.Code)
	}
}

func TestMomentReviewFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	for _, path := range []string{"/audio", "/transcribe", "/moments/analyze"} {
		rec, _ := doJSON(t, r, http.MethodPost, "/api/sessions/"+id+path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %s: status = %d, body = %s", path, rec.Code, rec.Body.String())
		}
	}

	edited := `[{"timestamp": 5, "description": "step one, reworded"}, {"timestamp": 30, "description": "added by hand"}]`
	rec, _ := doJSON(t, r, http.MethodPut, "/api/sessions/"+id+"/moments", edited)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit moments: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var snap session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Moments) != 2 || !snap.Moments[0].UserEdited {
		t.Errorf("edited moments not applied: %+v", snap.Moments)
	}

	rec, _ = doJSON(t, r, http.MethodPost, "/api/sessions/"+id+"/moments/confirm", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm moments: status = %d", rec.Code)
	}
}

func TestEditMomentsValidation(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)
	for _, path := range []string{"/audio", "/transcribe", "/moments/analyze"} {
		doJSON(t, r, http.MethodPost, "/api/sessions/"+id+path, "")
	}

	tests := []struct {
		name string
		body string
	}{
		{"negative timestamp", `[{"timestamp": -1, "description": "x"}]`},
		{"missing description", `[{"timestamp": 5, "description": ""}]`},
		{"not an array", `{"timestamp": 5}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := doJSON(t, r, http.MethodPut, "/api/sessions/"+id+"/moments", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestDestroySession(t *testing.T) {
	r, store := newTestRouter(t)
	id := createSession(t, r)

	rec, _ := doJSON(t, r, http.MethodDelete, "/api/sessions/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", rec.Code)
	}
	if _, ok := store.Get(id); ok {
		t.Error("session still in store after delete")
	}
	rec, _ = doJSON(t, r, http.MethodGet, "/api/sessions/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

func TestDriveEndpointsWhenDisabled(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, fields := doJSON(t, r, http.MethodGet, "/api/drive/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("drive status: status = %d", rec.Code)
	}
	if string(fields["enabled"]) != "false" {
		t.Errorf("enabled = %s, want false", fields["enabled"])
	}

	rec, _ = doJSON(t, r, http.MethodGet, "/api/drive/auth-url", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("auth-url: status = %d, want 501", rec.Code)
	}
	rec, _ = doJSON(t, r, http.MethodPost, "/api/drive/code", `{"code":"abc"}`)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("code exchange: status = %d, want 501", rec.Code)
	}
}

func TestDownloadBeforeBuildConflicts(t *testing.T) {
	r, _ := newTestRouter(t)
	id := createSession(t, r)

	rec, _ := doJSON(t, r, http.MethodGet, "/api/sessions/"+id+"/download", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("download before build: status = %d, want 409", rec.Code)
	}
}
