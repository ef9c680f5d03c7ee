package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/procdoc/sop-flow/internal/drive"
	"github.com/procdoc/sop-flow/internal/media"
	"github.com/procdoc/sop-flow/internal/processor"
	"github.com/procdoc/sop-flow/internal/session"
	"github.com/procdoc/sop-flow/internal/sop"
)

// stageStatus maps a stage failure to an HTTP status. Input problems are the
// caller's fault, everything else is an upstream or internal failure that the
// client can retry per stage.
func stageStatus(err error) int {
	var unsupported *media.UnsupportedFormatError
	if errors.As(err, &unsupported) {
		return http.StatusUnsupportedMediaType
	}
	var auth *drive.AuthError
	if errors.As(err, &auth) {
		return http.StatusUnauthorized
	}
	var stageErr *session.StageError
	if errors.As(err, &stageErr) {
		return http.StatusBadGateway
	}
	// Anything else is a state-machine guard rejection.
	return http.StatusConflict
}

func (h *handlers) session(c *gin.Context) (*session.Session, bool) {
	s, ok := h.store.Get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "session_not_found", nil)
		return nil, false
	}
	return s, true
}

// POST /api/sessions (multipart, field "video")
func (h *handlers) createSession(c *gin.Context) {
	fh, err := c.FormFile("video")
	if err != nil {
		respondError(c, http.StatusBadRequest, "missing_video_file", err)
		return
	}
	if max := h.cfg.Server.MaxUploadMB << 20; fh.Size > max {
		respondError(c, http.StatusRequestEntityTooLarge, "upload_too_large", nil)
		return
	}

	src, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable_upload", err)
		return
	}
	defer src.Close()

	s, err := h.store.Create(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "session_create_failed", err)
		return
	}

	if err := h.processor.Ingest(c.Request.Context(), s, fh.Filename, src); err != nil {
		status := stageStatus(err)
		_ = h.store.Destroy(c.Request.Context(), s.ID)
		respondError(c, status, "ingest_failed", err)
		return
	}
	c.JSON(http.StatusCreated, s.Snapshot())
}

// GET /api/sessions/:id
func (h *handlers) getSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	respondOK(c, s.Snapshot())
}

// DELETE /api/sessions/:id
func (h *handlers) destroySession(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Destroy(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusNotFound, "session_not_found", err)
		return
	}
	h.hub.CloseSession(id)
	c.Status(http.StatusNoContent)
}

// runStage executes one pipeline stage and responds with the refreshed
// snapshot, so the client never needs a follow-up GET.
func (h *handlers) runStage(c *gin.Context, code string, run func(*session.Session) error) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := run(s); err != nil {
		respondError(c, stageStatus(err), code, err)
		return
	}
	respondOK(c, s.Snapshot())
}

func (h *handlers) extractAudio(c *gin.Context) {
	h.runStage(c, "audio_extraction_failed", h.processor.ExtractAudio)
}

func (h *handlers) transcribe(c *gin.Context) {
	h.runStage(c, "transcription_failed", h.processor.Transcribe)
}

func (h *handlers) analyzeMoments(c *gin.Context) {
	h.runStage(c, "moment_analysis_failed", h.processor.AnalyzeMoments)
}

// PUT /api/sessions/:id/moments replaces the proposed moment list with the
// user's reviewed version.
func (h *handlers) editMoments(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var moments []sop.Moment
	if err := c.ShouldBindJSON(&moments); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_moments", err)
		return
	}
	for _, m := range moments {
		if m.Timestamp < 0 {
			respondError(c, http.StatusBadRequest, "negative_timestamp", nil)
			return
		}
		if m.Description == "" {
			respondError(c, http.StatusBadRequest, "missing_description", nil)
			return
		}
	}

	if !s.EditMoments(moments) {
		respondError(c, http.StatusConflict, "moments_not_editable", nil)
		return
	}
	respondOK(c, s.Snapshot())
}

// POST /api/sessions/:id/moments/confirm
func (h *handlers) confirmMoments(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if !s.ConfirmMoments() {
		respondError(c, http.StatusConflict, "nothing_to_confirm", nil)
		return
	}
	h.hub.Broadcast(s.Snapshot())
	respondOK(c, s.Snapshot())
}

func (h *handlers) extractFrames(c *gin.Context) {
	h.runStage(c, "frame_extraction_failed", h.processor.ExtractFrames)
}

func (h *handlers) generateDocument(c *gin.Context) {
	h.runStage(c, "document_generation_failed", h.processor.GenerateDocument)
}

func (h *handlers) buildDocument(c *gin.Context) {
	h.runStage(c, "document_build_failed", h.processor.BuildDocument)
}

// GET /api/sessions/:id/download
func (h *handlers) downloadDocument(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	path := s.BuiltPath()
	if path == "" {
		respondError(c, http.StatusConflict, "document_not_built", nil)
		return
	}
	c.FileAttachment(path, processor.DocxName(s.VideoName()))
}

// POST /api/sessions/:id/drive
func (h *handlers) uploadToDrive(c *gin.Context) {
	if !h.uploader.Enabled() {
		respondError(c, http.StatusNotImplemented, "drive_not_configured", nil)
		return
	}
	h.runStage(c, "drive_upload_failed", h.processor.UploadToDrive)
}

// GET /api/drive/status
func (h *handlers) driveStatus(c *gin.Context) {
	respondOK(c, gin.H{
		"enabled":    h.uploader.Enabled(),
		"authorized": h.uploader.Enabled() && h.uploader.Authorized(),
	})
}

// GET /api/drive/auth-url
func (h *handlers) driveAuthURL(c *gin.Context) {
	if !h.uploader.Enabled() {
		respondError(c, http.StatusNotImplemented, "drive_not_configured", nil)
		return
	}
	state := c.Query("state")
	respondOK(c, gin.H{"auth_url": h.uploader.AuthURL(state)})
}

// POST /api/drive/code exchanges the OAuth authorization code for a token.
func (h *handlers) driveExchange(c *gin.Context) {
	if !h.uploader.Enabled() {
		respondError(c, http.StatusNotImplemented, "drive_not_configured", nil)
		return
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Code == "" {
		respondError(c, http.StatusBadRequest, "missing_code", err)
		return
	}
	if err := h.uploader.Exchange(c.Request.Context(), body.Code); err != nil {
		respondError(c, http.StatusUnauthorized, "code_exchange_failed", err)
		return
	}
	respondOK(c, gin.H{"authorized": true})
}

// GET /api/sessions/:id/ws
func (h *handlers) progressFeed(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := h.hub.Subscribe(c.Writer, c.Request, s.ID); err != nil {
		h.logger.Warn(c.Request.Context(), "Websocket upgrade failed for session %s: %v", s.ID, err)
	}
}

// GET /healthcheck
func (h *handlers) healthcheck(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok"})
}
