package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/procdoc/sop-flow/internal/config"
	"github.com/procdoc/sop-flow/internal/logger"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type implUploader struct {
	oauth     *oauth2.Config
	tokenFile string
	folderID  string
	logger    logger.Logger
}

// New creates an Uploader from config. With no OAuth client configured the
// uploader stays disabled; that is a feature toggle, not an error.
func New(cfg config.DriveConfig, log logger.Logger) Uploader {
	if !cfg.Enabled() {
		return &implUploader{logger: log}
	}
	return &implUploader{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gdrive.DriveFileScope},
			Endpoint:     google.Endpoint,
		},
		tokenFile: cfg.TokenFile,
		folderID:  cfg.FolderID,
		logger:    log,
	}
}

func (u *implUploader) Enabled() bool {
	return u.oauth != nil
}

func (u *implUploader) AuthURL(state string) string {
	if u.oauth == nil {
		return ""
	}
	return u.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and persists it.
func (u *implUploader) Exchange(ctx context.Context, code string) error {
	if u.oauth == nil {
		return &AuthError{Reason: "drive upload is not configured"}
	}

	token, err := u.oauth.Exchange(ctx, code)
	if err != nil {
		return &AuthError{Reason: "authorization code rejected", Err: err}
	}
	return u.saveToken(token)
}

func (u *implUploader) Authorized() bool {
	if u.oauth == nil {
		return false
	}
	_, err := u.loadToken()
	return err == nil
}

// Upload sends the document to Drive and returns its web link.
func (u *implUploader) Upload(ctx context.Context, filePath, name string) (string, error) {
	if u.oauth == nil {
		return "", &AuthError{Reason: "drive upload is not configured"}
	}

	token, err := u.loadToken()
	if err != nil {
		return "", &AuthError{Reason: "not authorized, complete the OAuth flow first", Err: err}
	}

	source := u.oauth.TokenSource(ctx, token)
	service, err := gdrive.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return "", &AuthError{Reason: "create drive client", Err: err}
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	meta := &gdrive.File{Name: name, MimeType: docxMimeType}
	if u.folderID != "" {
		meta.Parents = []string{u.folderID}
	}

	created, err := service.Files.Create(meta).
		Media(f).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload to drive: %w", err)
	}

	// Refresh may have rotated the token; keep the newest one on disk.
	if fresh, err := source.Token(); err == nil {
		_ = u.saveToken(fresh)
	}

	u.logger.Info(ctx, "Uploaded %s to Drive (id: %s)", name, created.Id)
	return created.WebViewLink, nil
}

func (u *implUploader) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(u.tokenFile)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &token, nil
}

func (u *implUploader) saveToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if dir := filepath.Dir(u.tokenFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	return os.WriteFile(u.tokenFile, data, 0600)
}
