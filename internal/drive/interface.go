package drive

import "context"

// Uploader pushes finished documents to Google Drive. The app only ever
// touches files it created itself (drive.file scope).
type Uploader interface {
	Enabled() bool
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) error
	Authorized() bool
	Upload(ctx context.Context, filePath, name string) (string, error)
}
