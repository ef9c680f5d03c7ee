package media

import "fmt"

// UnsupportedFormatError indicates the uploaded container cannot be
// processed: unknown extension, unreadable file, or no audio track.
type UnsupportedFormatError struct {
	Path   string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %s: %s", e.Path, e.Reason)
}

// FrameExtractionError reports a failed decode for a single moment.
// The rest of the batch keeps going.
type FrameExtractionError struct {
	MomentIndex int
	Timestamp   float64
	Err         error
}

func (e *FrameExtractionError) Error() string {
	return fmt.Sprintf("extract frame for moment %d at %.2fs: %v", e.MomentIndex, e.Timestamp, e.Err)
}

func (e *FrameExtractionError) Unwrap() error {
	return e.Err
}
