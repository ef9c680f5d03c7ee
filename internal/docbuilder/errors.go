package docbuilder

import "fmt"

// DocumentWriteError reports an I/O failure writing the output document.
type DocumentWriteError struct {
	Path string
	Err  error
}

func (e *DocumentWriteError) Error() string {
	return fmt.Sprintf("write document %s: %v", e.Path, e.Err)
}

func (e *DocumentWriteError) Unwrap() error {
	return e.Err
}
