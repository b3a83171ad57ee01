// Package persist saves generated LaTeX to the content storage service,
// preserving the vlmdesc data already stored for the script.
package persist

import (
	"errors"
	"fmt"
)

var (
	// ErrReadExisting aborts a save when no candidate endpoint could be read.
	ErrReadExisting = errors.New("could not read existing record")

	// ErrRecordNotFound means a candidate answered but held no record for the script.
	ErrRecordNotFound = errors.New("record not found")
)

// Error describes a failed call to the storage service.
type Error struct {
	Op         string // "read" or "write"
	URL        string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("persist %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// transient reports whether err is a transport failure or a 5xx answer.
func transient(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.StatusCode == 0 || pe.StatusCode >= 500
}
