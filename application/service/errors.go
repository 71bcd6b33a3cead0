package service

import (
	"errors"
	"fmt"
)

// ErrMaskingFailed indicates the masking stage was aborted. Results of the
// earlier stages stay valid.
var ErrMaskingFailed = errors.New("masking failed")

// ErrNoBaseQuality indicates masking was requested without the base quality
// module whose selections drive it.
var ErrNoBaseQuality = errors.New("masking needs the base-quality module")

// MaskingError reports why the masking stage stopped.
type MaskingError struct {
	// Index is the record being masked when the stage stopped, or -1 when it
	// stopped before the pass began.
	Index int64
	Err   error
}

func (e *MaskingError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %v", ErrMaskingFailed, e.Err)
	}
	return fmt.Sprintf("%v at record %d: %v", ErrMaskingFailed, e.Index, e.Err)
}

// Unwrap exposes both ErrMaskingFailed and the cause to errors.Is.
func (e *MaskingError) Unwrap() []error { return []error{ErrMaskingFailed, e.Err} }
