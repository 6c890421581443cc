package playback

import (
	"errors"
	"fmt"
)

// ErrDecode matches every DecodeError via errors.Is.
var ErrDecode = errors.New("decode failed")

// DecodeError reports that the backend could not produce audio for Source.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
