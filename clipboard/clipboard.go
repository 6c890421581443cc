// Package clipboard copies transcriptions to the system clipboard.
//
// When no clipboard utility is available (headless sessions, SSH) Copy
// falls back to an OSC 52 escape sequence written to the terminal.
package clipboard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	cb "github.com/atotto/clipboard"
)

// ErrTimeout is returned when the clipboard utility does not answer in time.
var ErrTimeout = errors.New("clipboard timed out")

const callTimeout = 3 * time.Second

var (
	mu       sync.Mutex
	fallback io.Writer
)

// SetFallback sets the terminal that receives OSC 52 sequences when the
// system clipboard is unusable. Pass nil to disable.
func SetFallback(w io.Writer) {
	mu.Lock()
	fallback = w
	mu.Unlock()
}

// Available reports whether a system clipboard utility was found.
func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	var text string
	err := withTimeout(func() error {
		var err error
		text, err = cb.ReadAll()
		return err
	})
	return text, err
}

// Copy writes text to the system clipboard, or to the fallback terminal.
func Copy(text string) error {
	var err error
	if Available() {
		if err = withTimeout(func() error { return cb.WriteAll(text) }); err == nil {
			return nil
		}
	}

	mu.Lock()
	w := fallback
	mu.Unlock()
	if w == nil {
		if err == nil {
			err = errors.New("no clipboard utility found")
		}
		return err
	}
	if _, werr := io.WriteString(w, OSC52(text)); werr != nil {
		return fmt.Errorf("osc52: %w", werr)
	}
	return nil
}

// OSC52 returns the terminal escape sequence that sets the clipboard to text.
func OSC52(text string) string {
	return "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
}

// clipboard tools can hang when the compositor is not accessible
func withTimeout(fn func() error) error {
	ch := make(chan error, 1)
	go func() { ch <- fn() }()
	select {
	case err := <-ch:
		return err
	case <-time.After(callTimeout):
		return ErrTimeout
	}
}
