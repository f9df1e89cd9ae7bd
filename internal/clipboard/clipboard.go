package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("clipboard tool not found")

// Indirection for tests.
var (
	unsupported = func() bool { return clipboard.Unsupported }
	writeAll    = clipboard.WriteAll
)

func Copy(text string) error {
	if unsupported() {
		return ErrUnavailable
	}
	if err := writeAll(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	return nil
}
