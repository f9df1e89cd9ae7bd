package clipboard

import (
	"errors"
	"testing"
)

func stub(t *testing.T, isUnsupported bool, write func(string) error) {
	t.Helper()
	prevU, prevW := unsupported, writeAll
	unsupported = func() bool { return isUnsupported }
	writeAll = write
	t.Cleanup(func() { unsupported, writeAll = prevU, prevW })
}

func TestCopyUnavailable(t *testing.T) {
	stub(t, true, func(string) error {
		t.Fatalf("write should not be attempted")
		return nil
	})
	if err := Copy("x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCopyWritesText(t *testing.T) {
	var got string
	stub(t, false, func(s string) error {
		got = s
		return nil
	})
	if err := Copy("Paris"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if got != "Paris" {
		t.Fatalf("unexpected clipboard content: %q", got)
	}
}

func TestCopyWrapsWriteError(t *testing.T) {
	boom := errors.New("xclip exited 1")
	stub(t, false, func(string) error { return boom })
	if err := Copy("x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
