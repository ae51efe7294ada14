package capture

import (
	"errors"
	"strings"
	"testing"
)

func TestTruncateMessage(t *testing.T) {
	t.Run("no_truncation_when_within_limit", func(t *testing.T) {
		if got := TruncateMessage("hello world", 11); got != "hello world" {
			t.Fatalf("TruncateMessage() = %q; want unchanged", got)
		}
	})

	t.Run("truncate_long_message", func(t *testing.T) {
		got := TruncateMessage("hello world", 5)
		if got != "hello... (6 more bytes)" {
			t.Fatalf("TruncateMessage() = %q", got)
		}
	})

	t.Run("non_ascii_cut_on_rune_boundary", func(t *testing.T) {
		input := "😀😀" // each rune is 4 bytes
		got := TruncateMessage(input, 5)
		if !strings.HasPrefix(got, "😀...") {
			t.Fatalf("TruncateMessage() = %q; want cut after first rune", got)
		}
	})
}

func TestFailureMessage(t *testing.T) {
	if got := FailureMessage(nil); got != "" {
		t.Fatalf("FailureMessage(nil) = %q", got)
	}
	long := errors.New(strings.Repeat("x", maxErrorBytes*2))
	if got := FailureMessage(long); len(got) > maxErrorBytes+40 {
		t.Fatalf("FailureMessage() len = %d; want bounded", len(got))
	}
}
