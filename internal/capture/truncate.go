package capture

import (
	"strconv"
	"unicode/utf8"
)

// maxErrorBytes bounds stored failure messages; WebDriver errors can carry
// whole stack traces.
const maxErrorBytes = 2048

// TruncateMessage cuts msg to at most maxBytes bytes on a rune boundary and
// notes how much was dropped.
func TruncateMessage(msg string, maxBytes int) string {
	if maxBytes <= 0 || len(msg) <= maxBytes {
		return msg
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "... (" + strconv.Itoa(len(msg)-cut) + " more bytes)"
}

// FailureMessage is the stored message for a failed job.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	return TruncateMessage(err.Error(), maxErrorBytes)
}
