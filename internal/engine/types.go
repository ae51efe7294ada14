package engine

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeValidation         = "VALIDATION"
	CodeUnsupportedBrowser = "UNSUPPORTED_BROWSER"
	CodeSessionLaunch      = "SESSION_LAUNCH"
	CodeNavigation         = "NAVIGATION"
	CodeElementNotFound    = "ELEMENT_NOT_FOUND"
	CodeCaptureFailure     = "CAPTURE_FAILURE"
	CodeNotFound           = "NOT_FOUND"
	CodeNotReady           = "NOT_READY"
	CodeStorageFailure     = "STORAGE_FAILURE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// NewError builds a CodedError.
func NewError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Validationf is shorthand for a VALIDATION error with a formatted message.
func Validationf(format string, args ...any) error {
	return &CodedError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// Kind identifies a browser engine variant.
type Kind string

const (
	KindChrome  Kind = "chrome"
	KindFirefox Kind = "firefox"
	KindEdge    Kind = "edge"
	KindSafari  Kind = "safari"
)

// Kinds lists every supported browser kind in display order.
var Kinds = []Kind{KindChrome, KindFirefox, KindEdge, KindSafari}

// ParseKind normalizes a browser name. Unknown names are returned as-is so
// the factory can reject them.
func ParseKind(name string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(name)))
}

// Format is an output image encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ParseFormat accepts png, jpeg (or jpg) and webp.
func ParseFormat(name string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "png":
		return FormatPNG, true
	case "jpeg", "jpg":
		return FormatJPEG, true
	case "webp":
		return FormatWebP, true
	}
	return "", false
}

// Lossy reports whether quality applies to the format.
func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}
