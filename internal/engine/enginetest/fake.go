// Package enginetest provides in-memory engine sessions for tests.
package enginetest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/dgnsrekt/pagecapture/internal/engine"
)

var _ engine.Session = (*Session)(nil)

// Session is a scriptable engine.Session that renders solid images of the
// current viewport size.
type Session struct {
	KindValue    engine.Kind
	VersionValue string

	NavigateErr error
	WaitErr     error
	HideErr     error
	DarkErr     error
	CaptureErr  error
	// Elements maps selectors to element box sizes for CaptureElement.
	Elements map[string]engine.Size
	// Hidden maps selectors to the number of elements HideElements reports.
	Hidden map[string]int
	// Extent is the full scrollable page size.
	Extent engine.Size
	// Gate, when set, blocks Navigate until it is closed or ctx ends.
	Gate chan struct{}
	// PanicOnCapture makes CaptureViewport panic.
	PanicOnCapture bool

	mu         sync.Mutex
	size       engine.Size
	calls      []string
	closeCount int
}

// NewSession returns a Session with the given viewport.
func NewSession(kind engine.Kind, size engine.Size) *Session {
	return &Session{KindValue: kind, VersionValue: "test/1.0", size: size, Extent: size}
}

func (s *Session) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// Calls returns the recorded method calls in order.
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CloseCount returns how many times Close was called.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCount
}

func (s *Session) Kind() engine.Kind { return s.KindValue }
func (s *Session) Version() string   { return s.VersionValue }

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.record("navigate " + url)
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.NavigateErr
}

func (s *Session) WaitForSelector(ctx context.Context, selector string) error {
	s.record("wait " + selector)
	if s.WaitErr != nil {
		return s.WaitErr
	}
	if _, ok := s.Elements[selector]; ok {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *Session) HideElements(_ context.Context, selector string) (int, error) {
	s.record("hide " + selector)
	if s.HideErr != nil {
		return 0, s.HideErr
	}
	return s.Hidden[selector], nil
}

func (s *Session) EmulateDarkMode(context.Context) error {
	s.record("dark")
	return s.DarkErr
}

func (s *Session) Viewport(context.Context) (engine.Size, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size, nil
}

func (s *Session) SetViewport(_ context.Context, size engine.Size) error {
	s.record(fmt.Sprintf("viewport %dx%d", size.Width, size.Height))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
	return nil
}

func (s *Session) PageExtent(context.Context) (engine.Size, error) {
	return s.Extent, nil
}

func (s *Session) CaptureViewport(_ context.Context, format engine.Format, quality int) ([]byte, error) {
	s.record("capture viewport")
	if s.PanicOnCapture {
		panic("renderer crashed")
	}
	if s.CaptureErr != nil {
		return nil, s.CaptureErr
	}
	size, _ := s.Viewport(context.Background())
	return Encode(size, format, quality)
}

func (s *Session) CaptureElement(_ context.Context, selector string, format engine.Format, quality int) ([]byte, error) {
	s.record("capture element " + selector)
	if s.CaptureErr != nil {
		return nil, s.CaptureErr
	}
	box, ok := s.Elements[selector]
	if !ok {
		return nil, engine.NewError(engine.CodeElementNotFound, fmt.Sprintf("no element matches %q", selector), nil)
	}
	return Encode(box, format, quality)
}

func (s *Session) Close() error {
	s.record("close")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCount++
	return nil
}

// Encode renders a solid image of size in format. WebP is not encodable
// with the standard library and yields a capture error.
func Encode(size engine.Size, format engine.Format, quality int) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0x20, 0x40, 0x80, 0xff
	}
	var buf bytes.Buffer
	switch format {
	case engine.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	case engine.FormatPNG, "":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		return nil, engine.NewError(engine.CodeCaptureFailure, fmt.Sprintf("%s not supported by test session", format), nil)
	}
	return buf.Bytes(), nil
}

// Factory hands out Sessions and records them.
type Factory struct {
	// New builds the session for a request. Nil uses NewSession with the
	// requested viewport and a page twice as tall.
	New func(kind engine.Kind, opts engine.Options) (*Session, error)

	mu       sync.Mutex
	sessions []*Session
	options  []engine.Options
}

// Create implements the tracker's session factory contract.
func (f *Factory) Create(_ context.Context, kind engine.Kind, opts engine.Options) (engine.Session, error) {
	known := false
	for _, k := range engine.Kinds {
		if k == kind {
			known = true
		}
	}
	if !known {
		return nil, engine.NewError(engine.CodeUnsupportedBrowser, fmt.Sprintf("unsupported browser: %q", string(kind)), nil)
	}

	var (
		s   *Session
		err error
	)
	if f.New != nil {
		s, err = f.New(kind, opts)
	} else {
		s = NewSession(kind, engine.Size{Width: opts.Width, Height: opts.Height})
		s.Extent = engine.Size{Width: opts.Width, Height: opts.Height * 2}
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.options = append(f.options, opts)
	f.mu.Unlock()
	return s, nil
}

// Sessions returns every session created so far.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// Options returns the launch options of every Create call.
func (f *Factory) Options() []engine.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Options(nil), f.options...)
}
