package engine

import "context"

// Size is a width/height pair in CSS pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Options are the launch-time settings of one session.
type Options struct {
	Width             int
	Height            int
	Headless          bool
	UserAgent         string
	ImagesEnabled     bool
	JavaScriptEnabled bool
	DarkMode          bool
	Language          string
	Stealth           bool
}

// Engine is one browser variant. Every variant supports the same capability
// set; the Set* calls only record engine-native launch configuration and
// must happen before Launch. An Engine is used for a single Launch.
type Engine interface {
	Kind() Kind
	SetViewport(width, height int)
	SetHeadless(headless bool)
	SetUserAgent(userAgent string)
	SetImageLoading(enabled bool)
	SetScriptExecution(enabled bool)
	SetDarkMode(enabled bool)
	SetLanguage(lang string)
	SetStealth(enabled bool)
	Launch(ctx context.Context) (Session, error)
}

// Session is a live browser owned by exactly one capture job.
type Session interface {
	Kind() Kind
	Version() string
	Navigate(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, selector string) error
	// HideElements hides every match of selector and returns how many were hidden.
	HideElements(ctx context.Context, selector string) (int, error)
	EmulateDarkMode(ctx context.Context) error
	// Viewport probes the live inner window size.
	Viewport(ctx context.Context) (Size, error)
	SetViewport(ctx context.Context, size Size) error
	// PageExtent returns the full scrollable size of the current document.
	PageExtent(ctx context.Context) (Size, error)
	CaptureViewport(ctx context.Context, format Format, quality int) ([]byte, error)
	// CaptureElement captures the bounding box of the first match of selector.
	CaptureElement(ctx context.Context, selector string, format Format, quality int) ([]byte, error)
	Close() error
}

// Configure applies opts to e through its capability set.
func Configure(e Engine, opts Options) {
	e.SetHeadless(opts.Headless)
	if opts.Width > 0 && opts.Height > 0 {
		e.SetViewport(opts.Width, opts.Height)
	}
	if opts.UserAgent != "" {
		e.SetUserAgent(opts.UserAgent)
	}
	e.SetImageLoading(opts.ImagesEnabled)
	e.SetScriptExecution(opts.JavaScriptEnabled)
	e.SetDarkMode(opts.DarkMode)
	if opts.Language != "" {
		e.SetLanguage(opts.Language)
	}
	e.SetStealth(opts.Stealth)
}
