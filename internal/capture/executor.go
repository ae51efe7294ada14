package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/dgnsrekt/pagecapture/internal/engine"
)

const (
	// DefaultWaitTimeout bounds the wait-for-selector step.
	DefaultWaitTimeout = 10 * time.Second
	// MaxFullPageWidth and MaxFullPageHeight cap the resized surface for
	// full-page captures.
	MaxFullPageWidth  = 16384
	MaxFullPageHeight = 16384
)

// Step names for best-effort results.
const (
	StepViewport = "viewport"
	StepWait     = "wait_for_selector"
	StepHide     = "hide_selector"
	StepDarkMode = "dark_mode"
)

// StepResult is the outcome of one best-effort step.
type StepResult struct {
	Step   string
	Target string
	OK     bool
	Err    error
}

func (r StepResult) String() string {
	s := r.Step
	if r.Target != "" {
		s += "(" + r.Target + ")"
	}
	if r.OK {
		return s + ": ok"
	}
	return fmt.Sprintf("%s: %v", s, r.Err)
}

// Executor drives one session through a capture.
type Executor struct {
	WaitTimeout time.Duration

	now func() time.Time
}

// NewExecutor returns an Executor with the default wait timeout.
func NewExecutor() *Executor {
	return &Executor{WaitTimeout: DefaultWaitTimeout, now: time.Now}
}

// Capture navigates sess to cfg.URL and returns the encoded image. Wait, hide,
// dark-mode and viewport checks are best-effort and only reported in the
// metadata warnings.
func (e *Executor) Capture(ctx context.Context, sess engine.Session, cfg EffectiveConfig) ([]byte, Metadata, error) {
	start := e.now()
	var steps []StepResult

	if err := sess.Navigate(ctx, cfg.URL); err != nil {
		if !engine.IsCode(err, engine.CodeNavigation) {
			err = engine.NewError(engine.CodeNavigation, fmt.Sprintf("navigate to %s", cfg.URL), err)
		}
		return nil, Metadata{}, err
	}

	if cfg.WaitSelector != "" {
		waitCtx, cancel := context.WithTimeout(ctx, e.WaitTimeout)
		err := sess.WaitForSelector(waitCtx, cfg.WaitSelector)
		cancel()
		steps = append(steps, StepResult{Step: StepWait, Target: cfg.WaitSelector, OK: err == nil, Err: err})
	} else if cfg.Delay > 0 {
		if err := sleep(ctx, cfg.Delay); err != nil {
			return nil, Metadata{}, engine.NewError(engine.CodeCaptureFailure, "delay interrupted", err)
		}
	}

	for _, sel := range cfg.HideSelectors {
		n, err := sess.HideElements(ctx, sel)
		if err == nil && n == 0 {
			err = fmt.Errorf("no elements matched")
		}
		steps = append(steps, StepResult{Step: StepHide, Target: sel, OK: err == nil, Err: err})
	}

	if cfg.DarkMode {
		err := sess.EmulateDarkMode(ctx)
		steps = append(steps, StepResult{Step: StepDarkMode, OK: err == nil, Err: err})
	}

	want := engine.Size{Width: cfg.Width, Height: cfg.Height}
	steps = append(steps, e.checkViewport(ctx, sess, want))

	data, err := e.captureImage(ctx, sess, cfg)
	if err != nil {
		return nil, Metadata{}, err
	}
	if len(data) == 0 {
		return nil, Metadata{}, engine.NewError(engine.CodeCaptureFailure, "engine returned an empty image", nil)
	}

	imgCfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, Metadata{}, engine.NewError(engine.CodeCaptureFailure, "decode captured image", err)
	}

	meta := Metadata{
		Width:          imgCfg.Width,
		Height:         imgCfg.Height,
		Format:         string(cfg.Format),
		SizeBytes:      int64(len(data)),
		ElapsedMS:      e.now().Sub(start).Milliseconds(),
		Browser:        string(sess.Kind()),
		BrowserVersion: sess.Version(),
	}
	logSteps := make([]string, 0, len(steps))
	for _, st := range steps {
		logSteps = append(logSteps, st.String())
		if !st.OK {
			meta.Warnings = append(meta.Warnings, st.String())
			slog.Warn("best-effort capture step failed",
				"step", st.Step, "target", st.Target, "url", cfg.URL, "error", st.Err)
		}
	}
	slog.Info("capture finished",
		"url", cfg.URL,
		"browser", meta.Browser,
		"format", meta.Format,
		"width", meta.Width,
		"height", meta.Height,
		"size_bytes", meta.SizeBytes,
		"elapsed_ms", meta.ElapsedMS,
		"steps", logSteps,
	)
	return data, meta, nil
}

// checkViewport probes the live viewport and corrects it once if it does not
// match the requested size.
func (e *Executor) checkViewport(ctx context.Context, sess engine.Session, want engine.Size) StepResult {
	res := StepResult{Step: StepViewport}
	got, err := sess.Viewport(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	if got == want {
		res.OK = true
		return res
	}
	if err := sess.SetViewport(ctx, want); err != nil {
		res.Err = fmt.Errorf("viewport %dx%d, want %dx%d: %w", got.Width, got.Height, want.Width, want.Height, err)
		return res
	}
	if got, err = sess.Viewport(ctx); err == nil && got != want {
		err = fmt.Errorf("viewport %dx%d after resize, want %dx%d", got.Width, got.Height, want.Width, want.Height)
	}
	res.OK = err == nil
	res.Err = err
	return res
}

func (e *Executor) captureImage(ctx context.Context, sess engine.Session, cfg EffectiveConfig) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case cfg.CaptureSelector != "":
		data, err = sess.CaptureElement(ctx, cfg.CaptureSelector, cfg.Format, cfg.Quality)
	case cfg.FullPage:
		data, err = e.captureFullPage(ctx, sess, cfg)
	default:
		data, err = sess.CaptureViewport(ctx, cfg.Format, cfg.Quality)
	}
	if err != nil {
		switch engine.CodeOf(err) {
		case engine.CodeElementNotFound, engine.CodeCaptureFailure:
			return nil, err
		}
		return nil, engine.NewError(engine.CodeCaptureFailure, "capture failed", err)
	}
	return data, nil
}

// captureFullPage grows the viewport to the document's scrollable extent and
// captures it, so every engine shares the viewport capture path.
func (e *Executor) captureFullPage(ctx context.Context, sess engine.Session, cfg EffectiveConfig) ([]byte, error) {
	extent, err := sess.PageExtent(ctx)
	if err != nil {
		return nil, engine.NewError(engine.CodeCaptureFailure, "measure page", err)
	}
	size := engine.Size{
		Width:  min(max(cfg.Width, extent.Width), MaxFullPageWidth),
		Height: min(max(cfg.Height, extent.Height), MaxFullPageHeight),
	}
	if size != (engine.Size{Width: cfg.Width, Height: cfg.Height}) {
		if err := sess.SetViewport(ctx, size); err != nil {
			return nil, engine.NewError(engine.CodeCaptureFailure, fmt.Sprintf("resize to %dx%d", size.Width, size.Height), err)
		}
	}
	return sess.CaptureViewport(ctx, cfg.Format, cfg.Quality)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
