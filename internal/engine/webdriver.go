package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tebeka/selenium"

	"github.com/dgnsrekt/pagecapture/internal/browser"
	"github.com/dgnsrekt/pagecapture/internal/netutil"
)

const driverHost = "127.0.0.1"

// driverSpec describes how to start a WebDriver server and open a session on it.
type driverSpec struct {
	kind   Kind
	name   string
	binary string
	args   func(port int) []string
	caps   selenium.Capabilities
	size   Size
}

type remoteFunc func(caps selenium.Capabilities, urlPrefix string) (selenium.WebDriver, error)

// launchWebDriver spawns the driver process on a free loopback port, opens a
// session and applies the requested viewport.
func launchWebDriver(ctx context.Context, ds driverSpec) (Session, error) {
	port, err := netutil.FreePort(driverHost)
	if err != nil {
		return nil, NewError(CodeSessionLaunch, "reserve driver port", err)
	}
	proc := browser.NewLauncher(browser.Config{
		Name:    ds.name,
		Binary:  ds.binary,
		Args:    ds.args(port),
		Address: driverHost,
		Port:    port,
	})
	if err := proc.Launch(ctx); err != nil {
		return nil, NewError(CodeSessionLaunch, fmt.Sprintf("start %s", ds.name), err)
	}

	wd, err := newRemote(ctx, selenium.NewRemote, ds.caps, proc.URL())
	if err != nil {
		proc.Stop()
		return nil, NewError(CodeSessionLaunch, fmt.Sprintf("open %s session", ds.kind), err)
	}

	s := &webDriverSession{kind: ds.kind, wd: wd, proc: proc}
	if caps, err := wd.Capabilities(); err == nil {
		if v, ok := caps["browserVersion"].(string); ok {
			s.version = v
		}
	}
	if ds.size.Width > 0 && ds.size.Height > 0 {
		if err := s.SetViewport(ctx, ds.size); err != nil {
			s.Close()
			return nil, NewError(CodeSessionLaunch, "apply viewport", err)
		}
	}
	return s, nil
}

// newRemote opens a WebDriver session, giving up when ctx ends.
func newRemote(ctx context.Context, remote remoteFunc, caps selenium.Capabilities, url string) (selenium.WebDriver, error) {
	type opened struct {
		wd  selenium.WebDriver
		err error
	}
	done := make(chan opened, 1)
	go func() {
		wd, err := remote(caps, url)
		done <- opened{wd, err}
	}()
	select {
	case r := <-done:
		return r.wd, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.wd != nil {
				_ = r.wd.Quit()
			}
		}()
		return nil, ctx.Err()
	}
}

// webDriverSession drives a W3C WebDriver session. The selenium client has
// no context support, so each call runs under ctx via do.
type webDriverSession struct {
	kind    Kind
	version string
	wd      selenium.WebDriver
	proc    *browser.Launcher

	closeOnce sync.Once
}

func (s *webDriverSession) Kind() Kind      { return s.kind }
func (s *webDriverSession) Version() string { return s.version }

// do runs fn, returning early with ctx's error if ctx ends first. An
// abandoned call unblocks when Close stops the driver.
func (s *webDriverSession) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *webDriverSession) eval(ctx context.Context, fn string, out any, args ...any) error {
	return s.do(ctx, func() error {
		res, err := s.wd.ExecuteScript(webDriverBody(fn), args)
		if err != nil {
			return err
		}
		raw, ok := res.(string)
		if !ok {
			return fmt.Errorf("unexpected script result %T", res)
		}
		return decodeResult(raw, out)
	})
}

func (s *webDriverSession) Navigate(ctx context.Context, url string) error {
	if err := s.do(ctx, func() error { return s.wd.Get(url) }); err != nil {
		return NewError(CodeNavigation, fmt.Sprintf("navigate to %s", url), err)
	}
	return nil
}

func (s *webDriverSession) WaitForSelector(ctx context.Context, selector string) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		var found bool
		err := s.do(ctx, func() error {
			elems, err := s.wd.FindElements(selenium.ByCSSSelector, selector)
			found = len(elems) > 0
			return err
		})
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *webDriverSession) HideElements(ctx context.Context, selector string) (int, error) {
	var res hideResult
	if err := s.eval(ctx, hideElementsJS, &res, selector); err != nil {
		return 0, err
	}
	if res.Error != "" {
		return 0, fmt.Errorf("hide %q: %s", selector, res.Error)
	}
	return res.Count, nil
}

// EmulateDarkMode is a launch-time preference for WebDriver engines.
func (s *webDriverSession) EmulateDarkMode(context.Context) error {
	return fmt.Errorf("%s: runtime dark mode emulation not available", s.kind)
}

func (s *webDriverSession) Viewport(ctx context.Context) (Size, error) {
	var size Size
	err := s.eval(ctx, viewportJS, &size)
	return size, err
}

// SetViewport resizes the outer window, then corrects once for browser
// chrome so the inner size matches.
func (s *webDriverSession) SetViewport(ctx context.Context, size Size) error {
	if err := s.do(ctx, func() error { return s.wd.ResizeWindow("", size.Width, size.Height) }); err != nil {
		return err
	}
	inner, err := s.Viewport(ctx)
	if err != nil {
		return err
	}
	if inner == size {
		return nil
	}
	w := size.Width + (size.Width - inner.Width)
	h := size.Height + (size.Height - inner.Height)
	slog.Debug("correcting window size for browser chrome",
		"browser", s.kind, "want", size, "inner", inner, "outer_w", w, "outer_h", h)
	return s.do(ctx, func() error { return s.wd.ResizeWindow("", w, h) })
}

func (s *webDriverSession) PageExtent(ctx context.Context) (Size, error) {
	var size Size
	err := s.eval(ctx, pageExtentJS, &size)
	return size, err
}

func (s *webDriverSession) CaptureViewport(ctx context.Context, format Format, quality int) ([]byte, error) {
	var buf []byte
	err := s.do(ctx, func() error {
		var err error
		buf, err = s.wd.Screenshot()
		return err
	})
	if err != nil {
		return nil, NewError(CodeCaptureFailure, "capture screenshot", err)
	}
	return encodeFromPNG(buf, format, quality)
}

func (s *webDriverSession) CaptureElement(ctx context.Context, selector string, format Format, quality int) ([]byte, error) {
	var probe presenceResult
	if err := s.eval(ctx, selectorPresentJS, &probe, selector); err != nil {
		return nil, NewError(CodeCaptureFailure, fmt.Sprintf("locate %q", selector), err)
	}
	if err := (elementRect{Found: probe.Found, Error: probe.Error, Width: 1, Height: 1}).check(selector); err != nil {
		return nil, err
	}

	var buf []byte
	err := s.do(ctx, func() error {
		elem, err := s.wd.FindElement(selenium.ByCSSSelector, selector)
		if err != nil {
			return err
		}
		buf, err = elem.Screenshot(true)
		return err
	})
	if err != nil {
		return nil, NewError(CodeCaptureFailure, fmt.Sprintf("capture %q", selector), err)
	}
	return encodeFromPNG(buf, format, quality)
}

func (s *webDriverSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- s.wd.Quit() }()
		select {
		case err = <-done:
		case <-time.After(10 * time.Second):
			err = fmt.Errorf("%s: quit timed out", s.kind)
		}
		s.proc.Stop()
	})
	return err
}
