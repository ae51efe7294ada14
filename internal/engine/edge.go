package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// edgeEngine launches Microsoft Edge through go-rod's launcher.
type edgeEngine struct {
	driver        Driver
	width, height int
	headless      bool
	userAgent     string
	images        bool
	scripts       bool
	darkMode      bool
	lang          string
	stealth       bool
}

func newEdgeEngine(d Driver) Engine {
	return &edgeEngine{driver: d, headless: true, images: true, scripts: true}
}

func (e *edgeEngine) Kind() Kind { return KindEdge }
func (e *edgeEngine) SetViewport(w, h int) { e.width, e.height = w, h }
func (e *edgeEngine) SetHeadless(h bool) { e.headless = h }
func (e *edgeEngine) SetUserAgent(ua string) { e.userAgent = ua }
func (e *edgeEngine) SetImageLoading(on bool) { e.images = on }
func (e *edgeEngine) SetScriptExecution(on bool) { e.scripts = on }
func (e *edgeEngine) SetDarkMode(on bool) { e.darkMode = on }
func (e *edgeEngine) SetLanguage(lang string) { e.lang = lang }
func (e *edgeEngine) SetStealth(on bool) { e.stealth = on }

func (e *edgeEngine) launcher() *launcher.Launcher {
	l := launcher.New().
		Headless(e.headless).
		NoSandbox(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-first-run")
	if e.driver.Path != "" {
		l = l.Bin(e.driver.Path)
	}
	if e.width > 0 && e.height > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", e.width, e.height))
	}
	if e.userAgent != "" {
		l = l.Set("user-agent", e.userAgent)
	}
	if !e.images {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}
	if e.darkMode {
		l = l.Set("force-dark-mode")
	}
	if e.lang != "" {
		l = l.Set("lang", e.lang)
	}
	if e.stealth {
		l = l.Set("disable-blink-features", "AutomationControlled")
	}
	return l
}

func (e *edgeEngine) Launch(ctx context.Context) (Session, error) {
	type launched struct {
		s   *edgeSession
		err error
	}
	done := make(chan launched, 1)
	go func() {
		s, err := e.start()
		done <- launched{s, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, NewError(CodeSessionLaunch, "start edge", r.err)
		}
		return r.s, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.s != nil {
				r.s.Close()
			}
		}()
		return nil, NewError(CodeSessionLaunch, "start edge", ctx.Err())
	}
}

func (e *edgeEngine) start() (*edgeSession, error) {
	l := e.launcher()
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}
	s := &edgeSession{launcher: l}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect: %w", err)
	}
	s.browser = b

	if e.stealth {
		s.page, err = stealth.Page(b)
	} else {
		s.page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	if e.width > 0 && e.height > 0 {
		if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             e.width,
			Height:            e.height,
			DeviceScaleFactor: 1,
		}); err != nil {
			s.Close()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}
	if e.userAgent != "" {
		if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      e.userAgent,
			AcceptLanguage: e.lang,
		}); err != nil {
			s.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if !e.scripts {
		if err := (proto.EmulationSetScriptExecutionDisabled{Value: true}).Call(s.page); err != nil {
			s.Close()
			return nil, fmt.Errorf("disable scripts: %w", err)
		}
	}

	if v, err := b.Version(); err == nil {
		s.version = v.Product
	}
	return s, nil
}

type edgeSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	version  string

	closeOnce sync.Once
}

func (s *edgeSession) Kind() Kind      { return KindEdge }
func (s *edgeSession) Version() string { return s.version }

func (s *edgeSession) eval(ctx context.Context, fn string, out any, args ...any) error {
	res, err := s.page.Context(ctx).Eval(fn, args...)
	if err != nil {
		return err
	}
	return decodeResult(res.Value.Str(), out)
}

func (s *edgeSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return NewError(CodeNavigation, fmt.Sprintf("navigate to %s", url), err)
	}
	if err := p.WaitLoad(); err != nil {
		return NewError(CodeNavigation, fmt.Sprintf("load %s", url), err)
	}
	return nil
}

func (s *edgeSession) WaitForSelector(ctx context.Context, selector string) error {
	_, err := s.page.Context(ctx).Element(selector)
	return err
}

func (s *edgeSession) HideElements(ctx context.Context, selector string) (int, error) {
	var res hideResult
	if err := s.eval(ctx, hideElementsJS, &res, selector); err != nil {
		return 0, err
	}
	if res.Error != "" {
		return 0, fmt.Errorf("hide %q: %s", selector, res.Error)
	}
	return res.Count, nil
}

func (s *edgeSession) EmulateDarkMode(ctx context.Context) error {
	return proto.EmulationSetEmulatedMedia{
		Features: []*proto.EmulationMediaFeature{{Name: "prefers-color-scheme", Value: "dark"}},
	}.Call(s.page.Context(ctx))
}

func (s *edgeSession) Viewport(ctx context.Context) (Size, error) {
	var size Size
	err := s.eval(ctx, viewportJS, &size)
	return size, err
}

func (s *edgeSession) SetViewport(ctx context.Context, size Size) error {
	return s.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             size.Width,
		Height:            size.Height,
		DeviceScaleFactor: 1,
	})
}

func (s *edgeSession) PageExtent(ctx context.Context) (Size, error) {
	var size Size
	err := s.eval(ctx, pageExtentJS, &size)
	return size, err
}

func rodFormat(f Format) proto.PageCaptureScreenshotFormat {
	switch f {
	case FormatJPEG:
		return proto.PageCaptureScreenshotFormatJpeg
	case FormatWebP:
		return proto.PageCaptureScreenshotFormatWebp
	default:
		return proto.PageCaptureScreenshotFormatPng
	}
}

func (s *edgeSession) capture(ctx context.Context, format Format, quality int, clip *proto.PageViewport) ([]byte, error) {
	req := &proto.PageCaptureScreenshot{Format: rodFormat(format)}
	if format.Lossy() {
		q := quality
		req.Quality = &q
	}
	if clip != nil {
		req.Clip = clip
		req.CaptureBeyondViewport = true
	}
	buf, err := s.page.Context(ctx).Screenshot(false, req)
	if err != nil {
		return nil, NewError(CodeCaptureFailure, "capture screenshot", err)
	}
	return buf, nil
}

func (s *edgeSession) CaptureViewport(ctx context.Context, format Format, quality int) ([]byte, error) {
	return s.capture(ctx, format, quality, nil)
}

func (s *edgeSession) CaptureElement(ctx context.Context, selector string, format Format, quality int) ([]byte, error) {
	var rect elementRect
	if err := s.eval(ctx, elementRectJS, &rect, selector); err != nil {
		return nil, NewError(CodeCaptureFailure, fmt.Sprintf("locate %q", selector), err)
	}
	if err := rect.check(selector); err != nil {
		return nil, err
	}
	return s.capture(ctx, format, quality, &proto.PageViewport{
		X:      rect.X,
		Y:      rect.Y,
		Width:  rect.Width,
		Height: rect.Height,
		Scale:  1,
	})
}

func (s *edgeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.browser != nil {
			err = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Cleanup()
		}
	})
	return err
}
