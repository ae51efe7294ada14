package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

type chromeEngine struct {
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

func newChromeEngine(d Driver) Engine {
	return &chromeEngine{driver: d, headless: true, images: true, scripts: true}
}

func (e *chromeEngine) Kind() Kind { return KindChrome }
func (e *chromeEngine) SetViewport(w, h int) { e.width, e.height = w, h }
func (e *chromeEngine) SetHeadless(h bool) { e.headless = h }
func (e *chromeEngine) SetUserAgent(ua string) { e.userAgent = ua }
func (e *chromeEngine) SetImageLoading(on bool) { e.images = on }
func (e *chromeEngine) SetScriptExecution(on bool) { e.scripts = on }
func (e *chromeEngine) SetDarkMode(on bool) { e.darkMode = on }
func (e *chromeEngine) SetLanguage(lang string) { e.lang = lang }
func (e *chromeEngine) SetStealth(on bool) { e.stealth = on }

// allocatorOptions maps the recorded capabilities to Chrome flags.
func (e *chromeEngine) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if e.headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false), chromedp.Flag("hide-scrollbars", false))
	}
	if e.driver.Path != "" {
		opts = append(opts, chromedp.ExecPath(e.driver.Path))
	}
	if e.width > 0 && e.height > 0 {
		opts = append(opts, chromedp.WindowSize(e.width, e.height))
	}
	if e.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(e.userAgent))
	}
	if !e.images {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if e.darkMode {
		opts = append(opts, chromedp.Flag("force-dark-mode", true))
	}
	if e.lang != "" {
		opts = append(opts, chromedp.Flag("lang", e.lang))
	}
	if e.stealth {
		opts = append(opts,
			chromedp.Flag("enable-automation", false),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
	}
	return opts
}

func (e *chromeEngine) setupActions() chromedp.Tasks {
	var tasks chromedp.Tasks
	if e.width > 0 && e.height > 0 {
		tasks = append(tasks, emulation.SetDeviceMetricsOverride(int64(e.width), int64(e.height), 1, false))
	}
	if !e.scripts {
		tasks = append(tasks, emulation.SetScriptExecutionDisabled(true))
	}
	if e.stealth {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverJS).Do(ctx)
			return err
		}))
	}
	return tasks
}

func (e *chromeEngine) Launch(ctx context.Context) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), e.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	s := &chromeSession{
		kind: KindChrome,
		ctx:  browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	// The first Run starts the browser and binds it to browserCtx, so it must
	// not carry the caller's deadline.
	tasks := append(e.setupActions(), chromedp.ActionFunc(func(ctx context.Context) error {
		_, product, _, _, _, err := browser.GetVersion().Do(ctx)
		if err != nil {
			return err
		}
		s.version = product
		return nil
	}))
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(browserCtx, tasks) }()

	select {
	case err := <-done:
		if err != nil {
			s.Close()
			return nil, NewError(CodeSessionLaunch, "start chrome", err)
		}
	case <-ctx.Done():
		s.Close()
		return nil, NewError(CodeSessionLaunch, "start chrome", ctx.Err())
	}
	return s, nil
}

// chromeSession drives one CDP browser through chromedp. It is shared by
// any Chromium variant that launches through an exec allocator.
type chromeSession struct {
	kind    Kind
	version string
	ctx     context.Context
	cancel  func()

	closeOnce sync.Once
}

func (s *chromeSession) Kind() Kind      { return s.kind }
func (s *chromeSession) Version() string { return s.version }

// run executes actions on the browser tab, bounded by ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) eval(ctx context.Context, fn string, out any, args ...any) error {
	var raw string
	if err := s.run(ctx, chromedp.Evaluate(callExpr(fn, args...), &raw)); err != nil {
		return err
	}
	return decodeResult(raw, out)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return NewError(CodeNavigation, fmt.Sprintf("navigate to %s", url), err)
	}
	return nil
}

func (s *chromeSession) WaitForSelector(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (s *chromeSession) HideElements(ctx context.Context, selector string) (int, error) {
	var res hideResult
	if err := s.eval(ctx, hideElementsJS, &res, selector); err != nil {
		return 0, err
	}
	if res.Error != "" {
		return 0, fmt.Errorf("hide %q: %s", selector, res.Error)
	}
	return res.Count, nil
}

func (s *chromeSession) EmulateDarkMode(ctx context.Context) error {
	return s.run(ctx, emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
		{Name: "prefers-color-scheme", Value: "dark"},
	}))
}

func (s *chromeSession) Viewport(ctx context.Context) (Size, error) {
	var size Size
	err := s.eval(ctx, viewportJS, &size)
	return size, err
}

func (s *chromeSession) SetViewport(ctx context.Context, size Size) error {
	return s.run(ctx, emulation.SetDeviceMetricsOverride(int64(size.Width), int64(size.Height), 1, false))
}

func (s *chromeSession) PageExtent(ctx context.Context) (Size, error) {
	var size Size
	err := s.eval(ctx, pageExtentJS, &size)
	return size, err
}

func cdpFormat(f Format) page.CaptureScreenshotFormat {
	switch f {
	case FormatJPEG:
		return page.CaptureScreenshotFormatJpeg
	case FormatWebP:
		return page.CaptureScreenshotFormatWebp
	default:
		return page.CaptureScreenshotFormatPng
	}
}

func (s *chromeSession) capture(ctx context.Context, format Format, quality int, clip *page.Viewport) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		p := page.CaptureScreenshot().WithFormat(cdpFormat(format))
		if format.Lossy() {
			p = p.WithQuality(int64(quality))
		}
		if clip != nil {
			p = p.WithClip(clip).WithCaptureBeyondViewport(true)
		}
		var err error
		buf, err = p.Do(ctx)
		return err
	}))
	if err != nil {
		return nil, NewError(CodeCaptureFailure, "capture screenshot", err)
	}
	return buf, nil
}

func (s *chromeSession) CaptureViewport(ctx context.Context, format Format, quality int) ([]byte, error) {
	return s.capture(ctx, format, quality, nil)
}

func (s *chromeSession) CaptureElement(ctx context.Context, selector string, format Format, quality int) ([]byte, error) {
	var rect elementRect
	if err := s.eval(ctx, elementRectJS, &rect, selector); err != nil {
		return nil, NewError(CodeCaptureFailure, fmt.Sprintf("locate %q", selector), err)
	}
	if err := rect.check(selector); err != nil {
		return nil, err
	}
	return s.capture(ctx, format, quality, &page.Viewport{
		X:      rect.X,
		Y:      rect.Y,
		Width:  rect.Width,
		Height: rect.Height,
		Scale:  1,
	})
}

func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = chromedp.Cancel(s.ctx)
		s.cancel()
	})
	return err
}
