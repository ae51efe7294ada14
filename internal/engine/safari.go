package engine

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/tebeka/selenium"
)

// safariEngine launches Safari behind safaridriver. Safari exposes no launch
// preferences over WebDriver, so only the viewport takes effect; the other
// settings are accepted and logged.
type safariEngine struct {
	driver      Driver
	size        Size
	unsupported []string
}

func newSafariEngine(d Driver) Engine {
	return &safariEngine{driver: d}
}

func (e *safariEngine) Kind() Kind { return KindSafari }

func (e *safariEngine) SetViewport(w, h int) { e.size = Size{Width: w, Height: h} }

func (e *safariEngine) SetHeadless(h bool) {
	if h {
		e.unsupported = append(e.unsupported, "headless")
	}
}

func (e *safariEngine) SetUserAgent(string) {
	e.unsupported = append(e.unsupported, "user_agent")
}

func (e *safariEngine) SetImageLoading(on bool) {
	if !on {
		e.unsupported = append(e.unsupported, "images_enabled")
	}
}

func (e *safariEngine) SetScriptExecution(on bool) {
	if !on {
		e.unsupported = append(e.unsupported, "javascript_enabled")
	}
}

func (e *safariEngine) SetDarkMode(on bool) {
	if on {
		e.unsupported = append(e.unsupported, "dark_mode")
	}
}

func (e *safariEngine) SetLanguage(string) {}

func (e *safariEngine) SetStealth(on bool) {
	if on {
		e.unsupported = append(e.unsupported, "stealth_mode")
	}
}

func (e *safariEngine) Launch(ctx context.Context) (Session, error) {
	if len(e.unsupported) > 0 {
		slog.Warn("safari ignores settings", "settings", e.unsupported)
	}
	return launchWebDriver(ctx, driverSpec{
		kind:   KindSafari,
		name:   "safaridriver",
		binary: e.driver.Path,
		args: func(port int) []string {
			return []string{"-p", strconv.Itoa(port)}
		},
		caps: selenium.Capabilities{"browserName": "safari"},
		size: e.size,
	})
}
