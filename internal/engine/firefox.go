package engine

import (
	"context"
	"strconv"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/firefox"
)

// firefoxEngine launches Firefox behind geckodriver. Capabilities map to
// command-line arguments and about:config preferences.
type firefoxEngine struct {
	driver   Driver
	size     Size
	headless bool
	prefs    map[string]interface{}
}

func newFirefoxEngine(d Driver) Engine {
	return &firefoxEngine{driver: d, headless: true, prefs: make(map[string]interface{})}
}

func (e *firefoxEngine) Kind() Kind { return KindFirefox }

func (e *firefoxEngine) SetViewport(w, h int) { e.size = Size{Width: w, Height: h} }

func (e *firefoxEngine) SetHeadless(h bool) { e.headless = h }

func (e *firefoxEngine) SetUserAgent(ua string) {
	e.prefs["general.useragent.override"] = ua
}

func (e *firefoxEngine) SetImageLoading(on bool) {
	if on {
		delete(e.prefs, "permissions.default.image")
		return
	}
	e.prefs["permissions.default.image"] = 2
}

func (e *firefoxEngine) SetScriptExecution(on bool) {
	if on {
		delete(e.prefs, "javascript.enabled")
		return
	}
	e.prefs["javascript.enabled"] = false
}

func (e *firefoxEngine) SetDarkMode(on bool) {
	if !on {
		return
	}
	e.prefs["ui.systemUsesDarkTheme"] = 1
	e.prefs["layout.css.prefers-color-scheme.content-override"] = 0
}

func (e *firefoxEngine) SetLanguage(lang string) {
	e.prefs["intl.accept_languages"] = lang
}

func (e *firefoxEngine) SetStealth(on bool) {
	if on {
		e.prefs["dom.webdriver.enabled"] = false
		e.prefs["useAutomationExtension"] = false
	}
}

func (e *firefoxEngine) capabilities() selenium.Capabilities {
	var args []string
	if e.headless {
		args = append(args, "-headless")
	}
	if e.size.Width > 0 && e.size.Height > 0 {
		args = append(args, "--width="+strconv.Itoa(e.size.Width), "--height="+strconv.Itoa(e.size.Height))
	}
	caps := selenium.Capabilities{"browserName": "firefox"}
	caps.AddFirefox(firefox.Capabilities{
		Binary: e.driver.BrowserPath,
		Args:   args,
		Prefs:  e.prefs,
	})
	return caps
}

func (e *firefoxEngine) Launch(ctx context.Context) (Session, error) {
	return launchWebDriver(ctx, driverSpec{
		kind:   KindFirefox,
		name:   "geckodriver",
		binary: e.driver.Path,
		args: func(port int) []string {
			return []string{"--host", driverHost, "--port", strconv.Itoa(port)}
		},
		caps: e.capabilities(),
		size: e.size,
	})
}
