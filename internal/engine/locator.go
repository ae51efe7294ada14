package engine

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"
)

// Driver is what a variant needs to start: the browser binary for Chromium
// engines, or the WebDriver server binary (plus an optional browser binary)
// for WebDriver engines.
type Driver struct {
	Path        string
	BrowserPath string
}

// DriverLocator resolves driver binaries per browser kind. Provisioning the
// binaries themselves is handled outside this module.
type DriverLocator interface {
	Locate(kind Kind) (Driver, error)
}

// LocatorFunc adapts a function to DriverLocator.
type LocatorFunc func(kind Kind) (Driver, error)

func (f LocatorFunc) Locate(kind Kind) (Driver, error) { return f(kind) }

// PathLocator finds drivers from explicit overrides first, then well-known
// names on PATH and platform install locations.
type PathLocator struct {
	// Overrides maps a kind to its driver path (CHROME_PATH, GECKODRIVER_PATH, ...).
	Overrides map[Kind]string
	// BrowserOverrides maps a WebDriver kind to its browser binary (FIREFOX_PATH).
	BrowserOverrides map[Kind]string

	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	goos     string
}

// NewPathLocator returns a PathLocator using the host PATH.
func NewPathLocator(overrides, browserOverrides map[Kind]string) *PathLocator {
	return &PathLocator{
		Overrides:        overrides,
		BrowserOverrides: browserOverrides,
		lookPath:         exec.LookPath,
		stat:             os.Stat,
		goos:             runtime.GOOS,
	}
}

var pathCandidates = map[Kind][]string{
	KindChrome:  {"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"},
	KindEdge:    {"microsoft-edge", "microsoft-edge-stable", "msedge"},
	KindFirefox: {"geckodriver"},
	KindSafari:  {"safaridriver"},
}

var darwinCandidates = map[Kind][]string{
	KindChrome: {"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome", "/Applications/Chromium.app/Contents/MacOS/Chromium"},
	KindEdge:   {"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge"},
	KindSafari: {"/usr/bin/safaridriver"},
}

// Locate implements DriverLocator.
func (p *PathLocator) Locate(kind Kind) (Driver, error) {
	drv := Driver{BrowserPath: p.BrowserOverrides[kind]}

	if override := p.Overrides[kind]; override != "" {
		if _, err := p.stat(override); err != nil {
			return Driver{}, fmt.Errorf("%s driver override %q: %w", kind, override, err)
		}
		drv.Path = override
		return drv, nil
	}

	candidates, ok := pathCandidates[kind]
	if !ok {
		return Driver{}, fmt.Errorf("no driver candidates for %q", string(kind))
	}
	for _, name := range candidates {
		if path, err := p.lookPath(name); err == nil {
			drv.Path = path
			return drv, nil
		}
	}
	if p.goos == "darwin" {
		for _, path := range darwinCandidates[kind] {
			if _, err := p.stat(path); err == nil {
				drv.Path = path
				return drv, nil
			}
		}
	}
	if kind == KindChrome {
		if path, found := launcher.LookPath(); found {
			drv.Path = path
			return drv, nil
		}
	}
	return Driver{}, fmt.Errorf("no %s driver found (tried %v)", kind, candidates)
}
