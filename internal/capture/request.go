package capture

import (
	"net/url"
	"strings"
	"time"

	"github.com/dgnsrekt/pagecapture/internal/engine"
	"github.com/dgnsrekt/pagecapture/internal/settings"
)

// Request is a capture submission. Zero values and nil pointers fall through
// to the global settings.
type Request struct {
	URL             string   `json:"url" doc:"Page to capture (http or https)" example:"https://example.com"`
	Browser         string   `json:"browser,omitempty" doc:"chrome, firefox, edge or safari"`
	WindowWidth     int      `json:"window_width,omitempty" doc:"Viewport width in CSS pixels"`
	WindowHeight    int      `json:"window_height,omitempty" doc:"Viewport height in CSS pixels"`
	FullPage        *bool    `json:"full_page,omitempty" doc:"Capture the full scrollable page"`
	Delay           *int     `json:"delay,omitempty" doc:"Seconds to wait after load when no wait selector is set"`
	DarkMode        *bool    `json:"dark_mode,omitempty"`
	UserAgent       string   `json:"user_agent,omitempty"`
	Format          string   `json:"format,omitempty" doc:"png, jpeg or webp"`
	Quality         *int     `json:"quality,omitempty" doc:"1-100, lossy formats only"`
	Selector        string   `json:"selector,omitempty" doc:"Capture only the first element matching this CSS selector"`
	HideSelectors   []string `json:"hide_selectors,omitempty" doc:"CSS selectors hidden before capture"`
	WaitForSelector string   `json:"wait_for_selector,omitempty" doc:"CSS selector to wait for (10s, best-effort)"`
	CustomName      string   `json:"custom_name,omitempty" doc:"Output file name without extension"`
}

// EffectiveConfig is the fully resolved configuration of one job.
type EffectiveConfig struct {
	URL               string
	Browser           engine.Kind
	Width             int
	Height            int
	Headless          bool
	FullPage          bool
	Delay             time.Duration
	DarkMode          bool
	UserAgent         string
	Language          string
	ImagesEnabled     bool
	JavaScriptEnabled bool
	Stealth           bool
	Format            engine.Format
	Quality           int
	CaptureSelector   string
	HideSelectors     []string
	WaitSelector      string
	CustomName        string
}

// Options returns the engine launch options for the config.
func (c EffectiveConfig) Options() engine.Options {
	return engine.Options{
		Width:             c.Width,
		Height:            c.Height,
		Headless:          c.Headless,
		UserAgent:         c.UserAgent,
		ImagesEnabled:     c.ImagesEnabled,
		JavaScriptEnabled: c.JavaScriptEnabled,
		DarkMode:          c.DarkMode,
		Language:          c.Language,
		Stealth:           c.Stealth,
	}
}

// Resolve overlays req onto g. Unknown browser kinds pass through; the
// engine factory rejects them.
func Resolve(g settings.GlobalSettings, req Request) (EffectiveConfig, error) {
	defaults := settings.Defaults()

	target, err := validateURL(req.URL)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if req.WindowWidth < 0 || req.WindowHeight < 0 {
		return EffectiveConfig{}, engine.Validationf("window size must be positive, got %dx%d", req.WindowWidth, req.WindowHeight)
	}

	cfg := EffectiveConfig{
		URL:               target,
		Browser:           engine.ParseKind(firstString(req.Browser, g.Browser, defaults.Browser)),
		Width:             firstPositive(req.WindowWidth, g.WindowWidth, defaults.WindowWidth),
		Height:            firstPositive(req.WindowHeight, g.WindowHeight, defaults.WindowHeight),
		Headless:          g.Headless,
		FullPage:          pickBool(req.FullPage, g.FullPage),
		DarkMode:          pickBool(req.DarkMode, g.DarkMode),
		UserAgent:         firstString(req.UserAgent, g.UserAgent, defaults.UserAgent),
		Language:          firstString(g.Language, defaults.Language),
		ImagesEnabled:     g.ImagesEnabled,
		JavaScriptEnabled: g.JavaScriptEnabled,
		Stealth:           g.Stealth,
		CaptureSelector:   strings.TrimSpace(req.Selector),
		WaitSelector:      strings.TrimSpace(req.WaitForSelector),
		CustomName:        strings.TrimSpace(req.CustomName),
	}

	delay := g.Delay
	if req.Delay != nil {
		delay = *req.Delay
	}
	if delay < 0 {
		return EffectiveConfig{}, engine.Validationf("delay must be >= 0, got %d", delay)
	}
	cfg.Delay = time.Duration(delay) * time.Second

	formatName := firstString(req.Format, g.Format, defaults.Format)
	format, ok := engine.ParseFormat(formatName)
	if !ok {
		return EffectiveConfig{}, engine.Validationf("unsupported format %q", formatName)
	}
	cfg.Format = format

	quality := g.Quality
	if req.Quality != nil {
		quality = *req.Quality
	} else if quality == 0 {
		quality = defaults.Quality
	}
	if quality < 1 || quality > 100 {
		return EffectiveConfig{}, engine.Validationf("quality must be between 1 and 100, got %d", quality)
	}
	cfg.Quality = quality

	for _, sel := range req.HideSelectors {
		if sel = strings.TrimSpace(sel); sel != "" {
			cfg.HideSelectors = append(cfg.HideSelectors, sel)
		}
	}
	return cfg, nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", engine.Validationf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", engine.Validationf("invalid url %q: %v", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", engine.Validationf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", engine.Validationf("url %q has no host", raw)
	}
	return u.String(), nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func pickBool(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}
