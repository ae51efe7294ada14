package capture

import (
	"reflect"
	"testing"
	"time"

	"github.com/dgnsrekt/pagecapture/internal/engine"
	"github.com/dgnsrekt/pagecapture/internal/settings"
)

func TestResolveFallsThroughToSettings(t *testing.T) {
	g := settings.Defaults()
	g.Browser = "firefox"
	g.Delay = 2
	g.Language = "fr-FR"

	cfg, err := Resolve(g, Request{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	want := EffectiveConfig{
		URL:               "https://example.com",
		Browser:           engine.KindFirefox,
		Width:             1920,
		Height:            1080,
		Headless:          true,
		FullPage:          true,
		Delay:             2 * time.Second,
		UserAgent:         settings.DefaultUserAgent,
		Language:          "fr-FR",
		ImagesEnabled:     true,
		JavaScriptEnabled: true,
		Format:            engine.FormatPNG,
		Quality:           90,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("Resolve() = %+v; want %+v", cfg, want)
	}
}

func TestResolveRequestWins(t *testing.T) {
	g := settings.Defaults()
	full, dark := false, true
	delay, quality := 0, 55
	req := Request{
		URL:             " https://example.com/a ",
		Browser:         "EDGE",
		WindowWidth:     800,
		WindowHeight:    600,
		FullPage:        &full,
		Delay:           &delay,
		DarkMode:        &dark,
		UserAgent:       "UA/2",
		Format:          "jpg",
		Quality:         &quality,
		Selector:        " #main ",
		HideSelectors:   []string{" .ad ", "", "  "},
		WaitForSelector: "#ready",
		CustomName:      "home",
	}
	cfg, err := Resolve(g, req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Browser != engine.KindEdge || cfg.Width != 800 || cfg.Height != 600 {
		t.Fatalf("Resolve() browser/size = %s %dx%d", cfg.Browser, cfg.Width, cfg.Height)
	}
	if cfg.FullPage || !cfg.DarkMode || cfg.Delay != 0 || cfg.UserAgent != "UA/2" {
		t.Fatalf("Resolve() flags = %+v", cfg)
	}
	if cfg.Format != engine.FormatJPEG || cfg.Quality != 55 {
		t.Fatalf("Resolve() format = %s q%d", cfg.Format, cfg.Quality)
	}
	if cfg.CaptureSelector != "#main" || !reflect.DeepEqual(cfg.HideSelectors, []string{".ad"}) {
		t.Fatalf("Resolve() selectors = %q %q", cfg.CaptureSelector, cfg.HideSelectors)
	}
	if cfg.URL != "https://example.com/a" {
		t.Fatalf("Resolve() url = %q", cfg.URL)
	}
}

func TestResolveDoesNotMutateSettings(t *testing.T) {
	g := settings.Defaults()
	before := g
	dark := true
	if _, err := Resolve(g, Request{URL: "https://example.com", DarkMode: &dark, WindowWidth: 10}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g != before {
		t.Fatalf("settings mutated: %+v", g)
	}
}

func TestResolveUnknownBrowserDeferred(t *testing.T) {
	cfg, err := Resolve(settings.Defaults(), Request{URL: "https://example.com", Browser: "opera"})
	if err != nil {
		t.Fatalf("Resolve() error = %v; want nil", err)
	}
	if cfg.Browser != engine.Kind("opera") {
		t.Fatalf("Browser = %q; want opera", cfg.Browser)
	}
}

func TestResolveValidation(t *testing.T) {
	neg, zero, high := -1, 0, 101
	cases := map[string]Request{
		"empty url":      {},
		"bad scheme":     {URL: "ftp://example.com"},
		"no host":        {URL: "https://"},
		"relative":       {URL: "example.com"},
		"negative width": {URL: "https://example.com", WindowWidth: -5},
		"negative delay": {URL: "https://example.com", Delay: &neg},
		"quality zero":   {URL: "https://example.com", Quality: &zero},
		"quality high":   {URL: "https://example.com", Quality: &high},
		"format":         {URL: "https://example.com", Format: "gif"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Resolve(settings.Defaults(), req); !engine.IsCode(err, engine.CodeValidation) {
				t.Fatalf("Resolve() error = %v; want %s", err, engine.CodeValidation)
			}
		})
	}
}
