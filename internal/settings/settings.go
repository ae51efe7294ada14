package settings

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/pagecapture/internal/engine"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// GlobalSettings are the process-wide capture defaults read on every job.
type GlobalSettings struct {
	Browser           string `json:"browser" yaml:"browser"`
	WindowWidth       int    `json:"window_width" yaml:"window_width"`
	WindowHeight      int    `json:"window_height" yaml:"window_height"`
	FullPage          bool   `json:"full_page" yaml:"full_page"`
	Delay             int    `json:"delay" yaml:"delay"`
	DarkMode          bool   `json:"dark_mode" yaml:"dark_mode"`
	UserAgent         string `json:"user_agent" yaml:"user_agent"`
	Headless          bool   `json:"headless" yaml:"headless"`
	JavaScriptEnabled bool   `json:"javascript_enabled" yaml:"javascript_enabled"`
	ImagesEnabled     bool   `json:"images_enabled" yaml:"images_enabled"`
	Stealth           bool   `json:"stealth" yaml:"stealth"`
	Language          string `json:"language" yaml:"language"`
	Format            string `json:"format" yaml:"format"`
	Quality           int    `json:"quality" yaml:"quality"`
}

// Defaults returns the hard-coded settings.
func Defaults() GlobalSettings {
	return GlobalSettings{
		Browser:           string(engine.KindChrome),
		WindowWidth:       1920,
		WindowHeight:      1080,
		FullPage:          true,
		Delay:             0,
		DarkMode:          false,
		UserAgent:         DefaultUserAgent,
		Headless:          true,
		JavaScriptEnabled: true,
		ImagesEnabled:     true,
		Stealth:           false,
		Language:          "en-US",
		Format:            string(engine.FormatPNG),
		Quality:           90,
	}
}

// Validate checks structural constraints. Browser names are checked by the
// engine factory at capture time.
func (g GlobalSettings) Validate() error {
	if strings.TrimSpace(g.Browser) == "" {
		return engine.Validationf("browser is required")
	}
	if g.WindowWidth <= 0 || g.WindowHeight <= 0 {
		return engine.Validationf("window size must be positive, got %dx%d", g.WindowWidth, g.WindowHeight)
	}
	if g.Delay < 0 {
		return engine.Validationf("delay must be >= 0, got %d", g.Delay)
	}
	if g.Quality < 1 || g.Quality > 100 {
		return engine.Validationf("quality must be between 1 and 100, got %d", g.Quality)
	}
	if _, ok := engine.ParseFormat(g.Format); !ok {
		return engine.Validationf("unsupported format %q", g.Format)
	}
	return nil
}

// Patch is a partial settings update; nil fields are left unchanged.
type Patch struct {
	Browser           *string `json:"browser,omitempty"`
	WindowWidth       *int    `json:"window_width,omitempty"`
	WindowHeight      *int    `json:"window_height,omitempty"`
	FullPage          *bool   `json:"full_page,omitempty"`
	Delay             *int    `json:"delay,omitempty"`
	DarkMode          *bool   `json:"dark_mode,omitempty"`
	UserAgent         *string `json:"user_agent,omitempty"`
	Headless          *bool   `json:"headless,omitempty"`
	JavaScriptEnabled *bool   `json:"javascript_enabled,omitempty"`
	ImagesEnabled     *bool   `json:"images_enabled,omitempty"`
	Stealth           *bool   `json:"stealth,omitempty"`
	Language          *string `json:"language,omitempty"`
	Format            *string `json:"format,omitempty"`
	Quality           *int    `json:"quality,omitempty"`
}

// Apply returns g with every set field of p overlaid.
func (g GlobalSettings) Apply(p Patch) GlobalSettings {
	setString(&g.Browser, p.Browser)
	setInt(&g.WindowWidth, p.WindowWidth)
	setInt(&g.WindowHeight, p.WindowHeight)
	setBool(&g.FullPage, p.FullPage)
	setInt(&g.Delay, p.Delay)
	setBool(&g.DarkMode, p.DarkMode)
	setString(&g.UserAgent, p.UserAgent)
	setBool(&g.Headless, p.Headless)
	setBool(&g.JavaScriptEnabled, p.JavaScriptEnabled)
	setBool(&g.ImagesEnabled, p.ImagesEnabled)
	setBool(&g.Stealth, p.Stealth)
	setString(&g.Language, p.Language)
	setString(&g.Format, p.Format)
	setInt(&g.Quality, p.Quality)
	if g.Browser != "" {
		g.Browser = string(engine.ParseKind(g.Browser))
	}
	if f, ok := engine.ParseFormat(g.Format); ok {
		g.Format = string(f)
	}
	return g
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// Store holds the live settings. Updates are last-writer-wins.
type Store struct {
	mu  sync.RWMutex
	cur GlobalSettings
}

// NewStore creates a Store seeded with initial.
func NewStore(initial GlobalSettings) *Store {
	return &Store{cur: initial}
}

// Get returns a copy of the current settings.
func (s *Store) Get() GlobalSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update merges p into the current settings. Nothing changes if the merged
// result is invalid.
func (s *Store) Update(p Patch) (GlobalSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.Apply(p)
	if err := next.Validate(); err != nil {
		return s.cur, err
	}
	s.cur = next
	return next, nil
}

// Reset restores the hard-coded defaults.
func (s *Store) Reset() GlobalSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Defaults()
	return s.cur
}

// LoadFile reads a YAML seed file over the defaults. Keys missing from the
// file keep their default values.
func LoadFile(path string) (GlobalSettings, error) {
	g := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return g, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	g = g.Apply(Patch{})
	if err := g.Validate(); err != nil {
		return g, fmt.Errorf("settings file %s: %w", path, err)
	}
	return g, nil
}
