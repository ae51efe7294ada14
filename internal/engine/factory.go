package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Constructor builds a fresh, unlaunched Engine for a resolved driver.
type Constructor func(d Driver) Engine

// Factory creates sessions keyed on browser kind.
type Factory struct {
	locator DriverLocator

	mu       sync.RWMutex
	variants map[Kind]Constructor
}

// NewFactory returns a Factory with the chrome, edge, firefox and safari
// variants registered.
func NewFactory(locator DriverLocator) *Factory {
	f := &Factory{locator: locator, variants: make(map[Kind]Constructor)}
	f.Register(KindChrome, newChromeEngine)
	f.Register(KindEdge, newEdgeEngine)
	f.Register(KindFirefox, newFirefoxEngine)
	f.Register(KindSafari, newSafariEngine)
	return f
}

// Register adds or replaces the variant for kind.
func (f *Factory) Register(kind Kind, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variants[kind] = ctor
}

// Supported returns the registered kinds in display order.
func (f *Factory) Supported() []Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()

	order := make(map[Kind]int, len(Kinds))
	for i, k := range Kinds {
		order[k] = i
	}
	kinds := make([]Kind, 0, len(f.variants))
	for k := range f.variants {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		oi, iok := order[kinds[i]]
		oj, jok := order[kinds[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return kinds[i] < kinds[j]
		}
	})
	return kinds
}

// Create launches a new session of the given kind configured with opts.
func (f *Factory) Create(ctx context.Context, kind Kind, opts Options) (Session, error) {
	f.mu.RLock()
	ctor, ok := f.variants[kind]
	f.mu.RUnlock()
	if !ok {
		return nil, NewError(CodeUnsupportedBrowser, fmt.Sprintf("unsupported browser: %q", string(kind)), nil)
	}

	drv, err := f.locator.Locate(kind)
	if err != nil {
		return nil, NewError(CodeSessionLaunch, fmt.Sprintf("locate %s driver", kind), err)
	}

	e := ctor(drv)
	Configure(e, opts)

	start := time.Now()
	sess, err := e.Launch(ctx)
	if err != nil {
		var coded *CodedError
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, NewError(CodeSessionLaunch, fmt.Sprintf("launch %s", kind), err)
	}

	slog.Info("engine session launched",
		"browser", kind,
		"version", sess.Version(),
		"driver", drv.Path,
		"headless", opts.Headless,
		"viewport", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sess, nil
}
