package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type recordingEngine struct {
	kind     Kind
	calls    []string
	opts     Options
	launched bool
	err      error
}

func (e *recordingEngine) Kind() Kind { return e.kind }
func (e *recordingEngine) SetViewport(w, h int) {
	e.calls = append(e.calls, "viewport")
	e.opts.Width, e.opts.Height = w, h
}
func (e *recordingEngine) SetHeadless(h bool) {
	e.calls = append(e.calls, "headless")
	e.opts.Headless = h
}
func (e *recordingEngine) SetUserAgent(ua string) {
	e.calls = append(e.calls, "user_agent")
	e.opts.UserAgent = ua
}
func (e *recordingEngine) SetImageLoading(on bool) {
	e.calls = append(e.calls, "images")
	e.opts.ImagesEnabled = on
}
func (e *recordingEngine) SetScriptExecution(on bool) {
	e.calls = append(e.calls, "scripts")
	e.opts.JavaScriptEnabled = on
}
func (e *recordingEngine) SetDarkMode(on bool) {
	e.calls = append(e.calls, "dark")
	e.opts.DarkMode = on
}
func (e *recordingEngine) SetLanguage(lang string) {
	e.calls = append(e.calls, "language")
	e.opts.Language = lang
}
func (e *recordingEngine) SetStealth(on bool) {
	e.calls = append(e.calls, "stealth")
	e.opts.Stealth = on
}
func (e *recordingEngine) Launch(context.Context) (Session, error) {
	e.launched = true
	if e.err != nil {
		return nil, e.err
	}
	return &nopSession{kind: e.kind}, nil
}

type nopSession struct {
	Session
	kind Kind
}

func (s *nopSession) Kind() Kind      { return s.kind }
func (s *nopSession) Version() string { return "1.0" }

func staticLocator(path string) DriverLocator {
	return LocatorFunc(func(Kind) (Driver, error) { return Driver{Path: path}, nil })
}

func TestFactoryCreateAppliesOptions(t *testing.T) {
	f := NewFactory(staticLocator("/bin/fake"))
	var built *recordingEngine
	var gotDriver Driver
	f.Register(KindChrome, func(d Driver) Engine {
		gotDriver = d
		built = &recordingEngine{kind: KindChrome}
		return built
	})

	opts := Options{
		Width: 800, Height: 600, Headless: true, UserAgent: "UA/1",
		ImagesEnabled: false, JavaScriptEnabled: true, DarkMode: true,
		Language: "de-DE", Stealth: true,
	}
	sess, err := f.Create(context.Background(), KindChrome, opts)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.Kind() != KindChrome {
		t.Fatalf("Kind() = %q; want chrome", sess.Kind())
	}
	if gotDriver.Path != "/bin/fake" {
		t.Fatalf("driver path = %q; want /bin/fake", gotDriver.Path)
	}
	if !built.launched {
		t.Fatal("engine was not launched")
	}
	if !reflect.DeepEqual(built.opts, opts) {
		t.Fatalf("applied options = %+v; want %+v", built.opts, opts)
	}
}

func TestFactoryCreateSkipsEmptyOptionalSettings(t *testing.T) {
	f := NewFactory(staticLocator("/bin/fake"))
	built := &recordingEngine{kind: KindEdge}
	f.Register(KindEdge, func(Driver) Engine { return built })

	if _, err := f.Create(context.Background(), KindEdge, Options{Headless: true}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	for _, c := range built.calls {
		if c == "viewport" || c == "user_agent" || c == "language" {
			t.Fatalf("unexpected setter %q for empty option; calls = %v", c, built.calls)
		}
	}
}

func TestFactoryCreateUnsupported(t *testing.T) {
	f := NewFactory(staticLocator("/bin/fake"))
	_, err := f.Create(context.Background(), Kind("opera"), Options{})
	if !IsCode(err, CodeUnsupportedBrowser) {
		t.Fatalf("Create(opera) error = %v; want %s", err, CodeUnsupportedBrowser)
	}
}

func TestFactoryCreateLocateFailure(t *testing.T) {
	f := NewFactory(LocatorFunc(func(Kind) (Driver, error) { return Driver{}, errors.New("missing") }))
	_, err := f.Create(context.Background(), KindFirefox, Options{})
	if !IsCode(err, CodeSessionLaunch) {
		t.Fatalf("Create() error = %v; want %s", err, CodeSessionLaunch)
	}
}

func TestFactoryCreateWrapsLaunchError(t *testing.T) {
	f := NewFactory(staticLocator("/bin/fake"))
	f.Register(KindSafari, func(Driver) Engine {
		return &recordingEngine{kind: KindSafari, err: errors.New("boom")}
	})
	_, err := f.Create(context.Background(), KindSafari, Options{})
	if !IsCode(err, CodeSessionLaunch) {
		t.Fatalf("Create() error = %v; want %s", err, CodeSessionLaunch)
	}

	coded := NewError(CodeNavigation, "kept", nil)
	f.Register(KindSafari, func(Driver) Engine {
		return &recordingEngine{kind: KindSafari, err: coded}
	})
	_, err = f.Create(context.Background(), KindSafari, Options{})
	if !errors.Is(err, coded) {
		t.Fatalf("Create() error = %v; want coded error passed through", err)
	}
}

func TestFactorySupportedOrder(t *testing.T) {
	f := NewFactory(staticLocator(""))
	f.Register(Kind("brave"), func(Driver) Engine { return &recordingEngine{kind: "brave"} })

	got := f.Supported()
	want := []Kind{KindChrome, KindFirefox, KindEdge, KindSafari, Kind("brave")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Supported() = %v; want %v", got, want)
	}
}
