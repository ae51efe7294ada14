package controller

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/engine"
	"github.com/dgnsrekt/pagecapture/internal/engine/enginetest"
	"github.com/dgnsrekt/pagecapture/internal/history"
	"github.com/dgnsrekt/pagecapture/internal/jobs"
	"github.com/dgnsrekt/pagecapture/internal/settings"
	"github.com/dgnsrekt/pagecapture/internal/snapshot"
)

func newTestService(t *testing.T) (*Service, *enginetest.Factory) {
	t.Helper()
	artifacts, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("snapshot.NewStore() error = %v", err)
	}
	g := settings.Defaults()
	g.WindowWidth, g.WindowHeight = 32, 24
	factory := &enginetest.Factory{}
	st := settings.NewStore(g)
	hist := history.NewStore(artifacts)
	exec := capture.NewExecutor()
	exec.WaitTimeout = 20 * time.Millisecond
	tracker := jobs.NewTracker(factory, exec, artifacts, hist, st, jobs.Config{MaxConcurrentJobs: 2, JobTimeout: 5 * time.Second})
	return NewService(tracker, hist, st, artifacts, factory), factory
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("abc", "id"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}

	if err := s.requireNonEmpty("   ", "id"); err == nil {
		t.Fatalf("requireNonEmpty() = nil; want validation error")
	} else if got, ok := err.(*engine.CodedError); !ok {
		t.Fatalf("requireNonEmpty() = %T; want *engine.CodedError", err)
	} else if got.Code != engine.CodeValidation {
		t.Fatalf("requireNonEmpty() code = %q; want %q", got.Code, engine.CodeValidation)
	} else if got.Message != "id is required" {
		t.Fatalf("requireNonEmpty() message = %q; want %q", got.Message, "id is required")
	}
}

func TestPreviewCompletedJob(t *testing.T) {
	s, _ := newTestService(t)
	job, err := s.CaptureSync(context.Background(), capture.Request{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("CaptureSync() error = %v", err)
	}

	p, err := s.Preview(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(p.Image, prefix) {
		t.Fatalf("Preview() image prefix = %.30q; want %q", p.Image, prefix)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(p.Image, prefix))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	onDisk, err := os.ReadFile(job.Result.FilePath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(raw) != string(onDisk) {
		t.Fatal("preview payload differs from stored file")
	}
	if p.Filename != job.Result.Filename || p.ID != job.ID {
		t.Fatalf("Preview() = %+v", p)
	}
}

func TestReadResultNotReady(t *testing.T) {
	s, factory := newTestService(t)
	ctx := context.Background()

	pending, err := s.tracker.Submit(capture.Request{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := s.ReadResult(ctx, pending.ID); !engine.IsCode(err, engine.CodeNotReady) {
		t.Fatalf("ReadResult(pending) error = %v; want %s", err, engine.CodeNotReady)
	}

	factory.New = func(kind engine.Kind, opts engine.Options) (*enginetest.Session, error) {
		sess := enginetest.NewSession(kind, engine.Size{Width: opts.Width, Height: opts.Height})
		sess.NavigateErr = errors.New("refused")
		return sess, nil
	}
	failed, _ := s.CaptureSync(ctx, capture.Request{URL: "https://example.com"})
	if _, err := s.ReadResult(ctx, failed.ID); !engine.IsCode(err, engine.CodeNotReady) {
		t.Fatalf("ReadResult(failed) error = %v; want %s", err, engine.CodeNotReady)
	}

	if _, err := s.ReadResult(ctx, "missing"); !engine.IsCode(err, engine.CodeNotFound) {
		t.Fatalf("ReadResult(missing) error = %v; want %s", err, engine.CodeNotFound)
	}
}

func TestReadResultFileGone(t *testing.T) {
	s, _ := newTestService(t)
	job, err := s.CaptureSync(context.Background(), capture.Request{URL: "https://example.com", Format: "jpeg"})
	if err != nil {
		t.Fatalf("CaptureSync() error = %v", err)
	}
	dl, err := s.ReadResult(context.Background(), job.ID)
	if err != nil || dl.ContentType != "image/jpeg" {
		t.Fatalf("ReadResult() = %q, %v; want image/jpeg", dl.ContentType, err)
	}
	if err := os.Remove(job.Result.FilePath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.ReadResult(context.Background(), job.ID); !engine.IsCode(err, engine.CodeNotFound) {
		t.Fatalf("ReadResult() error = %v; want %s", err, engine.CodeNotFound)
	}
}

func TestListHistoryValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	if _, err := s.ListHistory(ctx, "done", 0, 10); !engine.IsCode(err, engine.CodeValidation) {
		t.Fatalf("ListHistory(bad status) error = %v", err)
	}
	if _, err := s.ListHistory(ctx, "", 0, history.MaxLimit+1); !engine.IsCode(err, engine.CodeValidation) {
		t.Fatalf("ListHistory(limit) error = %v", err)
	}
	if _, err := s.ListHistory(ctx, "", -1, 10); !engine.IsCode(err, engine.CodeValidation) {
		t.Fatalf("ListHistory(offset) error = %v", err)
	}
	page, err := s.ListHistory(ctx, "completed", 0, 0)
	if err != nil || page.Limit != history.DefaultLimit || page.Items == nil {
		t.Fatalf("ListHistory() = %+v, %v", page, err)
	}
}

func TestDeleteAndClearHistory(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	a, _ := s.CaptureSync(ctx, capture.Request{URL: "https://a.example.com"})
	_, _ = s.CaptureSync(ctx, capture.Request{URL: "https://b.example.com"})

	if err := s.DeleteHistory(ctx, a.ID); err != nil {
		t.Fatalf("DeleteHistory() error = %v", err)
	}
	if _, err := os.Stat(a.Result.FilePath); !os.IsNotExist(err) {
		t.Fatalf("artifact still present after delete: %v", err)
	}
	if err := s.DeleteHistory(ctx, a.ID); !engine.IsCode(err, engine.CodeNotFound) {
		t.Fatalf("DeleteHistory(again) error = %v; want %s", err, engine.CodeNotFound)
	}
	if n := s.ClearHistory(ctx); n != 1 {
		t.Fatalf("ClearHistory() = %d; want 1", n)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	w := 1366
	got, err := s.UpdateSettings(ctx, settings.Patch{WindowWidth: &w})
	if err != nil || got.WindowWidth != 1366 {
		t.Fatalf("UpdateSettings() = %+v, %v", got, err)
	}
	if s.GetSettings(ctx).WindowWidth != 1366 {
		t.Fatal("GetSettings() did not observe update")
	}
	q := 0
	if _, err := s.UpdateSettings(ctx, settings.Patch{Quality: &q}); !engine.IsCode(err, engine.CodeValidation) {
		t.Fatalf("UpdateSettings(invalid) error = %v", err)
	}
	if s.GetSettings(ctx).Quality != 90 {
		t.Fatal("invalid update changed settings")
	}
	if r := s.ResetSettings(ctx); r != settings.Defaults() {
		t.Fatalf("ResetSettings() = %+v", r)
	}
}

func TestBrowsersReportsEachKind(t *testing.T) {
	s, factory := newTestService(t)
	factory.New = func(kind engine.Kind, opts engine.Options) (*enginetest.Session, error) {
		if kind == engine.KindSafari {
			return nil, engine.NewError(engine.CodeSessionLaunch, "safaridriver not found", nil)
		}
		return enginetest.NewSession(kind, engine.Size{Width: opts.Width, Height: opts.Height}), nil
	}

	got := s.Browsers(context.Background())
	if len(got) != len(engine.Kinds) {
		t.Fatalf("Browsers() len = %d; want %d", len(got), len(engine.Kinds))
	}
	for i, b := range got {
		if b.Name != string(engine.Kinds[i]) {
			t.Fatalf("Browsers()[%d].Name = %q; want %q", i, b.Name, engine.Kinds[i])
		}
		if b.Name == "safari" {
			if b.Available || !strings.Contains(b.Error, "safaridriver") {
				t.Fatalf("safari = %+v; want unavailable with error", b)
			}
			continue
		}
		if !b.Available || b.Version == "" || b.Error != "" {
			t.Fatalf("%s = %+v; want available", b.Name, b)
		}
	}
	for _, sess := range factory.Sessions() {
		if sess.CloseCount() != 1 {
			t.Fatalf("probe session closed %d times; want 1", sess.CloseCount())
		}
	}
}

func TestStatsIncludesPending(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	if _, err := s.CaptureSync(ctx, capture.Request{URL: "https://example.com"}); err != nil {
		t.Fatalf("CaptureSync() error = %v", err)
	}
	if _, err := s.tracker.Submit(capture.Request{URL: "https://other.com"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	st := s.Stats(ctx)
	if st.Completed != 1 || st.Pending != 1 || st.TotalScreenshots != 2 {
		t.Fatalf("Stats() = %+v", st)
	}
	if st.TotalSizeBytes <= 0 || len(st.Domains) != 1 || st.Domains[0] != "example.com" {
		t.Fatalf("Stats() size/domains = %+v", st)
	}
}

func TestPresetsAreCopies(t *testing.T) {
	s := &Service{}
	vp := s.ViewportPresets()
	vp[0].Width = 1
	if s.ViewportPresets()[0].Width != 1920 {
		t.Fatal("ViewportPresets() exposes shared slice")
	}
	if len(s.UserAgents()) == 0 {
		t.Fatal("UserAgents() empty")
	}
}
