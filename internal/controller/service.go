package controller

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/engine"
	"github.com/dgnsrekt/pagecapture/internal/history"
	"github.com/dgnsrekt/pagecapture/internal/jobs"
	"github.com/dgnsrekt/pagecapture/internal/settings"
	"github.com/dgnsrekt/pagecapture/internal/snapshot"
)

// DefaultProbeTimeout bounds one browser availability probe.
const DefaultProbeTimeout = 45 * time.Second

// Service wraps capture, history and settings operations behind one facade.
type Service struct {
	tracker   *jobs.Tracker
	history   *history.Store
	settings  *settings.Store
	artifacts *snapshot.Store
	factory   jobs.SessionFactory

	ProbeTimeout time.Duration
}

func NewService(tracker *jobs.Tracker, hist *history.Store, st *settings.Store, artifacts *snapshot.Store, factory jobs.SessionFactory) *Service {
	return &Service{
		tracker:      tracker,
		history:      hist,
		settings:     st,
		artifacts:    artifacts,
		factory:      factory,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &engine.CodedError{Code: engine.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// --- Capture methods ---

// CaptureSync runs a capture on the calling goroutine. A failed job is
// returned together with its coded error so callers can report both.
func (s *Service) CaptureSync(ctx context.Context, req capture.Request) (capture.Job, error) {
	return s.tracker.CaptureSync(ctx, req)
}

func (s *Service) CaptureAsync(ctx context.Context, req capture.Request) (capture.Job, error) {
	return s.tracker.CaptureAsync(req)
}

func (s *Service) Status(ctx context.Context, id string) (capture.Job, error) {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return capture.Job{}, err
	}
	return s.tracker.Status(strings.TrimSpace(id))
}

// Download is the stored image of a completed job.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReadResult returns the image of a completed job. Pending and failed jobs
// are NOT_READY.
func (s *Service) ReadResult(ctx context.Context, id string) (Download, error) {
	job, err := s.Status(ctx, id)
	if err != nil {
		return Download{}, err
	}
	switch {
	case job.Status == capture.StatusPending:
		return Download{}, engine.NewError(engine.CodeNotReady, fmt.Sprintf("screenshot %s is still pending", job.ID), nil)
	case job.Status != capture.StatusCompleted || job.Result == nil:
		return Download{}, engine.NewError(engine.CodeNotReady, fmt.Sprintf("screenshot %s has no image: %s", job.ID, job.Error), nil)
	}

	data, err := s.artifacts.Read(job.Result.FilePath)
	if err != nil {
		return Download{}, err
	}
	format, ok := engine.ParseFormat(job.Result.Format)
	if !ok {
		format = engine.FormatPNG
	}
	return Download{Filename: job.Result.Filename, ContentType: format.ContentType(), Data: data}, nil
}

// Preview is an inline data URI of a completed job's image.
type Preview struct {
	ID       string `json:"id"`
	Image    string `json:"image" doc:"data:<mime>;base64,<payload>"`
	Filename string `json:"filename"`
}

func (s *Service) Preview(ctx context.Context, id string) (Preview, error) {
	dl, err := s.ReadResult(ctx, id)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		ID:       strings.TrimSpace(id),
		Image:    "data:" + dl.ContentType + ";base64," + base64.StdEncoding.EncodeToString(dl.Data),
		Filename: dl.Filename,
	}, nil
}

// --- History methods ---

func (s *Service) ListHistory(ctx context.Context, status string, offset, limit int) (history.Page, error) {
	q := history.Query{Offset: offset, Limit: limit}
	if strings.TrimSpace(status) != "" {
		st, ok := capture.ParseStatus(status)
		if !ok {
			return history.Page{}, engine.Validationf("status must be one of pending, completed, failed")
		}
		q.Status = st
	}
	if offset < 0 {
		return history.Page{}, engine.Validationf("offset must be >= 0")
	}
	if limit < 0 || limit > history.MaxLimit {
		return history.Page{}, engine.Validationf("limit must be between 1 and %d", history.MaxLimit)
	}
	return s.history.List(q), nil
}

func (s *Service) DeleteHistory(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return err
	}
	return s.history.Delete(strings.TrimSpace(id))
}

func (s *Service) ClearHistory(ctx context.Context) int {
	n := s.history.Clear()
	slog.Info("history cleared", "removed", n)
	return n
}

// --- Settings methods ---

func (s *Service) GetSettings(ctx context.Context) settings.GlobalSettings {
	return s.settings.Get()
}

func (s *Service) UpdateSettings(ctx context.Context, p settings.Patch) (settings.GlobalSettings, error) {
	g, err := s.settings.Update(p)
	if err != nil {
		return settings.GlobalSettings{}, err
	}
	slog.Info("settings updated", "browser", g.Browser, "width", g.WindowWidth, "height", g.WindowHeight, "format", g.Format)
	return g, nil
}

func (s *Service) ResetSettings(ctx context.Context) settings.GlobalSettings {
	slog.Info("settings reset to defaults")
	return s.settings.Reset()
}

// --- Browser methods ---

// BrowserInfo reports whether a browser kind can be launched here.
type BrowserInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// Browsers probes every kind concurrently with a trivial launch.
func (s *Service) Browsers(ctx context.Context) []BrowserInfo {
	out := make([]BrowserInfo, len(engine.Kinds))
	var wg sync.WaitGroup
	for i, kind := range engine.Kinds {
		i, kind := i, kind
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = s.probe(ctx, kind)
		}()
	}
	wg.Wait()
	return out
}

func (s *Service) probe(ctx context.Context, kind engine.Kind) BrowserInfo {
	info := BrowserInfo{Name: string(kind)}
	timeout := s.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sess, err := s.factory.Create(ctx, kind, engine.Options{
		Width:             800,
		Height:            600,
		Headless:          true,
		ImagesEnabled:     true,
		JavaScriptEnabled: true,
	})
	if err != nil {
		slog.Debug("browser probe failed", "browser", kind, "error", err)
		info.Error = capture.FailureMessage(err)
		return info
	}
	info.Available = true
	info.Version = sess.Version()
	if err := sess.Close(); err != nil {
		slog.Debug("browser probe close failed", "browser", kind, "error", err)
	}
	return info
}

// --- Stats ---

// Stats aggregates history with the live pending count.
type Stats struct {
	TotalScreenshots int      `json:"total_screenshots"`
	Completed        int      `json:"completed"`
	Failed           int      `json:"failed"`
	Pending          int      `json:"pending"`
	TotalSizeBytes   int64    `json:"total_size_bytes"`
	TotalSizeMB      float64  `json:"total_size_mb"`
	UniqueDomains    int      `json:"unique_domains"`
	Domains          []string `json:"domains"`
}

func (s *Service) Stats(ctx context.Context) Stats {
	hs := s.history.Stats()
	pending := s.tracker.PendingCount()
	return Stats{
		TotalScreenshots: hs.TotalJobs + pending,
		Completed:        hs.Completed,
		Failed:           hs.Failed,
		Pending:          pending,
		TotalSizeBytes:   hs.TotalSizeBytes,
		TotalSizeMB:      math.Round(float64(hs.TotalSizeBytes)/(1024*1024)*100) / 100,
		UniqueDomains:    hs.UniqueHosts,
		Domains:          hs.Hosts,
	}
}
