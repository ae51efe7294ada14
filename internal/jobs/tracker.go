package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/engine"
	"github.com/dgnsrekt/pagecapture/internal/settings"
	"github.com/dgnsrekt/pagecapture/internal/snapshot"
)

const (
	DefaultMaxConcurrentJobs = 4
	DefaultJobTimeout        = 120 * time.Second
)

// SessionFactory launches engine sessions.
type SessionFactory interface {
	Create(ctx context.Context, kind engine.Kind, opts engine.Options) (engine.Session, error)
}

// SettingsSource supplies the current global settings.
type SettingsSource interface {
	Get() settings.GlobalSettings
}

// ArtifactStore persists captured images.
type ArtifactStore interface {
	Save(base string, format engine.Format, data []byte) (snapshot.Artifact, error)
}

// History records finalized jobs.
type History interface {
	Append(job capture.Job) error
	Get(id string) (capture.Job, error)
}

// Listener is told about every job once it is finalized.
type Listener interface {
	JobFinalized(job capture.Job)
}

// Config bounds job execution.
type Config struct {
	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

// Tracker owns the lifecycle of every capture job: pending until Run
// finalizes it to completed or failed exactly once.
type Tracker struct {
	factory   SessionFactory
	executor  *capture.Executor
	artifacts ArtifactStore
	history   History
	settings  SettingsSource
	cfg       Config

	sem chan struct{}
	// wg counts submitted jobs until they are finalized.
	wg sync.WaitGroup

	mu        sync.RWMutex
	pending   map[string]pendingJob
	listeners []Listener
	draining  bool

	now func() time.Time
}

// pendingJob keeps the config resolved at submit time so a run never sees
// later settings changes.
type pendingJob struct {
	job capture.Job
	cfg capture.EffectiveConfig
}

// NewTracker wires a Tracker.
func NewTracker(factory SessionFactory, executor *capture.Executor, artifacts ArtifactStore, history History, src SettingsSource, cfg Config) *Tracker {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if executor == nil {
		executor = capture.NewExecutor()
	}
	return &Tracker{
		factory:   factory,
		executor:  executor,
		artifacts: artifacts,
		history:   history,
		settings:  src,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.MaxConcurrentJobs),
		pending:   make(map[string]pendingJob),
		now:       time.Now,
	}
}

// Submit resolves req against the current settings and records a pending
// job with that config. Invalid requests are rejected without allocating an
// id, as is everything submitted once Wait has started.
func (t *Tracker) Submit(req capture.Request) (capture.Job, error) {
	cfg, err := capture.Resolve(t.settings.Get(), req)
	if err != nil {
		return capture.Job{}, err
	}
	job := capture.Job{
		ID:          uuid.NewString(),
		Status:      capture.StatusPending,
		SubmittedAt: t.now().UTC(),
		URL:         cfg.URL,
		Browser:     string(cfg.Browser),
		Width:       cfg.Width,
		Height:      cfg.Height,
		FullPage:    cfg.FullPage,
	}

	t.mu.Lock()
	if t.draining {
		t.mu.Unlock()
		return capture.Job{}, engine.NewError(engine.CodeNotReady, "capture service is shutting down", nil)
	}
	t.pending[job.ID] = pendingJob{job: job, cfg: cfg}
	t.wg.Add(1)
	t.mu.Unlock()

	slog.Info("capture job submitted", "id", job.ID, "url", job.URL, "browser", job.Browser)
	return job, nil
}

// Run executes a submitted job and returns its finalized record. It is
// detached from the caller's cancellation and bounded by the job timeout.
// The returned error is only non-nil when id is not pending.
func (t *Tracker) Run(ctx context.Context, id string) (capture.Job, error) {
	t.mu.RLock()
	p, ok := t.pending[id]
	t.mu.RUnlock()
	if !ok {
		return capture.Job{}, engine.NewError(engine.CodeNotFound, fmt.Sprintf("no pending job %s", id), nil)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.JobTimeout)
	defer cancel()

	res, err := t.execute(ctx, id, p.cfg)
	job, first := t.finalize(id, res, err)
	if first {
		t.notify(job)
		t.wg.Done()
	}
	return job, nil
}

// Subscribe registers l for finalized jobs. Listeners run on the job's
// goroutine after the record is in history and must not block.
func (t *Tracker) Subscribe(l Listener) {
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

func (t *Tracker) notify(job capture.Job) {
	t.mu.RLock()
	ls := append([]Listener(nil), t.listeners...)
	t.mu.RUnlock()
	for _, l := range ls {
		l.JobFinalized(job)
	}
}

func (t *Tracker) execute(ctx context.Context, id string, cfg capture.EffectiveConfig) (res *capture.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("capture job panicked", "id", id, "panic", r, "stack", string(debug.Stack()))
			res, err = nil, engine.NewError(engine.CodeCaptureFailure, fmt.Sprintf("internal error: %v", r), nil)
		}
	}()

	data, meta, err := t.captureWithSession(ctx, id, cfg)
	if err != nil {
		return nil, err
	}

	art, err := t.artifacts.Save(snapshot.BaseName(cfg.CustomName, cfg.URL, t.now()), cfg.Format, data)
	if err != nil {
		return nil, err
	}
	return &capture.Result{
		Filename: art.Filename,
		FilePath: art.Path,
		FileSize: art.Size,
		Format:   string(cfg.Format),
		Metadata: meta,
	}, nil
}

// captureWithSession owns the session for one capture and always closes it
// before returning.
func (t *Tracker) captureWithSession(ctx context.Context, id string, cfg capture.EffectiveConfig) ([]byte, capture.Metadata, error) {
	sess, err := t.factory.Create(ctx, cfg.Browser, cfg.Options())
	if err != nil {
		return nil, capture.Metadata{}, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Debug("session close failed", "id", id, "browser", cfg.Browser, "error", err)
		}
	}()
	return t.executor.Capture(ctx, sess, cfg)
}

// finalize moves id out of pending exactly once and records it in history.
// The bool is false when id had already been finalized.
func (t *Tracker) finalize(id string, res *capture.Result, runErr error) (capture.Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[id]
	if !ok {
		slog.Warn("capture job already finalized, ignoring", "id", id)
		prev, _ := t.history.Get(id)
		return prev, false
	}
	delete(t.pending, id)

	job := p.job
	done := t.now().UTC()
	job.CompletedAt = &done
	if runErr != nil {
		job.Status = capture.StatusFailed
		job.Error = capture.FailureMessage(runErr)
		job.ErrorCode = engine.CodeOf(runErr)
		if job.ErrorCode == "" {
			job.ErrorCode = engine.CodeCaptureFailure
		}
		slog.Warn("capture job failed", "id", id, "url", job.URL, "code", job.ErrorCode, "error", runErr)
	} else {
		job.Status = capture.StatusCompleted
		job.Result = res
		slog.Info("capture job completed", "id", id, "url", job.URL, "file", res.Filename, "size_bytes", res.FileSize)
	}

	if err := t.history.Append(job); err != nil {
		slog.Error("history append failed", "id", id, "error", err)
	}
	return job, true
}

// Status returns the pending record, else the history record.
func (t *Tracker) Status(id string) (capture.Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if p, ok := t.pending[id]; ok {
		return p.job, nil
	}
	job, err := t.history.Get(id)
	if err != nil {
		return capture.Job{}, engine.NewError(engine.CodeNotFound, fmt.Sprintf("job not found: %s", id), nil)
	}
	return job, nil
}

// CaptureSync submits and runs req on the calling goroutine. A failed job is
// returned together with its coded error.
func (t *Tracker) CaptureSync(ctx context.Context, req capture.Request) (capture.Job, error) {
	job, err := t.Submit(req)
	if err != nil {
		return capture.Job{}, err
	}
	job, err = t.Run(ctx, job.ID)
	if err != nil {
		return job, err
	}
	if job.Status == capture.StatusFailed {
		return job, &engine.CodedError{Code: job.ErrorCode, Message: job.Error}
	}
	return job, nil
}

// CaptureAsync submits req and schedules it on the worker pool. The pending
// record is returned at once.
func (t *Tracker) CaptureAsync(req capture.Request) (capture.Job, error) {
	job, err := t.Submit(req)
	if err != nil {
		return capture.Job{}, err
	}
	go func() {
		t.sem <- struct{}{}
		defer func() { <-t.sem }()
		if _, err := t.Run(context.Background(), job.ID); err != nil {
			slog.Error("async capture job lost", "id", job.ID, "error", err)
		}
	}()
	return job, nil
}

// Wait stops accepting new jobs and blocks until every submitted job, sync
// or async, has been finalized and its listeners told, or ctx ends.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	t.draining = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PendingCount returns the number of jobs not yet finalized.
func (t *Tracker) PendingCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}
