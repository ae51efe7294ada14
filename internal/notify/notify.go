package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/pagecapture/internal/capture"
)

const defaultTimeout = 10 * time.Second

// Webhook posts a one-line text message for every finalized capture job to an
// ntfy-style endpoint.
type Webhook struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration

	wg sync.WaitGroup
}

func NewWebhook(endpoint string) *Webhook {
	return &Webhook{Endpoint: endpoint, Timeout: defaultTimeout}
}

// JobFinalized sends the message in the background.
func (w *Webhook) JobFinalized(job capture.Job) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		timeout := w.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := Send(ctx, w.Client, w.Endpoint, Message(job)); err != nil {
			slog.Warn("job notification failed", "id", job.ID, "endpoint", w.Endpoint, "error", err)
		}
	}()
}

// Wait blocks until every queued notification has been attempted.
func (w *Webhook) Wait() {
	w.wg.Wait()
}

// Message renders the notification text for job.
func Message(job capture.Job) string {
	if job.Status == capture.StatusCompleted && job.Result != nil {
		return fmt.Sprintf("Screenshot %s completed: %s -> %s (%d bytes)", job.ID, job.URL, job.Result.Filename, job.Result.FileSize)
	}
	return fmt.Sprintf("Screenshot %s failed: %s: %s", job.ID, job.URL, job.Error)
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("notification endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("notification body close failed", "error", err)
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		slog.Debug("notification body drain failed", "error", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
