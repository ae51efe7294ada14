package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/dgnsrekt/pagecapture/internal/capture"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Header:     make(http.Header),
	}
}

func TestSendPostsMessage(t *testing.T) {
	ctx := context.Background()

	var receivedMethod string
	var receivedPath string
	var receivedBody string
	var receivedContentType string

	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			receivedMethod = r.Method
			receivedPath = r.URL.Path
			receivedContentType = r.Header.Get("Content-Type")
			rawBody, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			receivedBody = string(rawBody)
			return okResponse(), nil
		}),
	}

	if err := Send(ctx, client, "http://example.com/captures", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got, want := receivedMethod, http.MethodPost; got != want {
		t.Fatalf("method = %q; want %q", got, want)
	}
	if got, want := receivedPath, "/captures"; got != want {
		t.Fatalf("path = %q; want %q", got, want)
	}
	if got, want := receivedContentType, "text/plain"; got != want {
		t.Fatalf("content-type = %q; want %q", got, want)
	}
	if got, want := receivedBody, "hello"; got != want {
		t.Fatalf("body = %q; want %q", got, want)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	ctx := context.Background()

	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(ctx, client, "http://example.com/captures", "hello")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "ntfy notification failed") {
		t.Fatalf("error = %q; want to contain %q", err, "ntfy notification failed")
	}
}

func TestSendDisallowsMissingEndpoint(t *testing.T) {
	ctx := context.Background()
	err := Send(ctx, http.DefaultClient, "", "hello")
	if err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestMessage(t *testing.T) {
	done := capture.Job{ID: "a", Status: capture.StatusCompleted, URL: "https://example.com", Result: &capture.Result{Filename: "example.com.png", FileSize: 42}}
	if got := Message(done); !strings.Contains(got, "completed") || !strings.Contains(got, "example.com.png") {
		t.Fatalf("Message(completed) = %q", got)
	}
	failed := capture.Job{ID: "b", Status: capture.StatusFailed, URL: "https://x.invalid", Error: "NAVIGATION: dns"}
	if got := Message(failed); !strings.Contains(got, "failed") || !strings.Contains(got, "NAVIGATION: dns") {
		t.Fatalf("Message(failed) = %q", got)
	}
}

func TestWebhookJobFinalized(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	w := NewWebhook("http://example.com/captures")
	w.Client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			raw, _ := io.ReadAll(r.Body)
			mu.Lock()
			sent = append(sent, string(raw))
			mu.Unlock()
			return okResponse(), nil
		}),
	}

	w.JobFinalized(capture.Job{ID: "a", Status: capture.StatusFailed, URL: "https://x.invalid", Error: "boom"})
	w.Wait()

	if len(sent) != 1 || !strings.Contains(sent[0], "Screenshot a failed") {
		t.Fatalf("sent = %q", sent)
	}
}
