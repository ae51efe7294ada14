package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/controller"
	"github.com/dgnsrekt/pagecapture/internal/history"
	"github.com/dgnsrekt/pagecapture/internal/settings"
)

type stubService struct {
	job      capture.Job
	err      error
	download controller.Download
	page     history.Page
	settings settings.GlobalSettings
	patch    settings.Patch
	listArgs []any
}

func (s *stubService) CaptureSync(ctx context.Context, req capture.Request) (capture.Job, error) {
	return s.job, s.err
}
func (s *stubService) CaptureAsync(ctx context.Context, req capture.Request) (capture.Job, error) {
	return s.job, s.err
}
func (s *stubService) Status(ctx context.Context, id string) (capture.Job, error) { return s.job, s.err }
func (s *stubService) ReadResult(ctx context.Context, id string) (controller.Download, error) {
	return s.download, s.err
}
func (s *stubService) Preview(ctx context.Context, id string) (controller.Preview, error) {
	return controller.Preview{ID: id, Image: "data:image/png;base64,AA==", Filename: "x.png"}, s.err
}
func (s *stubService) ListHistory(ctx context.Context, status string, offset, limit int) (history.Page, error) {
	s.listArgs = []any{status, offset, limit}
	return s.page, s.err
}
func (s *stubService) DeleteHistory(ctx context.Context, id string) error { return s.err }
func (s *stubService) ClearHistory(ctx context.Context) int               { return 3 }
func (s *stubService) GetSettings(ctx context.Context) settings.GlobalSettings {
	return s.settings
}
func (s *stubService) UpdateSettings(ctx context.Context, p settings.Patch) (settings.GlobalSettings, error) {
	s.patch = p
	return s.settings.Apply(p), s.err
}
func (s *stubService) ResetSettings(ctx context.Context) settings.GlobalSettings {
	return settings.Defaults()
}
func (s *stubService) Browsers(ctx context.Context) []controller.BrowserInfo {
	return []controller.BrowserInfo{{Name: "chrome", Version: "120", Available: true}}
}
func (s *stubService) Stats(ctx context.Context) controller.Stats { return controller.Stats{} }
func (s *stubService) UserAgents() []controller.UserAgentPreset {
	return (&controller.Service{}).UserAgents()
}
func (s *stubService) ViewportPresets() []controller.ViewportPreset {
	return (&controller.Service{}).ViewportPresets()
}

func TestDocsDarkMode(t *testing.T) {
	h := NewServer(&stubService{})
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
}
