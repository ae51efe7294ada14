package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/controller"
	"github.com/dgnsrekt/pagecapture/internal/engine"
	"github.com/dgnsrekt/pagecapture/internal/history"
	"github.com/dgnsrekt/pagecapture/internal/settings"
)

const apiVersion = "2.0.0"

type Service interface {
	CaptureSync(ctx context.Context, req capture.Request) (capture.Job, error)
	CaptureAsync(ctx context.Context, req capture.Request) (capture.Job, error)
	Status(ctx context.Context, id string) (capture.Job, error)
	ReadResult(ctx context.Context, id string) (controller.Download, error)
	Preview(ctx context.Context, id string) (controller.Preview, error)
	ListHistory(ctx context.Context, status string, offset, limit int) (history.Page, error)
	DeleteHistory(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) int
	GetSettings(ctx context.Context) settings.GlobalSettings
	UpdateSettings(ctx context.Context, p settings.Patch) (settings.GlobalSettings, error)
	ResetSettings(ctx context.Context) settings.GlobalSettings
	Browsers(ctx context.Context) []controller.BrowserInfo
	Stats(ctx context.Context) controller.Stats
	UserAgents() []controller.UserAgentPreset
	ViewportPresets() []controller.ViewportPreset
}

type jobIDInput struct {
	ID string `path:"id" doc:"Capture job id"`
}

func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Page Capture API", apiVersion)
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	registerCaptureHandlers(api, svc)
	registerHistoryHandlers(api, svc)
	registerSettingsHandlers(api, svc)
	registerMiscHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *engine.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case engine.CodeValidation, engine.CodeUnsupportedBrowser, engine.CodeNotReady:
			return huma.Error400BadRequest(coded.Message)
		case engine.CodeNotFound:
			return huma.Error404NotFound(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
