package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/pagecapture/internal/controller"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type rootOutput struct {
		Body struct {
			Message   string            `json:"message"`
			Version   string            `json:"version"`
			Docs      string            `json:"docs"`
			Endpoints map[string]string `json:"endpoints"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "root", Method: http.MethodGet, Path: "/", Summary: "Service index", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*rootOutput, error) {
			out := &rootOutput{}
			out.Body.Message = "Page Capture API"
			out.Body.Version = apiVersion
			out.Body.Docs = "/docs"
			out.Body.Endpoints = map[string]string{
				"screenshot": "/api/screenshot",
				"settings":   "/api/settings",
				"history":    "/api/history",
				"browsers":   "/api/browsers",
			}
			return out, nil
		})

	type healthOutput struct {
		Body struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "healthy"
			out.Body.Timestamp = time.Now().UTC()
			return out, nil
		})

	type browsersOutput struct {
		Body struct {
			Browsers []controller.BrowserInfo `json:"browsers"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-browsers", Method: http.MethodGet, Path: "/api/browsers", Summary: "Probe which browsers can be launched", Tags: []string{"Browsers"}},
		func(ctx context.Context, input *struct{}) (*browsersOutput, error) {
			out := &browsersOutput{}
			out.Body.Browsers = svc.Browsers(ctx)
			return out, nil
		})

	type statsOutput struct {
		Body controller.Stats
	}
	huma.Register(api, huma.Operation{OperationID: "stats", Method: http.MethodGet, Path: "/api/stats", Summary: "Capture statistics", Tags: []string{"History"}},
		func(ctx context.Context, input *struct{}) (*statsOutput, error) {
			return &statsOutput{Body: svc.Stats(ctx)}, nil
		})

	type userAgentsOutput struct {
		Body struct {
			UserAgents []controller.UserAgentPreset `json:"user_agents"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "user-agents", Method: http.MethodGet, Path: "/api/user-agents", Summary: "Common user-agent strings", Tags: []string{"Presets"}},
		func(ctx context.Context, input *struct{}) (*userAgentsOutput, error) {
			out := &userAgentsOutput{}
			out.Body.UserAgents = svc.UserAgents()
			return out, nil
		})

	type viewportPresetsOutput struct {
		Body struct {
			Presets []controller.ViewportPreset `json:"presets"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "viewport-presets", Method: http.MethodGet, Path: "/api/viewport-presets", Summary: "Common window sizes", Tags: []string{"Presets"}},
		func(ctx context.Context, input *struct{}) (*viewportPresetsOutput, error) {
			out := &viewportPresetsOutput{}
			out.Body.Presets = svc.ViewportPresets()
			return out, nil
		})
}
