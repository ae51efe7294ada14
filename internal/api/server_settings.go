package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/pagecapture/internal/settings"
)

type settingsOutput struct {
	Body struct {
		Settings settings.GlobalSettings `json:"settings"`
		Message  string                  `json:"message,omitempty"`
	}
}

func registerSettingsHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-settings", Method: http.MethodGet, Path: "/api/settings", Summary: "Get global capture settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*settingsOutput, error) {
			out := &settingsOutput{}
			out.Body.Settings = svc.GetSettings(ctx)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "update-settings", Method: http.MethodPost, Path: "/api/settings", Summary: "Update global capture settings", Description: "Only the fields present in the body change. An invalid result leaves the settings untouched.", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct {
			Body settings.Patch
		}) (*settingsOutput, error) {
			g, err := svc.UpdateSettings(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &settingsOutput{}
			out.Body.Settings = g
			out.Body.Message = "Settings updated"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reset-settings", Method: http.MethodPost, Path: "/api/settings/reset", Summary: "Reset global capture settings to defaults", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*settingsOutput, error) {
			out := &settingsOutput{}
			out.Body.Settings = svc.ResetSettings(ctx)
			out.Body.Message = "Settings reset to defaults"
			return out, nil
		})
}
