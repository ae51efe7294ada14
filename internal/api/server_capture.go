package api

import (
	"context"
	"mime"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/pagecapture/internal/capture"
	"github.com/dgnsrekt/pagecapture/internal/controller"
)

type captureInput struct {
	Body capture.Request
}

type jobOutput struct {
	Body capture.Job
}

func registerCaptureHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "capture-sync", Method: http.MethodPost, Path: "/api/screenshot", Summary: "Capture a page and wait for the result", Tags: []string{"Screenshots"}},
		func(ctx context.Context, input *captureInput) (*jobOutput, error) {
			job, err := svc.CaptureSync(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &jobOutput{Body: job}, nil
		})

	type asyncOutput struct {
		Body struct {
			ID          string         `json:"id"`
			Status      capture.Status `json:"status"`
			Message     string         `json:"message"`
			CheckStatus string         `json:"check_status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "capture-async", Method: http.MethodPost, Path: "/api/screenshot/async", Summary: "Queue a capture and return its id", Tags: []string{"Screenshots"}, DefaultStatus: http.StatusAccepted},
		func(ctx context.Context, input *captureInput) (*asyncOutput, error) {
			job, err := svc.CaptureAsync(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &asyncOutput{}
			out.Body.ID = job.ID
			out.Body.Status = job.Status
			out.Body.Message = "Screenshot job queued"
			out.Body.CheckStatus = "/api/screenshot/" + job.ID + "/status"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "capture-status", Method: http.MethodGet, Path: "/api/screenshot/{id}/status", Summary: "Get capture job status", Tags: []string{"Screenshots"}},
		func(ctx context.Context, input *jobIDInput) (*jobOutput, error) {
			job, err := svc.Status(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &jobOutput{Body: job}, nil
		})

	type downloadOutput struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "capture-download",
		Method:      http.MethodGet,
		Path:        "/api/screenshot/{id}/download",
		Summary:     "Download the captured image",
		Tags:        []string{"Screenshots"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Image file",
				Content: map[string]*huma.MediaType{
					"image/png":  {},
					"image/jpeg": {},
					"image/webp": {},
				},
			},
		},
	},
		func(ctx context.Context, input *jobIDInput) (*downloadOutput, error) {
			dl, err := svc.ReadResult(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &downloadOutput{
				ContentType:        dl.ContentType,
				ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}),
				Body:               dl.Data,
			}, nil
		})

	type previewOutput struct {
		Body controller.Preview
	}
	huma.Register(api, huma.Operation{OperationID: "capture-preview", Method: http.MethodGet, Path: "/api/screenshot/{id}/preview", Summary: "Get the captured image as a data URI", Tags: []string{"Screenshots"}},
		func(ctx context.Context, input *jobIDInput) (*previewOutput, error) {
			p, err := svc.Preview(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &previewOutput{Body: p}, nil
		})
}
