package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/pagecapture/internal/history"
)

func registerHistoryHandlers(api huma.API, svc Service) {
	type listHistoryInput struct {
		Status string `query:"status" doc:"Filter by pending, completed or failed"`
		Offset int    `query:"offset" default:"0"`
		Limit  int    `query:"limit" default:"50" doc:"Page size, 1-100"`
	}
	type listHistoryOutput struct {
		Body history.Page
	}
	huma.Register(api, huma.Operation{OperationID: "list-history", Method: http.MethodGet, Path: "/api/history", Summary: "List finished captures, newest first", Tags: []string{"History"}},
		func(ctx context.Context, input *listHistoryInput) (*listHistoryOutput, error) {
			page, err := svc.ListHistory(ctx, input.Status, input.Offset, input.Limit)
			if err != nil {
				return nil, mapErr(err)
			}
			return &listHistoryOutput{Body: page}, nil
		})

	type deleteHistoryOutput struct {
		Body struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-history", Method: http.MethodDelete, Path: "/api/history/{id}", Summary: "Delete a history entry and its file", Tags: []string{"History"}},
		func(ctx context.Context, input *jobIDInput) (*deleteHistoryOutput, error) {
			if err := svc.DeleteHistory(ctx, input.ID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteHistoryOutput{}
			out.Body.ID = input.ID
			out.Body.Message = "Screenshot deleted"
			return out, nil
		})

	type clearHistoryOutput struct {
		Body struct {
			Removed int    `json:"removed"`
			Message string `json:"message"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "clear-history", Method: http.MethodDelete, Path: "/api/history", Summary: "Delete every history entry and file", Tags: []string{"History"}},
		func(ctx context.Context, input *struct{}) (*clearHistoryOutput, error) {
			out := &clearHistoryOutput{}
			out.Body.Removed = svc.ClearHistory(ctx)
			out.Body.Message = "History cleared"
			return out, nil
		})
}
