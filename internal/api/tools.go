// ABOUTME: Stateless formatting endpoints: member ID masking and zip code splitting.
package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/scarson/board-ops/internal/member"
)

type maskIDInput struct {
	ID string `query:"id" required:"true" maxLength:"255" doc:"Member login ID to mask"`
}

type maskIDOutput struct {
	Body struct {
		Masked string `json:"masked"`
	}
}

type splitZipInput struct {
	Code string `query:"code" required:"true" maxLength:"16" doc:"Postal code, e.g. 123456"`
}

type splitZipOutput struct {
	Body struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}
}

func registerToolRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "mask-id",
		Method:      http.MethodGet,
		Path:        "/tools/mask-id",
		Tags:        []string{"tools"},
		Summary:     "Mask the middle of a member ID",
	}, func(_ context.Context, input *maskIDInput) (*maskIDOutput, error) {
		out := &maskIDOutput{}
		out.Body.Masked = member.MaskID(input.ID)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "split-zip",
		Method:      http.MethodGet,
		Path:        "/tools/split-zip",
		Tags:        []string{"tools"},
		Summary:     "Split a postal code into its 3+3 halves",
	}, func(_ context.Context, input *splitZipInput) (*splitZipOutput, error) {
		out := &splitZipOutput{}
		out.Body.Front, out.Body.Back = member.SplitZip(input.Code)
		return out, nil
	})
}
