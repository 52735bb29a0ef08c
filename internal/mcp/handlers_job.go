package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/HyphaGroup/gevulot/internal/audit"
	"github.com/HyphaGroup/gevulot/internal/bridge"
	"github.com/HyphaGroup/gevulot/internal/validation"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// JobParams is the unified params struct for the job tool
type JobParams struct {
	Action string `json:"action" description:"Required: status, result, or cancel"`
	JobID  string `json:"job_id,omitempty" description:"Job identifier returned at submission"`
}

var jobActions = []string{"status", "result", "cancel"}

// handleJob is the unified handler for the job tool
func (s *Server) handleJob(ctx context.Context, request *mcp_sdk.CallToolRequest, params JobParams) (*mcp_sdk.CallToolResult, any, error) {
	if params.Action == "" {
		return nil, nil, missingActionError("job", jobActions)
	}

	if params.JobID == "" {
		return nil, nil, fmt.Errorf("job_id is required")
	}
	if err := validation.ValidateJobID(params.JobID); err != nil {
		return nil, nil, err
	}

	switch params.Action {
	case "status":
		return s.jobStatus(ctx, params)
	case "result":
		return s.jobResult(ctx, params)
	case "cancel":
		return s.jobCancel(ctx, params)
	default:
		return nil, nil, actionError("job", params.Action, jobActions)
	}
}

func (s *Server) jobStatus(ctx context.Context, params JobParams) (*mcp_sdk.CallToolResult, any, error) {
	job, err := s.orch.Status(ctx, params.JobID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get job status: %w", err)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Job:       %s\n", job.ID))
	output.WriteString(fmt.Sprintf("Status:    %s\n", job.Status))
	output.WriteString(fmt.Sprintf("Progress:  %d%%\n", job.Progress))
	output.WriteString(fmt.Sprintf("Created:   %s\n", job.CreatedAt.Format("2006-01-02 15:04:05")))
	if job.StartedAt != nil {
		output.WriteString(fmt.Sprintf("Started:   %s\n", job.StartedAt.Format("2006-01-02 15:04:05")))
	}
	if job.CompletedAt != nil {
		output.WriteString(fmt.Sprintf("Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05")))
	}
	if job.Error != "" {
		output.WriteString(fmt.Sprintf("Error:     %s\n", job.Error))
	}

	return NewTextResult(output.String()), job, nil
}

func (s *Server) jobResult(ctx context.Context, params JobParams) (*mcp_sdk.CallToolResult, any, error) {
	result, err := s.orch.Result(ctx, params.JobID)
	if err != nil {
		// The orchestrator expires finished jobs; the reconciler keeps a
		// copy of the result, so serve that when the job is gone
		if bridge.IsHTTPStatus(err, http.StatusNotFound) && s.history != nil {
			if rec, herr := s.history.GetJob(params.JobID); herr == nil && rec.Result != "" {
				var output strings.Builder
				output.WriteString(fmt.Sprintf("Job:     %s\n", rec.ID))
				output.WriteString(fmt.Sprintf("Status:  %s (served from local history)\n", rec.Status))
				output.WriteString("\n")
				output.WriteString(rec.Result)
				return NewTextResult(output.String()), rec, nil
			}
		}
		return nil, nil, fmt.Errorf("failed to get job result: %w", err)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Job:     %s\n", result.JobID))
	output.WriteString(fmt.Sprintf("Status:  %s\n", result.Status))
	output.WriteString("\n")
	output.WriteString(result.Text())

	return NewTextResult(output.String()), result, nil
}

func (s *Server) jobCancel(ctx context.Context, params JobParams) (*mcp_sdk.CallToolResult, any, error) {
	if err := s.orch.Cancel(ctx, params.JobID); err != nil {
		audit.LogFailure(ctx, audit.OpJobCancel, "", params.JobID, err)
		return nil, nil, fmt.Errorf("failed to cancel job: %w", err)
	}
	audit.LogSuccess(ctx, audit.OpJobCancel, "", params.JobID)

	return NewTextResult(fmt.Sprintf("✅ Job %s cancelled", params.JobID)), nil, nil
}
