package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/canvass/internal/core/domain"
)

// DefaultTaskQueue is the queue enumeration workers poll.
const DefaultTaskQueue = "canvass-enumeration"

// EnumerationInput is the input for the enumeration workflow.
type EnumerationInput struct {
	RunID   string
	Polygon domain.Polygon
	// Step is the step size in force when the job was queued.
	Step domain.StepSize
}

// EnumerationSummary is what the workflow returns. The address list itself
// goes to the export file and the address store, not the workflow history.
type EnumerationSummary struct {
	RunID        string
	Addresses    int
	ReverseCalls uint64
	Samples      int
	Inside       int
	Step         domain.StepSize
	File         string
	StoreError   string
}

// EnumerationWorkflow runs one region enumeration as a background job.
// Provider calls are billed, so a failed scan is not retried.
func EnumerationWorkflow(ctx workflow.Context, input EnumerationInput) (*EnumerationSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting enumeration workflow", "runID", input.RunID, "vertices", len(input.Polygon), "step", float64(input.Step))

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var a *EnumerationActivities
	var summary EnumerationSummary
	if err := workflow.ExecuteActivity(ctx, a.EnumerateRegion, input).Get(ctx, &summary); err != nil {
		logger.Warn("enumeration failed", "runID", input.RunID, "error", err)
		return nil, err
	}

	logger.Info("Enumeration finished", "runID", input.RunID, "addresses", summary.Addresses, "file", summary.File)
	return &summary, nil
}
