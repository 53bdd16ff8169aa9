package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/canvass/internal/core/usecases"
	"github.com/samirrijal/canvass/internal/export"
)

// EnumerationActivities holds the activity implementations for the enumeration workflow.
type EnumerationActivities struct {
	Regions   *usecases.RegionService
	ExportDir string
}

// EnumerateRegion scans the polygon at the input's step under the workflow's
// run ID and writes the addresses to <runID>.txt in the export directory.
// Inputs without a step use the worker's current one.
func (a *EnumerationActivities) EnumerateRegion(ctx context.Context, input EnumerationInput) (*EnumerationSummary, error) {
	step := input.Step
	if step == 0 {
		step = a.Regions.StepSize()
	}
	result, err := a.Regions.EnumerateRegionWithStep(ctx, input.RunID, input.Polygon, step)
	if err != nil {
		return nil, fmt.Errorf("enumerate region %s: %w", input.RunID, err)
	}

	summary := &EnumerationSummary{
		RunID:        result.RunID,
		Addresses:    len(result.Addresses),
		ReverseCalls: result.ReverseCalls,
		Samples:      result.Samples,
		Inside:       result.Inside,
		Step:         result.Step,
		StoreError:   result.StoreError,
	}
	if a.ExportDir == "" {
		return summary, nil
	}

	name := input.RunID + ".txt"
	if _, err := export.WriteTextFile(a.ExportDir, name, result.Addresses); err != nil {
		// the file is a convenience copy of the result
		activity.GetLogger(ctx).Warn("write export file", "runID", input.RunID, "error", err)
		return summary, nil
	}
	summary.File = name
	return summary, nil
}
