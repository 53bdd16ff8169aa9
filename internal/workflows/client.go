package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/canvass/internal/core/domain"
)

type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CheckHealth(ctx context.Context, request *client.CheckHealthRequest) (*client.CheckHealthResponse, error)
}

// JobClient starts enumeration workflows on Temporal.
type JobClient struct {
	temporal  workflowStarter
	taskQueue string
}

// NewJobClient wraps a Temporal client. An empty taskQueue uses DefaultTaskQueue.
func NewJobClient(c client.Client, taskQueue string) *JobClient {
	return newJobClient(c, taskQueue)
}

func newJobClient(s workflowStarter, taskQueue string) *JobClient {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &JobClient{temporal: s, taskQueue: taskQueue}
}

// WorkflowID is the Temporal workflow ID used for a run.
func WorkflowID(runID string) string {
	return "enumeration-" + runID
}

// StartEnumeration starts the workflow at the given step and returns once
// Temporal accepted it.
func (j *JobClient) StartEnumeration(ctx context.Context, runID string, polygon domain.Polygon, step domain.StepSize) error {
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(runID),
		TaskQueue: j.taskQueue,
	}
	if _, err := j.temporal.ExecuteWorkflow(ctx, opts, EnumerationWorkflow, EnumerationInput{RunID: runID, Polygon: polygon, Step: step}); err != nil {
		return fmt.Errorf("start enumeration workflow: %w", err)
	}
	return nil
}

// Ping checks that the Temporal frontend is reachable.
func (j *JobClient) Ping(ctx context.Context) error {
	if _, err := j.temporal.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		return fmt.Errorf("temporal health: %w", err)
	}
	return nil
}
