package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/solarquote/solarquote/jobs"
)

type recordingClient struct {
	tasks []*asynq.Task
}

func (c *recordingClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (c *recordingClient) Close() error { return nil }

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func (s stubInspector) ListScheduledTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return []*asynq.TaskInfo{{ID: "s-1"}}, s.err
}

func (s stubInspector) Close() error { return nil }

func TestTriggerEnqueuesMaintenanceJobs(t *testing.T) {
	client := &recordingClient{}
	c := &JobsCLI{client: client}

	info, err := c.Trigger(context.Background(), jobs.TaskTypeValidityReport)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskTypeValidityReport, info.Type)

	_, err = c.Trigger(context.Background(), jobs.TaskTypeIdempotencyCleanup)
	require.NoError(t, err)
	require.Len(t, client.tasks, 2)
	require.Equal(t, jobs.TaskTypeIdempotencyCleanup, client.tasks[1].Type())
}

func TestTriggerRejectsUnknownJob(t *testing.T) {
	c := &JobsCLI{client: &recordingClient{}}
	_, err := c.Trigger(context.Background(), jobs.TaskTypeSendEmail)
	require.Error(t, err)
}

func TestInspectQueue(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{info: &asynq.QueueInfo{Pending: 3, Active: 1, Retry: 2}}}
	stats, err := c.InspectQueue(context.Background())
	require.NoError(t, err)
	require.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 3, Active: 1, Retry: 2}, stats)

	c = &JobsCLI{inspector: stubInspector{err: errors.New("redis down")}}
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)

	var empty *JobsCLI
	_, err = empty.InspectQueue(context.Background())
	require.Error(t, err)
}
