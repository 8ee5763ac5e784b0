package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/returnsdesk/jobs"
)

func TestBuildTask(t *testing.T) {
	task, err := BuildTask(jobs.TaskAuditPrune, 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskAuditPrune, task.Type())

	_, err = BuildTask(jobs.TaskAuditPrune, 0)
	require.Error(t, err)

	_, err = BuildTask(jobs.TaskInventorySync, time.Hour)
	require.ErrorContains(t, err, "unsupported job")
}

func TestNilCLIReportsMisconfiguration(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), jobs.TaskAuditPrune, time.Hour)
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
	_, err = c.ListArchived(context.Background(), 5)
	require.Error(t, err)

	_, err = NewJobsCLI("")
	require.Error(t, err)
}

func TestQueueStatsString(t *testing.T) {
	stats := QueueStats{Queue: "default", Pending: 2, Archived: 1}
	require.Equal(t, "queue=default pending=2 active=0 scheduled=0 retry=0 archived=1", stats.String())
}
