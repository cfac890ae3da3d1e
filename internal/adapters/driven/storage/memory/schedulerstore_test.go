package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

func TestSchedulerStore_Tasks(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()

	task, err := store.GetTask(ctx, domain.TaskIDIndexRefresh)
	require.NoError(t, err)
	assert.Nil(t, task)

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDIndexRefresh, Schedule: "@every 5m", Enabled: true}))
	task, err = store.GetTask(ctx, domain.TaskIDIndexRefresh)
	require.NoError(t, err)
	assert.Equal(t, "@every 5m", task.Schedule)

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, store.DeleteTask(ctx, domain.TaskIDIndexRefresh))
	tasks, err = store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.ErrorIs(t, store.SaveTask(ctx, nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_History(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
			TaskID:         "t",
			StartedAt:      t0.Add(time.Duration(i) * time.Minute),
			ItemsProcessed: i,
		}))
	}

	history, err := store.GetTaskHistory(ctx, "t", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, 3, history[1].ItemsProcessed)

	require.NoError(t, store.PruneHistory(ctx, 3))
	history, err = store.GetTaskHistory(ctx, "t", 10)
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Equal(t, 2, history[2].ItemsProcessed)
}
