package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	scheduler "github.com/ark-network/markstr/internal/infrastructure/scheduler/gocron"
	"github.com/stretchr/testify/require"
)

func TestScheduleTask(t *testing.T) {
	svc := scheduler.NewScheduler()
	svc.Start()
	defer svc.Stop()

	t.Run("immediate", func(t *testing.T) {
		var count atomic.Int32
		err := svc.ScheduleTask(time.Hour, true, func() { count.Add(1) })
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return count.Load() == 1
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("wait for schedule", func(t *testing.T) {
		var count atomic.Int32
		err := svc.ScheduleTask(time.Hour, false, func() { count.Add(1) })
		require.NoError(t, err)

		time.Sleep(500 * time.Millisecond)
		require.Zero(t, count.Load())
	})

	t.Run("invalid", func(t *testing.T) {
		err := svc.ScheduleTask(time.Millisecond, true, func() {})
		require.Error(t, err)

		err = svc.ScheduleTask(time.Minute, true, nil)
		require.Error(t, err)
	})
}
