package scheduler

import (
	"fmt"
	"time"

	"github.com/ark-network/markstr/internal/core/ports"
	"github.com/go-co-op/gocron"
)

type service struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() ports.SchedulerService {
	svc := gocron.NewScheduler(time.UTC)
	return &service{svc}
}

func (s *service) Start() {
	s.scheduler.StartAsync()
}

func (s *service) Stop() {
	s.scheduler.Stop()
}

func (s *service) ScheduleTask(interval time.Duration, immediate bool, task func()) error {
	if interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", interval)
	}
	if task == nil {
		return fmt.Errorf("missing task")
	}

	job := s.scheduler.Every(interval).SingletonMode()
	if !immediate {
		job = job.WaitForSchedule()
	}
	_, err := job.Do(task)
	return err
}
