package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/metrics"
	"github.com/windoze95/manas-api/internal/models"
	"github.com/windoze95/manas-api/internal/repository"
	"github.com/windoze95/manas-api/internal/service"
	"github.com/windoze95/manas-api/internal/ws"
	"go.uber.org/zap"
)

// Notifier delivers a wire message to a user's open connections. It reports
// false when the user has none.
type Notifier interface {
	SendToUser(userID string, message []byte) bool
}

// Scheduler runs the periodic task reminder sweep.
type Scheduler struct {
	cron     *cron.Cron
	tasks    repository.TaskRepo
	notifier Notifier
	window   time.Duration
	now      func() time.Time
}

// New creates a scheduler that sweeps on the given cron schedule and reminds
// about pending tasks due within window.
func New(schedule string, window time.Duration, tasks repository.TaskRepo, notifier Notifier) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		tasks:    tasks,
		notifier: notifier,
		window:   window,
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep pushes a task_reminder for every pending task due within the window
// that has not been reminded yet. Only delivered reminders are marked, so a
// user who is offline gets them on the next sweep after reconnecting.
func (s *Scheduler) Sweep() int {
	log := logger.Get()
	now := s.now()

	due, err := s.tasks.ListDueUnreminded(now.Add(s.window))
	if err != nil {
		log.Error("failed to list due tasks", zap.Error(err))
		return 0
	}

	var delivered []uint
	for i := range due {
		task := &due[i]
		msg, err := ws.EncodeMessage(ws.MsgTypeTaskReminder, ws.TaskReminderPayload{
			Task:    service.ToTaskResponse(task),
			Message: reminderText(task, now),
		})
		if err != nil {
			log.Error("failed to encode reminder", zap.Uint("task_id", task.ID), zap.Error(err))
			continue
		}
		if s.notifier.SendToUser(task.UserID, msg) {
			delivered = append(delivered, task.ID)
		}
	}

	if len(delivered) == 0 {
		return 0
	}
	if err := s.tasks.MarkReminded(delivered, now); err != nil {
		log.Error("failed to mark tasks reminded", zap.Error(err))
		return 0
	}
	metrics.RemindersSent.Add(float64(len(delivered)))
	log.Info("task reminders sent", zap.Int("count", len(delivered)))
	return len(delivered)
}

func reminderText(task *models.Task, now time.Time) string {
	until := task.DueDate.Sub(now)
	switch {
	case until <= 0:
		return fmt.Sprintf("Reminder: '%s' is overdue.", task.Title)
	case until < time.Minute:
		return fmt.Sprintf("Reminder: '%s' is due now.", task.Title)
	case until < time.Hour:
		return fmt.Sprintf("Reminder: '%s' is due in %d minutes.", task.Title, int(until.Round(time.Minute).Minutes()))
	default:
		hours := int(until.Round(time.Hour).Hours())
		if hours == 1 {
			return fmt.Sprintf("Reminder: '%s' is due in an hour.", task.Title)
		}
		return fmt.Sprintf("Reminder: '%s' is due in %d hours.", task.Title, hours)
	}
}
