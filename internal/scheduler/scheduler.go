// Package scheduler triggers cadence reminders: at configured cron times it
// runs a catalog command for each subscribed chat, nudging the user to fill
// in their data.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sam17/fxlifesheet/core/config"
	"github.com/sam17/fxlifesheet/core/logger"
	tgsender "github.com/sam17/fxlifesheet/core/telegram/sender"
	"log/slog"
)

// CommandRunner starts a question flow for a user, as if the user had sent
// the command themselves.
type CommandRunner interface {
	HandleCommand(ctx context.Context, userID int64, command string) error
}

// Scheduler fires configured reminders on their cron cadence.
type Scheduler struct {
	cron       *cron.Cron
	runner     CommandRunner
	dispatcher *tgsender.Dispatcher
	reminders  []config.Reminder
}

// New builds a scheduler over the reminder list. The dispatcher decouples
// reminder delivery from the cron goroutine.
func New(runner CommandRunner, dispatcher *tgsender.Dispatcher, reminders []config.Reminder) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		runner:     runner,
		dispatcher: dispatcher,
		reminders:  reminders,
	}
}

// Start registers all reminders and starts the cron loop.
func (s *Scheduler) Start() error {
	for _, rem := range s.reminders {
		rem := rem
		if _, err := s.cron.AddFunc(rem.Cron, func() { s.fire(rem) }); err != nil {
			return fmt.Errorf("scheduler: bad cron spec %q: %w", rem.Cron, err)
		}
	}

	s.cron.Start()
	logger.SCHED.Info("scheduler started",
		slog.String("event", "start"),
		slog.Int("count", len(s.reminders)),
	)
	return nil
}

func (s *Scheduler) fire(rem config.Reminder) {
	ctx := logger.Background()
	logger.Info(ctx, "sched", "reminder.fire",
		slog.String("command", rem.Command),
		slog.Int("count", len(rem.ChatIDs)),
	)

	for _, chatID := range rem.ChatIDs {
		chatID := chatID
		err := s.dispatcher.Enqueue(ctx, "reminder:"+rem.Command, func() error {
			return s.runner.HandleCommand(ctx, chatID, rem.Command)
		})
		if err != nil {
			logger.Warn(ctx, "sched", "reminder.enqueue.fail",
				slog.String("command", rem.Command),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
		}
	}
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	logger.SCHED.Info("scheduler stopped", slog.String("event", "stop"))
}
