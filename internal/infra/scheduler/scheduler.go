package scheduler

import (
	"context"
	"fmt"
	"time"

	"cooperative_billing/internal/app"
	"cooperative_billing/internal/domain/telegram"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultRunTimeout bounds one scheduled dunning pass.
const DefaultRunTimeout = 30 * time.Minute

// DunningRunner is the part of the billing engine the scheduler drives.
type DunningRunner interface {
	RunDunningCycle(ctx context.Context) (*app.CycleSummary, error)
}

type DunningScheduler struct {
	cronEngine  *cron.Cron
	runner      DunningRunner
	adminClient telegram.Client // nil when the admin bot is disabled
	adminChatID int64
	cronSpec    string
	runTimeout  time.Duration
	logger      *logrus.Entry
}

func NewDunningScheduler(
	runner DunningRunner,
	adminClient telegram.Client,
	adminChatID int64,
	cronSpec string, // e.g. "0 9 * * *" (09:00 daily)
	location *time.Location,
	runTimeout time.Duration,
	logger *logrus.Entry,
) *DunningScheduler {
	if location == nil {
		location = time.UTC
	}
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &DunningScheduler{
		cronEngine:  cron.New(cron.WithLocation(location)),
		runner:      runner,
		adminClient: adminClient,
		adminChatID: adminChatID,
		cronSpec:    cronSpec,
		runTimeout:  runTimeout,
		logger:      logger.WithField("component", "scheduler"),
	}
}

// Start schedules the dunning job. Each run is bounded by the run timeout and cancelled with ctx,
// so a shutdown stops issuing reminders instead of waiting for the batch to drain.
func (s *DunningScheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting dunning scheduler")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		if ctx.Err() != nil {
			s.logger.Warn("Dunning cycle skipped, scheduler is shutting down")
			return
		}
		s.logger.Info("Cron job triggered for dunning cycle")
		runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
		s.RunOnce(runCtx)
	})
	if err != nil {
		return fmt.Errorf("could not add dunning cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Dunning scheduler started")
	return nil
}

// RunOnce executes one dunning pass and reports its summary to the admin chat.
func (s *DunningScheduler) RunOnce(ctx context.Context) (*app.CycleSummary, error) {
	summary, err := s.runner.RunDunningCycle(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Dunning cycle finished with errors")
	}
	if summary == nil {
		return nil, err
	}

	fields := logrus.Fields{
		"overdue":     summary.Overdue,
		"due_soon":    summary.DueSoon,
		"suspended":   summary.Suspended,
		"reactivated": summary.Reactivated,
	}
	if summary.Batch != nil {
		fields["sent"] = summary.Batch.Sent
		fields["failed"] = summary.Batch.Failed
	}
	s.logger.WithFields(fields).Info("Dunning cycle completed")

	s.notifyAdmin(summary, err)
	return summary, err
}

func (s *DunningScheduler) notifyAdmin(summary *app.CycleSummary, runErr error) {
	if s.adminClient == nil {
		return
	}
	text := summary.String()
	if runErr != nil {
		text += fmt.Sprintf("\nErros: %v", runErr)
	}
	if err := s.adminClient.SendMessage(s.adminChatID, text, nil); err != nil {
		s.logger.WithError(err).WithField("admin_chat_id", s.adminChatID).Error("Failed to send dunning summary to admin")
	}
}

func (s *DunningScheduler) Stop() {
	s.logger.Info("Stopping dunning scheduler")
	ctx := s.cronEngine.Stop() // waits for a running job
	<-ctx.Done()
	s.logger.Info("Dunning scheduler gracefully stopped")
}
