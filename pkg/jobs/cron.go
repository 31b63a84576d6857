// Package jobs runs the scheduled lifecycle scans: owners get mailed when
// their accepted experiments reach their start date and when their live
// experiments approach their end date or outlive their enrollment period.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/mozilla-services/experimenter-api/pkg/email"
	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/logger"
	"github.com/mozilla-services/experimenter-api/pkg/models"
	"github.com/mozilla-services/experimenter-api/pkg/notifications"
)

// endingSoonWindow is how far ahead of the end date the reminder fires.
const endingSoonWindow = 5 * 24 * time.Hour

// CronManager manages scheduled jobs.
type CronManager struct {
	cron     *cron.Cron
	db       *gorm.DB
	mailer   *email.Service
	notifier *notifications.Service
	log      logger.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewCronManager creates a new cron manager.
func NewCronManager(db *gorm.DB, mailer *email.Service, notifier *notifications.Service, log logger.Logger) *CronManager {
	if log == nil {
		log = logger.Default()
	}
	return &CronManager{
		cron:     cron.New(),
		db:       db,
		mailer:   mailer,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// SetupJobs registers the lifecycle scan on the given cron spec.
func (cm *CronManager) SetupJobs(spec string) error {
	_, err := cm.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := cm.RunLifecycleScan(ctx); err != nil {
			cm.log.Error("lifecycle scan failed", "error", err)
		}
	})
	return err
}

// Start begins running scheduled jobs.
func (cm *CronManager) Start() { cm.cron.Start() }

// Stop halts the scheduler and waits for running jobs.
func (cm *CronManager) Stop() { cm.cron.Stop() }

// RunLifecycleScan walks accepted and live experiments and sends the
// emails their timelines call for: launch when an accepted experiment's
// start date arrives, ending and enrollment-pause reminders while live.
// Each email is sent at most once, tracked by the notification it leaves
// behind.
func (cm *CronManager) RunLifecycleScan(ctx context.Context) error {
	today := cm.now().Truncate(24 * time.Hour)

	var accepted []models.Experiment
	err := cm.db.WithContext(ctx).
		Where("status = ? AND archived = ? AND proposed_start_date IS NOT NULL",
			experiments.StatusAccepted, false).
		Find(&accepted).Error
	if err != nil {
		return fmt.Errorf("failed to list accepted experiments: %w", err)
	}
	for i := range accepted {
		exp := &accepted[i]
		if !exp.ProposedStartDate.After(today) {
			cm.remind(ctx, exp,
				fmt.Sprintf("%s has launched", exp.Name),
				cm.mailer.SendLaunch)
		}
	}

	var live []models.Experiment
	err = cm.db.WithContext(ctx).
		Where("status = ? AND archived = ? AND proposed_start_date IS NOT NULL",
			experiments.StatusLive, false).
		Find(&live).Error
	if err != nil {
		return fmt.Errorf("failed to list live experiments: %w", err)
	}

	for i := range live {
		exp := &live[i]
		if exp.ProposedDuration != nil {
			end := exp.ProposedStartDate.AddDate(0, 0, *exp.ProposedDuration)
			if !end.Before(today) && end.Sub(today) <= endingSoonWindow {
				cm.remind(ctx, exp,
					fmt.Sprintf("%s is ending soon", exp.Name),
					cm.mailer.SendEnding)
			}
		}
		if exp.ProposedEnrollment != nil {
			pause := exp.ProposedStartDate.AddDate(0, 0, *exp.ProposedEnrollment)
			if !pause.After(today) {
				cm.remind(ctx, exp,
					fmt.Sprintf("Please verify that enrollment for %s is paused", exp.Name),
					cm.mailer.SendEnrollmentPause)
			}
		}
	}
	return nil
}

// remind sends the email and records the notification used for
// deduplication, skipping owners already notified.
func (cm *CronManager) remind(ctx context.Context, exp *models.Experiment, message string, send func(*models.Experiment) error) {
	if exp.Owner == "" {
		return
	}
	exists, err := cm.notifier.Exists(ctx, exp.Owner, message)
	if err != nil {
		cm.log.Error("failed to check notification history", "slug", exp.Slug, "error", err)
		return
	}
	if exists {
		return
	}
	if err := send(exp); err != nil {
		cm.log.Error("failed to send lifecycle email", "slug", exp.Slug, "error", err)
		return
	}
	if err := cm.notifier.Notify(ctx, exp.Owner, message); err != nil {
		cm.log.Error("failed to record lifecycle notification", "slug", exp.Slug, "error", err)
	}
	cm.log.Info("lifecycle reminder sent", "slug", exp.Slug, "message", message)
}
