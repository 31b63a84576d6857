// Package lifecycle drives experiments through their editing workflow:
// section saves, status transitions, archival and the audit trail written
// alongside every change.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mozilla-services/experimenter-api/pkg/changelog"
	"github.com/mozilla-services/experimenter-api/pkg/experiments"
	"github.com/mozilla-services/experimenter-api/pkg/forms"
	"github.com/mozilla-services/experimenter-api/pkg/logger"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

// Event names emitted to external integrations when a status transition
// requires follow-up work.
const (
	EventBugCreate = "experiment.bug-create"
	EventBugUpdate = "experiment.bug-update"
)

// Notifier records an in-app notification for a user.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// Events delivers integration events to registered endpoints.
type Events interface {
	Emit(ctx context.Context, event string, payload map[string]any)
}

// Mailer sends the lifecycle emails that status transitions trigger.
type Mailer interface {
	SendIntentToShip(exp *models.Experiment, attention string) error
}

// Config carries the workflow's tunables.
type Config struct {
	Labels       experiments.Labels
	BugzillaHost string

	// Now supplies the current time. Tests override it to pin dates.
	Now func() time.Time
}

// Service handles experiment workflow operations.
type Service struct {
	db       *gorm.DB
	cfg      Config
	notifier Notifier
	events   Events
	mailer   Mailer
	log      logger.Logger
}

// NewService creates a new experiment workflow service.
func NewService(db *gorm.DB, cfg Config, notifier Notifier, events Events, mailer Mailer, log logger.Logger) *Service {
	if cfg.Labels.Fields == nil {
		cfg.Labels = experiments.DefaultLabels()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{db: db, cfg: cfg, notifier: notifier, events: events, mailer: mailer, log: log}
}

// ListFilter narrows the experiment listing.
type ListFilter struct {
	Status   string
	Type     string
	Owner    string
	Archived *bool
}

// List returns experiments matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.Experiment, error) {
	query := s.db.WithContext(ctx).Model(&models.Experiment{}).Preload("Variants")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	if filter.Archived != nil {
		query = query.Where("archived = ?", *filter.Archived)
	}

	var out []models.Experiment
	if err := query.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	return out, nil
}

// Get loads an experiment and its branches by slug.
func (s *Service) Get(ctx context.Context, slug string) (*models.Experiment, error) {
	var exp models.Experiment
	err := s.db.WithContext(ctx).Preload("Variants").Where("slug = ?", slug).First(&exp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, experiments.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch experiment: %w", err)
	}
	return &exp, nil
}

// Create starts a new experiment in Draft from the overview form and
// writes its initial change-log row.
func (s *Service) Create(ctx context.Context, changedBy string, form *forms.OverviewForm) (*models.Experiment, error) {
	exp := &models.Experiment{
		Status:   experiments.StatusDraft,
		Platform: experiments.PlatformAll,
	}

	if errs := form.Validate(exp, s.formConfig(ctx)); errs != nil {
		return nil, errs
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form.Apply(exp)
		if err := tx.Create(exp).Error; err != nil {
			return fmt.Errorf("failed to create experiment: %w", err)
		}

		diff := changelog.Diff(nil, exp.Snapshot(), form.Fields(), s.cfg.Labels)
		entry := models.ExperimentChangeLog{
			ExperimentID:  exp.ID,
			ChangedBy:     changedBy,
			OldStatus:     nil,
			NewStatus:     exp.Status,
			ChangedValues: diff,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record change: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("experiment created", "slug", exp.Slug, "changed_by", changedBy)
	return exp, nil
}

// SaveSection validates and applies one section form, replaces branches
// when the design section is saved, and records exactly one change-log
// row for the save. Validation failures are returned as
// experiments.FieldErrors.
func (s *Service) SaveSection(ctx context.Context, slug, changedBy string, form forms.SectionForm) (*models.Experiment, error) {
	exp, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	// The latest change-log row holds the authoritative current status.
	if last, ok := s.latestChange(ctx, exp.ID); ok {
		exp.Status = last.NewStatus
	}

	if errs := form.Validate(exp, s.formConfig(ctx)); errs != nil {
		return nil, errs
	}

	before := *exp
	oldStatus := exp.Status
	oldSnap := exp.Snapshot()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		form.Apply(exp)
		s.applyStatusEffects(exp, oldStatus)

		if form.Section() == experiments.SectionDesign {
			if err := tx.Where("experiment_id = ?", exp.ID).
				Delete(&models.ExperimentVariant{}).Error; err != nil {
				return fmt.Errorf("failed to replace branches: %w", err)
			}
			for i := range exp.Variants {
				exp.Variants[i].ExperimentID = exp.ID
			}
			if len(exp.Variants) > 0 {
				if err := tx.Create(&exp.Variants).Error; err != nil {
					return fmt.Errorf("failed to save branches: %w", err)
				}
			}
		}

		if err := tx.Omit("Variants").Save(exp).Error; err != nil {
			return fmt.Errorf("failed to save experiment: %w", err)
		}

		diff := changelog.Diff(oldSnap, exp.Snapshot(), form.Fields(), s.cfg.Labels)
		entry := models.ExperimentChangeLog{
			ExperimentID:  exp.ID,
			ChangedBy:     changedBy,
			OldStatus:     &oldStatus,
			NewStatus:     exp.Status,
			ChangedValues: diff,
			Message:       form.ChangeMessage(&before),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record change: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterSave(ctx, exp, &before, oldStatus, changedBy, form)
	return exp, nil
}

// UpdateStatus moves the experiment to the requested status.
func (s *Service) UpdateStatus(ctx context.Context, slug, changedBy, status string) (*models.Experiment, error) {
	return s.SaveSection(ctx, slug, changedBy, &forms.StatusForm{Status: status})
}

// Archive toggles the archived flag for experiments whose status allows
// it. Non-archivable experiments are left untouched and the caller is
// notified instead.
func (s *Service) Archive(ctx context.Context, slug, changedBy string) (*models.Experiment, error) {
	exp, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	if !exp.IsArchivable() {
		message := fmt.Sprintf(
			"%s cannot be archived while it is in the %s status",
			exp.Name, experiments.StatusLabels[exp.Status])
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, changedBy, message); err != nil {
				s.log.Error("failed to create notification", "error", err)
			}
		}
		return exp, nil
	}

	oldSnap := exp.Snapshot()
	status := exp.Status
	message := "Archived Experiment"
	if exp.Archived {
		message = "Unarchived Experiment"
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exp.Archived = !exp.Archived
		if err := tx.Omit("Variants").Save(exp).Error; err != nil {
			return fmt.Errorf("failed to save experiment: %w", err)
		}
		diff := changelog.Diff(oldSnap, exp.Snapshot(), []string{"archived"}, s.cfg.Labels)
		entry := models.ExperimentChangeLog{
			ExperimentID:  exp.ID,
			ChangedBy:     changedBy,
			OldStatus:     &status,
			NewStatus:     status,
			ChangedValues: diff,
			Message:       message,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record change: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("experiment archive toggled", "slug", exp.Slug, "archived", exp.Archived)
	return exp, nil
}

// Changelog returns the audit trail for an experiment, newest first.
func (s *Service) Changelog(ctx context.Context, slug string) ([]models.ExperimentChangeLog, error) {
	exp, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	var entries []models.ExperimentChangeLog
	err = s.db.WithContext(ctx).
		Where("experiment_id = ?", exp.ID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch changelog: %w", err)
	}
	return entries, nil
}

func (s *Service) latestChange(ctx context.Context, experimentID int) (*models.ExperimentChangeLog, bool) {
	var last models.ExperimentChangeLog
	err := s.db.WithContext(ctx).
		Where("experiment_id = ?", experimentID).
		Order("created_at DESC, id DESC").
		First(&last).Error
	if err != nil {
		return nil, false
	}
	return &last, true
}

func (s *Service) formConfig(ctx context.Context) forms.Config {
	return forms.Config{
		Labels:       s.cfg.Labels,
		BugzillaHost: s.cfg.BugzillaHost,
		Now:          s.cfg.Now,
		NameInUse: func(slug string, excludeID int) bool {
			var count int64
			s.db.WithContext(ctx).Model(&models.Experiment{}).
				Where("slug = ? AND id <> ?", slug, excludeID).
				Count(&count)
			return count > 0
		},
	}
}

// applyStatusEffects runs the mutations a transition implies before the
// record is saved. Moving to Ship stamps the delivery slug used by the
// recipe system.
func (s *Service) applyStatusEffects(exp *models.Experiment, oldStatus experiments.Status) {
	if exp.Status == oldStatus {
		return
	}
	if exp.Status == experiments.StatusShip && exp.NormandySlug == "" {
		exp.NormandySlug = GenerateNormandySlug(exp)
	}
}

// afterSave runs post-commit side effects: integration events for
// transitions and notifications for sign-off changes. Sign-off
// notifications go to the user who made the change.
func (s *Service) afterSave(ctx context.Context, exp *models.Experiment, before *models.Experiment, oldStatus experiments.Status, changedBy string, form forms.SectionForm) {
	if exp.Status != oldStatus {
		payload := map[string]any{
			"experiment":  exp.Slug,
			"status":      string(exp.Status),
			"description": BugzillaDescription(exp),
		}
		switch {
		case oldStatus == experiments.StatusDraft &&
			exp.Status == experiments.StatusReview && exp.BugzillaID == "":
			if s.events != nil {
				s.events.Emit(ctx, EventBugCreate, payload)
			}
		case oldStatus == experiments.StatusReview &&
			exp.Status == experiments.StatusShip:
			payload["normandy_slug"] = exp.NormandySlug
			if s.events != nil {
				s.events.Emit(ctx, EventBugUpdate, payload)
			}
			if s.mailer != nil {
				attention := ""
				if sf, ok := form.(*forms.StatusForm); ok {
					attention = sf.Attention
				}
				if err := s.mailer.SendIntentToShip(exp, attention); err != nil {
					s.log.Error("failed to send intent to ship email", "slug", exp.Slug, "error", err)
				}
			}
		}
	}

	if message := form.ChangeMessage(before); message != "" && s.notifier != nil && changedBy != "" {
		if err := s.notifier.Notify(ctx, changedBy, message); err != nil {
			s.log.Error("failed to create notification", "error", err)
		}
	}
}

// GenerateNormandySlug derives the recipe-facing identifier from the
// experiment's type, slug, channel and minimum version.
func GenerateNormandySlug(exp *models.Experiment) string {
	parts := []string{
		string(exp.Type),
		exp.Slug,
		strings.ToLower(string(exp.FirefoxChannel)),
		exp.FirefoxMinVersion,
	}
	slug := experiments.Slugify(strings.Join(parts, "-"))
	if len(slug) > experiments.MaxNormandySlugLen {
		slug = strings.Trim(slug[:experiments.MaxNormandySlugLen], "-")
	}
	return slug
}
