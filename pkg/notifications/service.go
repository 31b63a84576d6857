// Package notifications stores the in-app messages surfaced to users
// when workflow actions need their attention.
package notifications

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mozilla-services/experimenter-api/pkg/models"
)

// Service handles notification operations.
type Service struct {
	db *gorm.DB
}

// NewService creates a new notification service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Notify records a notification for a recipient.
func (s *Service) Notify(ctx context.Context, recipient, message string) error {
	n := models.Notification{Recipient: recipient, Message: message}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// List returns a recipient's notifications, newest first. When unreadOnly
// is set, read notifications are excluded.
func (s *Service) List(ctx context.Context, recipient string, unreadOnly bool) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Where("recipient = ?", recipient)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	var out []models.Notification
	if err := query.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one of the recipient's notifications as read.
func (s *Service) MarkRead(ctx context.Context, recipient string, id int) error {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient = ?", id, recipient).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

// Exists reports whether the recipient already has a notification with
// the exact message. Scheduled jobs use it to avoid duplicate sends.
func (s *Service) Exists(ctx context.Context, recipient, message string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient = ? AND message = ?", recipient, message).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query notifications: %w", err)
	}
	return count > 0, nil
}
