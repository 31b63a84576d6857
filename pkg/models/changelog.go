package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/mozilla-services/experimenter-api/pkg/changelog"
	"github.com/mozilla-services/experimenter-api/pkg/experiments"
)

// ExperimentChangeLog is an immutable audit record written once per save.
// The latest row's NewStatus is the authoritative previous status for the
// next transition check.
type ExperimentChangeLog struct {
	ID            int                 `json:"id" gorm:"primaryKey"`
	ExperimentID  int                 `json:"experiment_id" gorm:"index;not null"`
	ChangedBy     string              `json:"changed_by" gorm:"not null"`
	OldStatus     *experiments.Status `json:"old_status" gorm:"type:varchar(20)"`
	NewStatus     experiments.Status  `json:"new_status" gorm:"type:varchar(20);not null"`
	ChangedValues changelog.DiffMap   `json:"changed_values" gorm:"serializer:json"`
	Message       string              `json:"message"`
	CreatedAt     time.Time           `json:"created_at" gorm:"index"`
}

// Notification is an in-app message shown to a user, driven by sign-off
// and archive events.
type Notification struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	Recipient string    `json:"recipient" gorm:"index;not null"`
	Message   string    `json:"message" gorm:"not null"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the standard API error envelope.
type ErrorResponse struct {
	Error       string              `json:"error"`
	Message     string              `json:"message,omitempty"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
}

func trimPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
