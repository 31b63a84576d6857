package models

import "time"

// WebhookEndpoint is a registered receiver for integration events such as
// bug creation requests. Deliveries are signed with the endpoint's secret.
type WebhookEndpoint struct {
	ID              int        `json:"id" gorm:"primaryKey"`
	URL             string     `json:"url" gorm:"not null"`
	Events          StringList `json:"events" gorm:"serializer:json"`
	Secret          string     `json:"-" gorm:"not null"`
	Description     string     `json:"description"`
	Active          bool       `json:"active" gorm:"default:true"`
	SuccessCount    int        `json:"success_count"`
	FailureCount    int        `json:"failure_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
