// Package webhook delivers signed integration events to registered
// endpoints. The workflow service emits events like bug creation requests
// here instead of talking to issue trackers directly.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mozilla-services/experimenter-api/pkg/logger"
	"github.com/mozilla-services/experimenter-api/pkg/models"
)

const maxRetries = 3

// Payload is the JSON body posted to endpoints.
type Payload struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// Service handles webhook endpoint management and delivery.
type Service struct {
	db         *gorm.DB
	httpClient *http.Client
	log        logger.Logger

	// async controls whether deliveries run in their own goroutine.
	// Tests disable it to assert on delivery results.
	async bool
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:         db,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
		async:      true,
	}
}

// Register creates an endpoint subscribed to the given events and returns
// it along with the signing secret. The secret is only shown once.
func (s *Service) Register(ctx context.Context, url, description string, events []string) (*models.WebhookEndpoint, string, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate secret: %w", err)
	}

	endpoint := models.WebhookEndpoint{
		URL:         url,
		Events:      models.StringList(events),
		Secret:      secret,
		Description: description,
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(&endpoint).Error; err != nil {
		return nil, "", fmt.Errorf("failed to create webhook endpoint: %w", err)
	}
	return &endpoint, secret, nil
}

// List returns all registered endpoints, newest first.
func (s *Service) List(ctx context.Context) ([]models.WebhookEndpoint, error) {
	var out []models.WebhookEndpoint
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook endpoints: %w", err)
	}
	return out, nil
}

// Delete removes an endpoint.
func (s *Service) Delete(ctx context.Context, id int) error {
	result := s.db.WithContext(ctx).Delete(&models.WebhookEndpoint{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete webhook endpoint: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook endpoint not found")
	}
	return nil
}

// Emit delivers the event to every active endpoint subscribed to it.
func (s *Service) Emit(ctx context.Context, event string, data map[string]any) {
	var endpoints []models.WebhookEndpoint
	err := s.db.WithContext(ctx).Where("active = ?", true).Find(&endpoints).Error
	if err != nil {
		s.log.Error("failed to query webhook endpoints", "event", event, "error", err)
		return
	}

	for _, endpoint := range endpoints {
		if !subscribed(endpoint.Events, event) {
			continue
		}
		endpoint := endpoint
		if s.async {
			go s.deliver(endpoint, event, data)
		} else {
			s.deliver(endpoint, event, data)
		}
	}
}

// deliver posts the signed payload with exponential backoff between
// attempts and records the outcome on the endpoint.
func (s *Service) deliver(endpoint models.WebhookEndpoint, event string, data map[string]any) {
	payload := Payload{
		ID:        uuid.NewString(),
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("failed to marshal webhook payload", "event", event, "error", err)
		s.recordOutcome(endpoint.ID, false)
		return
	}

	signature := Sign(body, endpoint.Secret)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<uint(attempt)) * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, endpoint.URL, bytes.NewReader(body))
		if err != nil {
			s.log.Error("failed to create webhook request", "url", endpoint.URL, "error", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Signature", signature)
		req.Header.Set("X-Webhook-Event", event)
		req.Header.Set("X-Webhook-Delivery", payload.ID)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn("webhook delivery failed", "url", endpoint.URL,
				"attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info("webhook delivered", "url", endpoint.URL, "event", event)
			s.recordOutcome(endpoint.ID, true)
			return
		}
		s.log.Warn("webhook returned error status", "url", endpoint.URL,
			"status", resp.StatusCode, "attempt", attempt+1)
	}

	s.log.Error("webhook delivery exhausted retries", "url", endpoint.URL, "event", event)
	s.recordOutcome(endpoint.ID, false)
}

func (s *Service) recordOutcome(endpointID int, success bool) {
	column := "failure_count"
	if success {
		column = "success_count"
	}
	err := s.db.Model(&models.WebhookEndpoint{}).
		Where("id = ?", endpointID).
		Updates(map[string]any{
			column:              gorm.Expr(column+" + 1"),
			"last_triggered_at": time.Now(),
		}).Error
	if err != nil {
		s.log.Error("failed to record webhook outcome", "endpoint_id", endpointID, "error", err)
	}
}

func subscribed(events []string, event string) bool {
	for _, e := range events {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// Sign computes the hex HMAC-SHA256 signature of a payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the signature matches the payload.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
