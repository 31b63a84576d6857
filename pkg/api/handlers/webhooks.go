package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierrors "github.com/mozilla-services/experimenter-api/pkg/api/errors"
	"github.com/mozilla-services/experimenter-api/pkg/webhook"
)

// WebhookHandler manages integration endpoint registrations.
type WebhookHandler struct {
	service *webhook.Service
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service *webhook.Service) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// RegisterRequest is the payload for creating an endpoint.
type RegisterRequest struct {
	URL         string   `json:"url" validate:"required,url"`
	Description string   `json:"description"`
	Events      []string `json:"events" validate:"required,min=1"`
}

// RegisterResponse returns the endpoint with its one-time signing secret.
type RegisterResponse struct {
	ID     int    `json:"id"`
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

// Register creates an integration endpoint.
func (h *WebhookHandler) Register(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if req.URL == "" || len(req.Events) == 0 {
		return apierrors.ValidationError(c, echo.ErrBadRequest)
	}

	endpoint, secret, err := h.service.Register(ctx, req.URL, req.Description, req.Events)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusCreated, RegisterResponse{
		ID:     endpoint.ID,
		URL:    endpoint.URL,
		Secret: secret,
	})
}

// List returns all registered endpoints without secrets.
func (h *WebhookHandler) List(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	out, err := h.service.List(ctx)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Delete removes an endpoint.
func (h *WebhookHandler) Delete(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		return apierrors.ValidationError(c, err)
	}
	if err := h.service.Delete(ctx, id); err != nil {
		return apierrors.NotFoundError(c, "webhook endpoint")
	}
	return c.NoContent(http.StatusNoContent)
}
