package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	apierrors "github.com/mozilla-services/experimenter-api/pkg/api/errors"
	"github.com/mozilla-services/experimenter-api/pkg/notifications"
)

// NotificationHandler handles notification-related HTTP requests.
type NotificationHandler struct {
	service *notifications.Service
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(service *notifications.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List returns the caller's notifications. Pass unread=true to exclude
// read ones.
func (h *NotificationHandler) List(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	user := userEmail(c)
	if user == "" {
		return apierrors.UnauthorizedError(c, "Missing user identity")
	}

	out, err := h.service.List(ctx, user, c.QueryParam("unread") == "true")
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	ctx, cancel := requestContextFor(c)
	defer cancel()

	user := userEmail(c)
	if user == "" {
		return apierrors.UnauthorizedError(c, "Missing user identity")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		return apierrors.ValidationError(c, err)
	}

	if err := h.service.MarkRead(ctx, user, id); err != nil {
		return apierrors.NotFoundError(c, "notification")
	}
	return c.NoContent(http.StatusNoContent)
}
