package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications?page=
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Success 200 {object} service.NotificationPage
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page, err := s.notificationService.List(c.UserContext(), currentUserID(c), c.QueryInt("page", 1))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(page)
}

// MarkAllNotificationsRead handles PUT /api/notifications/read-all
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /notifications/read-all [put]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	if err := s.notificationService.MarkAllRead(c.UserContext(), currentUserID(c)); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "All notifications marked as read"})
}

// MarkNotificationRead handles PUT /api/notifications/:id/read
// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} models.Notification
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{id}/read [put]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	n, err := s.notificationService.MarkRead(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(n)
}

// DeleteNotification handles DELETE /api/notifications/:id
// @Summary Delete notification
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{id} [delete]
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.Delete(c.UserContext(), id, currentUserID(c)); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Notification removed"})
}
