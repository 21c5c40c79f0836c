package server

import (
	"github.com/gofiber/fiber/v2"
)

// SendFriendRequest handles POST /api/users/friend-request/:userId
// @Summary Send friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path int true "Receiver ID"
// @Success 201 {object} models.FriendRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/friend-request/{userId} [post]
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	req, err := s.friendService.SendFriendRequest(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return s.respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(req)
}

// AcceptFriendRequest handles PUT /api/users/friend-request/:requestId/accept
// @Summary Accept friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param requestId path int true "Request ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/friend-request/{requestId}/accept [put]
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	if _, err := s.friendService.AcceptFriendRequest(c.UserContext(), currentUserID(c), requestID); err != nil {
		return s.respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Friend request accepted"})
}

// DeclineFriendRequest handles PUT /api/users/friend-request/:requestId/decline
// @Summary Decline friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param requestId path int true "Request ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/friend-request/{requestId}/decline [put]
func (s *Server) DeclineFriendRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	if _, err := s.friendService.DeclineFriendRequest(c.UserContext(), currentUserID(c), requestID); err != nil {
		return s.respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Friend request declined"})
}

// CancelFriendRequest handles DELETE /api/users/friend-request/:requestId/cancel
// @Summary Cancel friend request
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param requestId path int true "Request ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/friend-request/{requestId}/cancel [delete]
func (s *Server) CancelFriendRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	if _, err := s.friendService.CancelFriendRequest(c.UserContext(), currentUserID(c), requestID); err != nil {
		return s.respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Friend request canceled"})
}

// RemoveFriend handles DELETE /api/users/friends/:friendId
// @Summary Remove friend
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param friendId path int true "Friend ID"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/friends/{friendId} [delete]
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	friendID, err := s.parseID(c, "friendId")
	if err != nil {
		return nil
	}

	if err := s.friendService.RemoveFriend(c.UserContext(), currentUserID(c), friendID); err != nil {
		return s.respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Friend removed"})
}

// GetReceivedRequests handles GET /api/users/friend-requests
// @Summary Pending requests received
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.FriendRequest
// @Router /users/friend-requests [get]
func (s *Server) GetReceivedRequests(c *fiber.Ctx) error {
	reqs, err := s.friendService.GetReceivedRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(reqs)
}

// GetSentRequests handles GET /api/users/sent-requests
// @Summary Pending requests sent
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.FriendRequest
// @Router /users/sent-requests [get]
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	reqs, err := s.friendService.GetSentRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(reqs)
}

// GetFriendshipStatus handles GET /api/users/friend-status/:userId
// @Summary Friendship status
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path int true "Other user ID"
// @Success 200 {object} service.FriendshipStatus
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/friend-status/{userId} [get]
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	status, err := s.friendService.GetFriendshipStatus(c.UserContext(), currentUserID(c), targetID)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(status)
}
