package server

import (
	"strings"

	"circle/internal/models"
	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/profile/me
// @Summary Current profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/profile/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetMe(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/profile. It accepts either a
// multipart form (with optional profilePicture and coverPhoto files) or JSON.
// @Summary Update profile
// @Tags users
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param fullName formData string false "Full name"
// @Param bio formData string false "Bio"
// @Param location formData string false "Location"
// @Param website formData string false "Website"
// @Param profilePicture formData file false "Profile picture"
// @Param coverPhoto formData file false "Cover photo"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/profile [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	in := service.UpdateProfileInput{UserID: currentUserID(c)}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		in.FullName = optionalFormValue(c, "fullName")
		in.Bio = optionalFormValue(c, "bio")
		in.Location = optionalFormValue(c, "location")
		in.Website = optionalFormValue(c, "website")

		picture, closePicture, err := formUpload(c, "profilePicture")
		if err != nil {
			return s.respondServiceError(c, err)
		}
		defer closePicture()
		cover, closeCover, err := formUpload(c, "coverPhoto")
		if err != nil {
			return s.respondServiceError(c, err)
		}
		defer closeCover()
		in.ProfilePicture = picture
		in.CoverPhoto = cover
	} else {
		var req struct {
			FullName *string `json:"fullName"`
			Bio      *string `json:"bio"`
			Location *string `json:"location"`
			Website  *string `json:"website"`
		}
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		in.FullName, in.Bio, in.Location, in.Website = req.FullName, req.Bio, req.Location, req.Website
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), in)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers handles GET /api/users/search?q=
// @Summary Search users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param q query string true "Username or full name"
// @Success 200 {array} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.userService.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:username
// @Summary Profile by username
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetFriends handles GET /api/users/:userId/friends
// @Summary Friends of a user
// @Tags friends
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {array} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{userId}/friends [get]
func (s *Server) GetFriends(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	friends, err := s.friendService.GetFriends(c.UserContext(), userID)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(friends)
}
