package server

import (
	"strconv"

	"circle/internal/models"
	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetStories handles GET /api/stories
// @Summary Live stories
// @Description Stories from the last 24 hours by the caller and their friends, oldest first
// @Tags stories
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Story
// @Router /stories [get]
func (s *Server) GetStories(c *fiber.Ctx) error {
	stories, err := s.storyService.ListStories(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(stories)
}

// CreateStory handles POST /api/stories (multipart: media, textOffsetX, textOffsetY)
// @Summary Create story
// @Tags stories
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param media formData file true "Image or video"
// @Param textOffsetX formData number false "Caption X offset"
// @Param textOffsetY formData number false "Caption Y offset"
// @Success 201 {object} models.Story
// @Failure 400 {object} models.ErrorResponse
// @Router /stories [post]
func (s *Server) CreateStory(c *fiber.Ctx) error {
	offsetX, ok := formFloat(c, "textOffsetX")
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid text offset"))
	}
	offsetY, ok := formFloat(c, "textOffsetY")
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid text offset"))
	}

	media, closeMedia, err := formUpload(c, "media")
	if err != nil {
		return s.respondServiceError(c, err)
	}
	defer closeMedia()

	story, err := s.storyService.CreateStory(c.UserContext(), service.CreateStoryInput{
		UserID:      currentUserID(c),
		Media:       media,
		TextOffsetX: offsetX,
		TextOffsetY: offsetY,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(story)
}

// ViewStory handles POST /api/stories/:id/view
// @Summary Record story view
// @Tags stories
// @Produce json
// @Security BearerAuth
// @Param id path int true "Story ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /stories/{id}/view [post]
func (s *Server) ViewStory(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.storyService.ViewStory(c.UserContext(), currentUserID(c), id); err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Story viewed"})
}

// formFloat parses an optional numeric form field; a missing field is zero.
func formFloat(c *fiber.Ctx, key string) (float64, bool) {
	raw := c.FormValue(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
