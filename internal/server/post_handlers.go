package server

import (
	"circle/internal/models"
	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts (multipart: caption, location, media)
// @Summary Create post
// @Description Caption, media or both
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param caption formData string false "Caption"
// @Param location formData string false "Location"
// @Param media formData file false "Image or video"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	media, closeMedia, err := formUpload(c, "media")
	if err != nil {
		return s.respondServiceError(c, err)
	}
	defer closeMedia()

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:   currentUserID(c),
		Caption:  c.FormValue("caption"),
		Location: c.FormValue("location"),
		Media:    media,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetFeed handles GET /api/posts/feed?page=
// @Summary Friend feed
// @Description Posts by the caller and their friends, newest first
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Success 200 {object} service.FeedPage
// @Router /posts/feed [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, err := s.feedService.Feed(c.UserContext(), currentUserID(c), c.QueryInt("page", 1))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(page)
}

// GetUserPosts handles GET /api/posts/user/:username?page=
// @Summary Posts by user
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Param page query int false "Page number" default(1)
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/user/{username} [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	posts, err := s.postService.GetUserPosts(c.UserContext(), c.Params("username"), c.QueryInt("page", 1), currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{caption=string,location=string} true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Caption  *string `json:"caption"`
		Location *string `json:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:   currentUserID(c),
		PostID:   id,
		Caption:  req.Caption,
		Location: req.Location,
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	}); err != nil {
		return s.respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Post removed"})
}

// LikePost handles PUT /api/posts/:id/like, toggling the caller's like.
// @Summary Toggle post like
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [put]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.ToggleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(post)
}
