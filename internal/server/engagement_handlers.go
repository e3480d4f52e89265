package server

import (
	"jobfeed/internal/models"
	"jobfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LikePost handles POST /api/posts/:id/like
// @Summary Toggle a like
// @Description Likes the post, or removes the caller's like when already present.
// @Tags engagement
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} service.LikeResult
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.engagementService.ToggleLike(c.UserContext(), postID, actorID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// GetPostLikes handles GET /api/posts/:id/likes
// @Summary List likers
// @Tags engagement
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/likes [get]
func (s *Server) GetPostLikes(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	likers, err := s.engagementService.LikedBy(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"post_id": postID,
		"likes":   len(likers),
		"users":   likers,
	})
}

// SharePost handles POST /api/posts/:id/share
// @Summary Share a post
// @Tags engagement
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.ShareInput false "Share target"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/share [post]
func (s *Server) SharePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.ShareInput
	if len(c.Body()) > 0 {
		if err := parseBody(c, &in); err != nil {
			return nil
		}
	}
	in.PostID = postID
	in.ActorID = actorID(c)

	shares, err := s.engagementService.Share(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"shares": shares})
}

// ClickPost handles POST /api/posts/:id/click
// @Summary Record a click-through
// @Tags engagement
// @Param id path int true "Post ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/click [post]
func (s *Server) ClickPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.engagementService.RecordClick(c.UserContext(), postID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
