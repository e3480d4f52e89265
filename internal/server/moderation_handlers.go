package server

import (
	"jobfeed/internal/models"
	"jobfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ModeratePost handles POST /api/admin/posts/:id/moderate
// @Summary Apply a moderation action
// @Description approve, reject, feature (toggle) or pin (toggle).
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.ModerateInput true "Action"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/posts/{id}/moderate [post]
func (s *Server) ModeratePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.ModerateInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.PostID = postID
	in.ActorID = actorID(c)

	post, err := s.moderationService.Moderate(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// GetModerationQueue handles GET /api/admin/posts
// @Summary List posts for review
// @Tags admin
// @Produce json
// @Param status query string false "draft, published, archived or deleted (default: all but deleted)"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/posts [get]
func (s *Server) GetModerationQueue(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultPageLimit)

	posts, err := s.moderationService.Queue(c.UserContext(), actorID(c), c.Query("status"), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetModerationHistory handles GET /api/admin/posts/:id/moderation
// @Summary Moderation audit trail of a post
// @Tags admin
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.ModerationEvent
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/posts/{id}/moderation [get]
func (s *Server) GetModerationHistory(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	history, err := s.moderationService.History(c.UserContext(), actorID(c), postID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(history)
}
