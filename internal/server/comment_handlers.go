package server

import (
	"jobfeed/internal/models"
	"jobfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments returns the comment tree of a post (public)
// @Summary List comments
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.engagementService.ListComments(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Description Subject to the post's comment settings for the caller's audience.
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.AddCommentInput true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.AddCommentInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.PostID = postID
	in.ActorID = actorID(c)

	comment, err := s.engagementService.AddComment(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/posts/:id/comments/:commentId
// @Summary Edit a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Param request body service.EditCommentInput true "New content"
// @Success 200 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments/{commentId} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	var in service.EditCommentInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.PostID = postID
	in.CommentID = commentID
	in.ActorID = actorID(c)

	comment, err := s.engagementService.EditComment(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(comment)
}

// LikeComment handles POST /api/posts/:id/comments/:commentId/like
// @Summary Toggle a like on a comment or reply
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Success 200 {object} service.LikeResult
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments/{commentId}/like [post]
func (s *Server) LikeComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	result, err := s.engagementService.ToggleCommentLike(c.UserContext(), postID, commentID, actorID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// CreateReply handles POST /api/posts/:id/comments/:commentId/replies
// @Summary Reply to a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Param request body service.AddReplyInput true "Reply"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/comments/{commentId}/replies [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	var in service.AddReplyInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.PostID = postID
	in.CommentID = commentID
	in.ActorID = actorID(c)

	reply, err := s.engagementService.AddReply(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reply)
}
