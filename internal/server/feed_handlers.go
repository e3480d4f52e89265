package server

import (
	"jobfeed/internal/models"
	"jobfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetTrending handles GET /api/feed/trending
// @Summary Trending posts
// @Description Ranked by likes, comments and shares within the window. Cached briefly.
// @Tags feed
// @Produce json
// @Param days query int false "Window in days (default 7)"
// @Param limit query int false "Max posts (default 10)"
// @Success 200 {array} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /feed/trending [get]
func (s *Server) GetTrending(c *fiber.Ctx) error {
	posts, err := s.feedService.Trending(c.UserContext(), c.QueryInt("days", 0), c.QueryInt("limit", 0))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetCategoryFeed handles GET /api/feed/category/:category
// @Summary Posts in a category
// @Tags feed
// @Produce json
// @Param category path string true "Category (case-insensitive)"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /feed/category/{category} [get]
func (s *Server) GetCategoryFeed(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultPageLimit)

	posts, err := s.feedService.ByCategory(c.UserContext(), c.Params("category"), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// SearchFeed handles GET /api/feed/search
// @Summary Search the public feed
// @Description Case-insensitive match on title, body, category and tags.
// @Tags feed
// @Produce json
// @Param q query string true "Search text"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /feed/search [get]
func (s *Server) SearchFeed(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultPageLimit)

	posts, err := s.feedService.Search(c.UserContext(), c.Query("q"), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}
