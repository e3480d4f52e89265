package server

import (
	"errors"
	"strings"
	"unicode"

	"jobfeed/internal/models"
	"jobfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten tells a handler that a helper already wrote the error
// response; the handler returns nil so the ErrorHandler leaves it alone.
var errResponseWritten = errors.New("response already written")

// Pagination is a clamped limit/offset pair from the query string.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination reads ?limit and ?offset. Missing, invalid or
// non-positive limits fall back to def; limits above the page maximum are
// capped and negative offsets become zero.
func parsePagination(c *fiber.Ctx, def int) Pagination {
	p := Pagination{Limit: c.QueryInt("limit", def), Offset: max(c.QueryInt("offset", 0), 0)}
	if p.Limit <= 0 {
		p.Limit = def
	}
	p.Limit = min(p.Limit, service.MaxPageLimit)
	return p
}

// parseID reads a positive integer route param. A bad value gets a 400 named
// after the param ("commentId" reads "Invalid comment ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err == nil && id > 0 {
		return uint(id), nil
	}
	_ = models.RespondWithError(c, fiber.StatusBadRequest,
		models.NewValidationError("Invalid "+humanizeParam(param)))
	return 0, errResponseWritten
}

// humanizeParam turns a camelCase route param ending in "Id" into words.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	stem, ok := strings.CutSuffix(param, "Id")
	if !ok {
		return param
	}
	var b strings.Builder
	for i, r := range stem {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String() + " ID"
}

// actorID returns the authenticated actor, or zero for anonymous requests.
func actorID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// parseBody decodes the JSON body into dst, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// codeForStatus maps fiber's own errors (404 routes, body limits) onto the
// stable error codes.
func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusForbidden:
		return models.CodeForbidden
	case fiber.StatusRequestTimeout, fiber.StatusGatewayTimeout:
		return models.CodeTimeout
	case fiber.StatusConflict:
		return models.CodeConflict
	}
	if status >= 400 && status < 500 {
		return models.CodeValidation
	}
	return models.CodeInternal
}
