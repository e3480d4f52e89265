package server

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"jobfeed/internal/middleware"
	"jobfeed/internal/models"
	"jobfeed/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Tokens are issued by the portal's identity service; these are the values
// it stamps.
const (
	TokenIssuer   = "jobfeed-api"
	TokenAudience = "jobfeed-client"
)

var errInvalidToken = errors.New("invalid token")

// IssueToken signs an HS256 access token for actorID. The feed never issues
// tokens in production; feedctl and tests use this to act as the portal.
func IssueToken(secret string, actorID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(actorID), 10),
		Issuer:    TokenIssuer,
		Audience:  jwt.ClaimStrings{TokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseActorToken validates signature, expiry, issuer and audience and
// returns the actor id in the subject claim.
func (s *Server) parseActorToken(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, errInvalidToken
	}
	actorID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || actorID == 0 {
		return 0, errInvalidToken
	}
	return uint(actorID), nil
}

// bearerToken reads "Authorization: Bearer <jwt>". Websocket upgrades may
// pass the token as ?token= since browsers cannot set headers there.
func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	if strings.HasPrefix(c.Path(), "/api/ws") {
		return c.Query("token")
	}
	return ""
}

func setActor(c *fiber.Ctx, actorID uint) {
	c.Locals("userID", actorID)
	// Sync to UserContext for logging and downstream services
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, actorID)
	c.SetUserContext(ctx)
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := bearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		actorID, err := s.parseActorToken(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}
		setActor(c, actorID)
		return c.Next()
	}
}

// OptionalAuth identifies the actor when a valid token is present and lets
// anonymous requests through. An invalid token is treated as anonymous.
func (s *Server) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := bearerToken(c); tokenString != "" {
			if actorID, err := s.parseActorToken(tokenString); err == nil {
				setActor(c, actorID)
			}
		}
		return c.Next()
	}
}

// AdminRequired returns middleware that rejects non-admin actors with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, err := s.identity.Resolve(c.UserContext(), actorID(c))
		if err != nil {
			return models.RespondWithAppError(c, err)
		}
		if err := service.CanModerate(role); err != nil {
			return models.RespondWithAppError(c, err)
		}
		return c.Next()
	}
}
