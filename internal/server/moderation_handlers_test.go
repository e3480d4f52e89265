package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIdentity is a mock of service.IdentityProvider
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) Resolve(ctx context.Context, actorID uint) (models.Role, error) {
	args := m.Called(ctx, actorID)
	return args.Get(0).(models.Role), args.Error(1)
}

func TestAdminRequired(t *testing.T) {
	t.Parallel()

	identity := new(MockIdentity)
	identity.On("Resolve", mock.Anything, uint(1)).Return(models.RoleAdmin, nil)
	identity.On("Resolve", mock.Anything, uint(2)).Return(models.RoleCompany, nil)
	identity.On("Resolve", mock.Anything, uint(3)).Return(models.Role(""), models.NewUnauthorizedError("Unknown actor"))
	identity.On("Resolve", mock.Anything, uint(4)).Return(models.Role(""), errors.New("identity backend down"))

	s := &Server{identity: identity}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		var id uint
		_, _ = fmt.Sscan(c.Get("X-Actor"), &id)
		c.Locals("userID", id)
		return c.Next()
	})
	app.Get("/admin", s.AdminRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		actor  string
		status int
	}{
		{"1", http.StatusOK},
		{"2", http.StatusForbidden},
		{"3", http.StatusUnauthorized},
		{"4", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("X-Actor", tt.actor)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tt.status, resp.StatusCode, "actor %s", tt.actor)
	}
	identity.AssertExpectations(t)
}

func TestModerationRoutes(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	post := ts.createPost(t, map[string]any{"title": "Needs review"})
	moderate := fmt.Sprintf("/api/admin/posts/%d/moderate", post.ID)

	resp := ts.do(t, http.MethodGet, "/api/admin/posts", nil, candidateID)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.ReasonAdminRequired, decode[models.ErrorResponse](t, resp).Reason)

	resp = ts.do(t, http.MethodPost, moderate, map[string]any{"action": "feature"}, companyID)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, moderate, map[string]any{"action": "feature", "notes": "Great content"}, adminID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	featured := decode[models.Post](t, resp)
	assert.True(t, featured.IsFeatured)
	assert.True(t, featured.IsModerated)
	assert.Equal(t, "Great content", featured.ModerationNotes)

	resp = ts.do(t, http.MethodPost, moderate, map[string]any{"action": "reject"}, adminID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.PostStatusArchived, decode[models.Post](t, resp).Status)

	resp = ts.do(t, http.MethodPost, moderate, map[string]any{"action": "obliterate"}, adminID)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid moderation action: obliterate", decode[models.ErrorResponse](t, resp).Error)

	resp = ts.do(t, http.MethodPost, "/api/admin/posts/55555/moderate", map[string]any{"action": "approve"}, adminID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/admin/posts?status=archived", nil, adminID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	queue := decode[[]models.Post](t, resp)
	require.Len(t, queue, 1)
	assert.Equal(t, post.ID, queue[0].ID)

	resp = ts.do(t, http.MethodGet, "/api/admin/posts?status=limbo", nil, adminID)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, fmt.Sprintf("/api/admin/posts/%d/moderation", post.ID), nil, adminID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]models.ModerationEvent](t, resp)
	require.Len(t, history, 2)
	assert.Equal(t, models.ModerationFeature, history[0].Action)
	assert.Equal(t, models.ModerationReject, history[1].Action)
	assert.Equal(t, models.PostStatusPublished, history[1].FromStatus)
	assert.Equal(t, models.PostStatusArchived, history[1].ToStatus)

	// archived posts leave the public feed
	resp = ts.do(t, http.MethodGet, "/api/posts", nil, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Post](t, resp))
}
