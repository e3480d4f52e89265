package server

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jobfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestHealthChecks(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health/live", nil, 0)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/health/ready", nil, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestAuthentication(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	post := map[string]any{"title": "Hello", "body": "World"}

	expired, err := IssueToken(testSecret, companyID, -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken("some-other-secret-of-decent-length", companyID, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		msg    string
	}{
		{"missing", "", "Authorization required"},
		{"not bearer", "Basic abc", "Authorization required"},
		{"garbage", "Bearer not-a-jwt", "Invalid or expired token"},
		{"expired", "Bearer " + expired, "Invalid or expired token"},
		{"wrong secret", "Bearer " + forged, "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"title":"Hello","body":"World"}`))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := ts.send(t, req)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			body := decode[models.ErrorResponse](t, resp)
			assert.Equal(t, models.CodeUnauthorized, body.Code)
			assert.Equal(t, tt.msg, body.Error)
		})
	}

	// a valid token for an id the portal never provisioned
	resp := ts.do(t, http.MethodPost, "/api/posts", post, 999)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndReadPost(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	created := ts.createPost(t, map[string]any{
		"title":     "We are hiring",
		"post_type": "job_announcement",
		"category":  "Engineering",
		"tags":      []string{"Golang", "Remote", "golang"},
	})
	assert.Equal(t, companyID, created.AuthorID)
	assert.Equal(t, models.PostStatusPublished, created.Status)
	assert.Equal(t, []string{"Golang", "Remote", "golang"}, created.Tags)

	resp := ts.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", created.ID), nil, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.Post](t, resp)
	assert.Equal(t, "We are hiring", got.Title)
	assert.Equal(t, created.Tags, got.Tags)
	assert.Equal(t, 1, got.Engagement.Views)

	resp = ts.do(t, http.MethodGet, "/api/posts?tag=GOLANG", nil, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decode[[]models.Post](t, resp), 1, "tag filter ignores case")

	resp = ts.do(t, http.MethodGet, "/api/posts?category=Engineering&sort=newest", nil, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]models.Post](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	resp = ts.do(t, http.MethodGet, "/api/posts?sort=sideways", nil, 0)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/api/posts?featured=maybe", nil, 0)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePost_Rejections(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/posts", map[string]any{"title": "Hi", "body": "b"}, candidateID)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, models.CodeForbidden, body.Code)
	assert.Equal(t, models.ReasonRoleNotPermitted, body.Reason)

	resp = ts.do(t, http.MethodPost, "/api/posts", map[string]any{"body": "b"}, companyID)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "title is required", decode[models.ErrorResponse](t, resp).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t, companyID))
	resp = ts.send(t, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", decode[models.ErrorResponse](t, resp).Error)
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		part, err := w.CreateFormFile(mediaField, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestCreatePost_Multipart(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	req := multipartRequest(t, http.MethodPost, "/api/posts", map[string]string{
		"title":                      "Office tour",
		"body":                       "Photos from the new office",
		"post_type":                  "company_update",
		"tags":                       "office, culture",
		"candidate_comments_enabled": "false",
	}, map[string][]byte{"office.png": pngHeader})
	req.Header.Set("Authorization", "Bearer "+token(t, companyID))

	resp := ts.send(t, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decode[models.Post](t, resp)
	assert.Equal(t, []string{"office", "culture"}, post.Tags)
	assert.False(t, post.CommentSettings.CandidateCommentsEnabled)
	assert.True(t, post.CommentSettings.EmployerCommentsEnabled)
	require.Len(t, post.Media, 1)
	assert.Equal(t, models.MediaTypeImage, post.Media[0].Type)
	assert.Equal(t, "office.png", post.Media[0].Filename)
	require.True(t, strings.HasPrefix(post.Media[0].URL, "/media/"))

	_, err := os.Stat(filepath.Join(ts.cfg.MediaDir, strings.TrimPrefix(post.Media[0].URL, "/media/")))
	require.NoError(t, err)

	resp = ts.do(t, http.MethodGet, post.Media[0].URL, nil, 0)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// remove the image through a multipart update
	req = multipartRequest(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", post.ID), map[string]string{
		"remove_media": post.Media[0].URL,
	}, nil)
	req.Header.Set("Authorization", "Bearer "+token(t, companyID))
	resp = ts.send(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[models.Post](t, resp).Media)
}

func TestCreatePost_MultipartRejectsBadInput(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tests := []struct {
		name   string
		fields map[string]string
		files  map[string][]byte
		msg    string
	}{
		{
			name:   "bad schedule",
			fields: map[string]string{"title": "t", "body": "b", "scheduled_at": "tomorrow"},
			msg:    "Invalid scheduled_at: expected RFC3339",
		},
		{
			name:   "bad draft flag",
			fields: map[string]string{"title": "t", "body": "b", "draft": "perhaps"},
			msg:    "Invalid draft",
		},
		{
			name:   "unsupported file",
			fields: map[string]string{"title": "t", "body": "b"},
			files:  map[string][]byte{"payload.bin": {0x00, 0x01, 0x02, 0x03}},
			msg:    "Unsupported media type: payload.bin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(t, http.MethodPost, "/api/posts", tt.fields, tt.files)
			req.Header.Set("Authorization", "Bearer "+token(t, companyID))
			resp := ts.send(t, req)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.msg, decode[models.ErrorResponse](t, resp).Error)
		})
	}
}

func TestUpdateAndDeletePost(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	post := ts.createPost(t, map[string]any{"title": "Original"})
	path := fmt.Sprintf("/api/posts/%d", post.ID)

	resp := ts.do(t, http.MethodPut, path, map[string]any{"title": "Hijacked"}, employerID)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.ReasonNotOwner, decode[models.ErrorResponse](t, resp).Reason)

	resp = ts.do(t, http.MethodPut, path, map[string]any{"title": "Edited"}, companyID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Post](t, resp)
	assert.Equal(t, "Edited", updated.Title)
	assert.Equal(t, post.Version+1, updated.Version)

	resp = ts.do(t, http.MethodDelete, path, nil, adminID)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, path, nil, 0)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = ts.do(t, http.MethodDelete, path, nil, companyID)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostRoutes_BadIDs(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		msg    string
	}{
		{http.MethodGet, "/api/posts/abc", "Invalid ID"},
		{http.MethodGet, "/api/posts/0", "Invalid ID"},
		{http.MethodPost, "/api/posts/1/comments/x/like", "Invalid comment ID"},
	}
	for _, tt := range tests {
		resp := ts.do(t, tt.method, tt.path, nil, companyID)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.path)
		body := decode[models.ErrorResponse](t, resp)
		assert.Equal(t, tt.msg, body.Error)
		assert.Equal(t, models.CodeValidation, body.Code)
	}

	resp := ts.do(t, http.MethodGet, "/api/posts/424242", nil, 0)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, resp).Code)

	resp = ts.do(t, http.MethodGet, "/api/nowhere", nil, 0)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, resp).Code)
}
