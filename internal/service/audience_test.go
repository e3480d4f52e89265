package service

import (
	"testing"

	"jobfeed/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanComment(t *testing.T) {
	t.Parallel()

	open := models.DefaultCommentSettings()
	noCandidates := models.CommentSettings{CandidateCommentsEnabled: false, EmployerCommentsEnabled: true}
	noEmployers := models.CommentSettings{CandidateCommentsEnabled: true, EmployerCommentsEnabled: false}
	closed := models.CommentSettings{}

	tests := []struct {
		name     string
		settings models.CommentSettings
		role     models.Role
		reason   string
	}{
		{name: "candidate allowed", settings: open, role: models.RoleCandidate},
		{name: "employer allowed", settings: open, role: models.RoleEmployer},
		{name: "company allowed", settings: open, role: models.RoleCompany},
		{name: "candidate refused", settings: noCandidates, role: models.RoleCandidate, reason: models.ReasonCandidateCommentsDisabled},
		{name: "employer unaffected by candidate flag", settings: noCandidates, role: models.RoleEmployer},
		{name: "employer refused", settings: noEmployers, role: models.RoleEmployer, reason: models.ReasonEmployerCommentsDisabled},
		{name: "consultancy counts as employer", settings: noEmployers, role: models.RoleConsultancy, reason: models.ReasonEmployerCommentsDisabled},
		{name: "company counts as employer", settings: noEmployers, role: models.RoleCompany, reason: models.ReasonEmployerCommentsDisabled},
		{name: "admin bypasses closed settings", settings: closed, role: models.RoleAdmin},
		{name: "unknown role refused", settings: open, role: models.Role("recruiter_bot"), reason: models.ReasonRoleNotPermitted},
		{name: "empty role refused", settings: open, role: "", reason: models.ReasonRoleNotPermitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanComment(tt.settings, tt.role)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			assertForbidden(t, err, tt.reason)
		})
	}
}

func TestCanEdit(t *testing.T) {
	t.Parallel()
	post := &models.Post{ID: 1, AuthorID: 10}

	assert.NoError(t, CanEdit(post, 10, models.RoleCompany))
	assert.NoError(t, CanEdit(post, 99, models.RoleAdmin))
	assertForbidden(t, CanEdit(post, 11, models.RoleCompany), models.ReasonNotOwner)
	assertForbidden(t, CanEdit(post, 11, models.RoleCandidate), models.ReasonNotOwner)
}

func TestCanAuthorAndModerate(t *testing.T) {
	t.Parallel()

	for _, role := range []models.Role{models.RoleCompany, models.RoleConsultancy, models.RoleAdmin} {
		assert.NoError(t, CanAuthor(role), role)
	}
	for _, role := range []models.Role{models.RoleCandidate, models.RoleEmployer, "ghost"} {
		assertForbidden(t, CanAuthor(role), models.ReasonRoleNotPermitted)
	}

	assert.NoError(t, CanModerate(models.RoleAdmin))
	for _, role := range []models.Role{models.RoleCandidate, models.RoleEmployer, models.RoleCompany, models.RoleConsultancy} {
		assertForbidden(t, CanModerate(role), models.ReasonAdminRequired)
	}
}

func TestCanRead(t *testing.T) {
	t.Parallel()

	author := &models.Actor{ID: 10, Role: models.RoleCompany}
	stranger := &models.Actor{ID: 20, Role: models.RoleCandidate}
	admin := &models.Actor{ID: 30, Role: models.RoleAdmin}

	post := func(status models.PostStatus, vis models.Visibility) *models.Post {
		return &models.Post{ID: 1, AuthorID: 10, Status: status, Visibility: vis}
	}

	tests := []struct {
		name  string
		post  *models.Post
		actor *models.Actor
		want  bool
	}{
		{"public anonymous", post(models.PostStatusPublished, models.VisibilityPublic), nil, true},
		{"followers anonymous", post(models.PostStatusPublished, models.VisibilityFollowersOnly), nil, false},
		{"followers signed in", post(models.PostStatusPublished, models.VisibilityFollowersOnly), stranger, true},
		{"private stranger", post(models.PostStatusPublished, models.VisibilityPrivate), stranger, false},
		{"private author", post(models.PostStatusPublished, models.VisibilityPrivate), author, true},
		{"draft stranger", post(models.PostStatusDraft, models.VisibilityPublic), stranger, false},
		{"draft author", post(models.PostStatusDraft, models.VisibilityPublic), author, true},
		{"archived admin", post(models.PostStatusArchived, models.VisibilityPrivate), admin, true},
		{"archived anonymous", post(models.PostStatusArchived, models.VisibilityPublic), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canRead(tt.post, tt.actor))
		})
	}
}
