package service

import (
	"context"
	"testing"

	"jobfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModerationService_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		from   models.PostStatus
		action string
		want   models.PostStatus
	}{
		{"approve draft", models.PostStatusDraft, "approve", models.PostStatusPublished},
		{"approve archived", models.PostStatusArchived, "approve", models.PostStatusPublished},
		{"approve published", models.PostStatusPublished, "approve", models.PostStatusPublished},
		{"approve deleted stays deleted", models.PostStatusDeleted, "approve", models.PostStatusDeleted},
		{"reject published", models.PostStatusPublished, "reject", models.PostStatusArchived},
		{"reject draft", models.PostStatusDraft, "reject", models.PostStatusArchived},
		{"reject deleted", models.PostStatusDeleted, "REJECT", models.PostStatusArchived},
		{"feature keeps status", models.PostStatusDraft, "feature", models.PostStatusDraft},
		{"pin keeps status", models.PostStatusArchived, "pin", models.PostStatusArchived},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			env := newTestEnv(t)
			ctx := context.Background()

			post := env.publish(t, "Moderate me")
			require.NoError(t, env.db.Model(&models.Post{}).Where("id = ?", post.ID).Update("status", tt.from).Error)

			got, err := env.moderation.Moderate(ctx, ModerateInput{PostID: post.ID, ActorID: adminID, Action: tt.action, Notes: "checked"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.True(t, got.IsModerated)
			require.NotNil(t, got.ModeratedBy)
			assert.Equal(t, adminID, *got.ModeratedBy)
			assert.NotNil(t, got.ModeratedAt)
			assert.Equal(t, "checked", got.ModerationNotes)
			if tt.want == models.PostStatusPublished && tt.from != models.PostStatusPublished {
				assert.NotNil(t, got.PublishedAt)
			}

			history, err := env.moderation.History(ctx, adminID, post.ID)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, tt.from, history[0].FromStatus)
			assert.Equal(t, tt.want, history[0].ToStatus)
		})
	}
}

func TestModerationService_FeatureAndPinToggle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	post := env.publish(t, "Spotlight")

	got, err := env.moderation.Moderate(ctx, ModerateInput{PostID: post.ID, ActorID: adminID, Action: "feature"})
	require.NoError(t, err)
	assert.True(t, got.IsFeatured)
	assert.Empty(t, got.ModerationNotes)

	got, err = env.moderation.Moderate(ctx, ModerateInput{PostID: post.ID, ActorID: adminID, Action: "pin"})
	require.NoError(t, err)
	assert.True(t, got.IsPinned)
	assert.True(t, got.IsFeatured)

	got, err = env.moderation.Moderate(ctx, ModerateInput{PostID: post.ID, ActorID: adminID, Action: "feature"})
	require.NoError(t, err)
	assert.False(t, got.IsFeatured)

	history, err := env.moderation.History(ctx, adminID, post.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.ModerationFeature, history[0].Action)
	assert.Equal(t, models.ModerationPin, history[1].Action)
}

func TestModerationService_Rejections(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()
	post := env.publish(t, "Guarded")

	_, err := env.moderation.Moderate(ctx, ModerateInput{PostID: post.ID, ActorID: companyID, Action: "approve"})
	assertForbidden(t, err, models.ReasonAdminRequired)

	_, err = env.moderation.Moderate(ctx, ModerateInput{PostID: post.ID, ActorID: adminID, Action: "boost"})
	assertCode(t, err, models.CodeValidation)

	_, err = env.moderation.Moderate(ctx, ModerateInput{PostID: post.ID, ActorID: adminID})
	assertCode(t, err, models.CodeValidation)

	_, err = env.moderation.Moderate(ctx, ModerateInput{PostID: 777, ActorID: adminID, Action: "approve"})
	assertCode(t, err, models.CodeNotFound)

	_, err = env.moderation.History(ctx, candidateID, post.ID)
	assertForbidden(t, err, models.ReasonAdminRequired)
	_, err = env.moderation.History(ctx, adminID, 777)
	assertCode(t, err, models.CodeNotFound)

	history, err := env.moderation.History(ctx, adminID, post.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.False(t, env.reload(t, post.ID).IsModerated)
}

func TestModerationService_Queue(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := context.Background()

	live := env.publish(t, "Live")
	draft, err := env.postSvc.CreatePost(ctx, CreatePostInput{ActorID: companyID, Title: "Draft", Body: "b", Draft: true})
	require.NoError(t, err)
	gone := env.publish(t, "Gone")
	require.NoError(t, env.postSvc.DeletePost(ctx, gone.ID, companyID))

	all, err := env.moderation.Queue(ctx, adminID, "", 0, 0)
	require.NoError(t, err)
	ids := make([]uint, len(all))
	for i, p := range all {
		ids[i] = p.ID
	}
	assert.Equal(t, []uint{draft.ID, live.ID}, ids)

	drafts, err := env.moderation.Queue(ctx, adminID, "draft", 0, 0)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)

	deleted, err := env.moderation.Queue(ctx, adminID, "deleted", 0, 0)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	_, err = env.moderation.Queue(ctx, adminID, "limbo", 0, 0)
	assertCode(t, err, models.CodeValidation)
	_, err = env.moderation.Queue(ctx, employerID, "", 0, 0)
	assertForbidden(t, err, models.ReasonAdminRequired)
}
