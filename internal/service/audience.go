package service

import (
	"jobfeed/internal/models"
)

// CanComment applies the post's comment settings to the actor's role.
// Admins always pass; roles the feed does not know are refused.
func CanComment(settings models.CommentSettings, role models.Role) error {
	switch {
	case role.IsAdmin():
		return nil
	case role.IsCandidate():
		if !settings.CandidateCommentsEnabled {
			return models.NewForbiddenError(models.ReasonCandidateCommentsDisabled,
				"Comments from candidates are disabled for this post")
		}
		return nil
	case role.IsEmployer():
		if !settings.EmployerCommentsEnabled {
			return models.NewForbiddenError(models.ReasonEmployerCommentsDisabled,
				"Comments from employers are disabled for this post")
		}
		return nil
	default:
		return models.NewForbiddenError(models.ReasonRoleNotPermitted, "Role not permitted to comment")
	}
}

// CanEdit allows the post author and admins.
func CanEdit(post *models.Post, actorID uint, role models.Role) error {
	if role.IsAdmin() || post.AuthorID == actorID {
		return nil
	}
	return models.NewForbiddenError(models.ReasonNotOwner, "You can only modify your own posts")
}

// CanAuthor allows companies, consultancies and admins to publish.
func CanAuthor(role models.Role) error {
	if role.CanAuthorPosts() {
		return nil
	}
	return models.NewForbiddenError(models.ReasonRoleNotPermitted, "Only companies, consultancies and admins can create posts")
}

// CanModerate allows admins only.
func CanModerate(role models.Role) error {
	if role.IsAdmin() {
		return nil
	}
	return models.NewForbiddenError(models.ReasonAdminRequired, "Admin access required")
}

// canRead decides whether actor may see post. A nil actor is anonymous.
// Published public posts are open to everyone, followers_only posts to any
// signed-in actor, everything else to the author and admins.
func canRead(post *models.Post, actor *models.Actor) bool {
	if actor != nil && (actor.Role.IsAdmin() || actor.ID == post.AuthorID) {
		return true
	}
	if !post.IsPublished() {
		return false
	}
	switch post.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityFollowersOnly:
		return actor != nil
	default:
		return false
	}
}
