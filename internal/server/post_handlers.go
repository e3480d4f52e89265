package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"jobfeed/internal/models"
	"jobfeed/internal/service"
	"jobfeed/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// mediaField is the multipart field carrying uploaded files.
const mediaField = "media"

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Publish, schedule or draft a post. Accepts JSON, or multipart/form-data with "media" files.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var in service.CreatePostInput
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		if in, err = createInputFromForm(form); err != nil {
			return models.RespondWithAppError(c, err)
		}
		if in.Media, err = readUploads(form); err != nil {
			return models.RespondWithAppError(c, err)
		}
	} else if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.ActorID = actorID(c)

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
// @Summary List the public feed
// @Tags posts
// @Produce json
// @Param post_type query string false "Post type"
// @Param category query string false "Category"
// @Param author_id query int false "Author"
// @Param tag query string false "Tag"
// @Param featured query bool false "Only featured (true) or non-featured (false)"
// @Param sort query string false "newest, oldest, popular or most_viewed"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, service.DefaultPageLimit)

	in := service.ListPostsInput{
		PostType: models.PostType(c.Query("post_type")),
		Category: c.Query("category"),
		Tag:      c.Query("tag"),
		Sort:     c.Query("sort"),
		Limit:    page.Limit,
		Offset:   page.Offset,
		ActorID:  actorID(c),
	}
	if raw := c.Query("author_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid author_id"))
		}
		in.AuthorID = uint(id)
	}
	if raw := c.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid featured"))
		}
		in.Featured = &featured
	}

	posts, err := s.postService.ListPosts(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Description Counts a view. Drafts and restricted posts are only visible to their author and admins.
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, actorID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Description Partial update by the author or an admin. Multipart requests may add "media" files and list "remove_media" URLs.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Post ID"
// @Param request body service.UpdatePostInput true "Changes"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var in service.UpdatePostInput
	if isMultipart(c) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		if in, err = updateInputFromForm(form); err != nil {
			return models.RespondWithAppError(c, err)
		}
		if in.Media, err = readUploads(form); err != nil {
			return models.RespondWithAppError(c, err)
		}
	} else if err := parseBody(c, &in); err != nil {
		return nil
	}
	in.ActorID = actorID(c)
	in.PostID = postID

	post, err := s.postService.UpdatePost(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Tags posts
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), postID, actorID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// readUploads loads every file of the media field into memory. Size and
// type checks happen in the blob store.
func readUploads(form *multipart.Form) ([]storage.Upload, error) {
	files := form.File[mediaField]
	uploads := make([]storage.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, models.NewValidationError("Unreadable upload: " + fh.Filename)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, models.NewValidationError("Unreadable upload: " + fh.Filename)
		}
		uploads = append(uploads, storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     data,
		})
	}
	return uploads, nil
}

// formValues wraps the text fields of a multipart form.
type formValues map[string][]string

func (f formValues) has(key string) bool {
	_, ok := f[key]
	return ok
}

func (f formValues) get(key string) string {
	if v := f[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (f formValues) ptr(key string) *string {
	if !f.has(key) {
		return nil
	}
	v := f.get(key)
	return &v
}

// list accepts both repeated fields and a single comma-separated value.
func (f formValues) list(key string) []string {
	values, ok := f[key]
	if !ok {
		return nil
	}
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (f formValues) time(key string) (*time.Time, error) {
	raw := strings.TrimSpace(f.get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("Invalid %s: expected RFC3339", key))
	}
	return &t, nil
}

func (f formValues) bool(key string) (bool, error) {
	raw := strings.TrimSpace(f.get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, models.NewValidationError("Invalid " + key)
	}
	return v, nil
}

func (f formValues) ids(key string) ([]uint, error) {
	parts := f.list(key)
	if parts == nil {
		return nil, nil
	}
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, models.NewValidationError("Invalid " + key)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// commentSettings reads the two audience flags; nil when neither is sent.
func (f formValues) commentSettings() (*models.CommentSettings, error) {
	if !f.has("candidate_comments_enabled") && !f.has("employer_comments_enabled") {
		return nil, nil
	}
	settings := models.DefaultCommentSettings()
	var err error
	if f.has("candidate_comments_enabled") {
		if settings.CandidateCommentsEnabled, err = f.bool("candidate_comments_enabled"); err != nil {
			return nil, err
		}
	}
	if f.has("employer_comments_enabled") {
		if settings.EmployerCommentsEnabled, err = f.bool("employer_comments_enabled"); err != nil {
			return nil, err
		}
	}
	return &settings, nil
}

func createInputFromForm(form *multipart.Form) (service.CreatePostInput, error) {
	f := formValues(form.Value)
	in := service.CreatePostInput{
		Title:             f.get("title"),
		Body:              f.get("body"),
		PostType:          models.PostType(f.get("post_type")),
		Category:          f.get("category"),
		Tags:              f.list("tags"),
		Visibility:        models.Visibility(f.get("visibility")),
		RelatedJobs:       f.list("related_jobs"),
		AuthorDisplayName: f.get("author_display_name"),
		AuthorLogoURL:     f.get("author_logo_url"),
	}
	var err error
	if in.ScheduledAt, err = f.time("scheduled_at"); err != nil {
		return in, err
	}
	if in.Draft, err = f.bool("draft"); err != nil {
		return in, err
	}
	if in.CommentSettings, err = f.commentSettings(); err != nil {
		return in, err
	}
	if in.RelatedPosts, err = f.ids("related_posts"); err != nil {
		return in, err
	}
	return in, nil
}

func updateInputFromForm(form *multipart.Form) (service.UpdatePostInput, error) {
	f := formValues(form.Value)
	in := service.UpdatePostInput{
		Title:       f.ptr("title"),
		Body:        f.ptr("body"),
		Category:    f.ptr("category"),
		Tags:        f.list("tags"),
		RelatedJobs: f.list("related_jobs"),
		RemoveMedia: f.list("remove_media"),
	}
	if f.has("post_type") {
		pt := models.PostType(f.get("post_type"))
		in.PostType = &pt
	}
	if f.has("visibility") {
		v := models.Visibility(f.get("visibility"))
		in.Visibility = &v
	}
	var err error
	if in.ScheduledAt, err = f.time("scheduled_at"); err != nil {
		return in, err
	}
	if in.CommentSettings, err = f.commentSettings(); err != nil {
		return in, err
	}
	if in.RelatedPosts, err = f.ids("related_posts"); err != nil {
		return in, err
	}
	return in, nil
}
