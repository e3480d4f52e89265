// Package storage holds the bundled blob store for post media.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"jobfeed/internal/models"

	"github.com/google/uuid"
)

const (
	DefaultMediaDir         = "/tmp/jobfeed/media"
	DefaultMediaBaseURL     = "/media"
	DefaultMaxUploadSizeMB  = 10
	maxOriginalFilenameSize = 255
)

// Upload is one file received with a create or update request.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// DiskStore writes media under a local directory and serves them from
// baseURL. File names are random so URLs never collide.
type DiskStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewDiskStore builds a DiskStore; zero values fall back to the defaults.
func NewDiskStore(dir, baseURL string, maxUploadMB int) *DiskStore {
	if dir == "" {
		dir = DefaultMediaDir
	}
	if baseURL == "" {
		baseURL = DefaultMediaBaseURL
	}
	if maxUploadMB <= 0 {
		maxUploadMB = DefaultMaxUploadSizeMB
	}
	return &DiskStore{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
	}
}

// Dir is the directory files are written to.
func (s *DiskStore) Dir() string { return s.dir }

// BaseURL is the URL prefix files are served under.
func (s *DiskStore) BaseURL() string { return s.baseURL }

// Store validates and writes the upload, returning the unsaved media row.
func (s *DiskStore) Store(ctx context.Context, up Upload) (*models.PostMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(up.Content) == 0 {
		return nil, models.NewValidationError("Empty file: " + up.Filename)
	}
	if int64(len(up.Content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}

	ext := strings.ToLower(filepath.Ext(up.Filename))
	mediaType, ok := classify(http.DetectContentType(up.Content), ext)
	if !ok {
		return nil, models.NewValidationError("Unsupported media type: " + up.Filename)
	}

	name := uuid.NewString() + ext
	if err := writeBytesToFile(filepath.Join(s.dir, name), up.Content); err != nil {
		return nil, models.NewInternalError(err)
	}

	filename := filepath.Base(up.Filename)
	if len(filename) > maxOriginalFilenameSize {
		filename = filename[:maxOriginalFilenameSize]
	}
	return &models.PostMedia{
		Type:       mediaType,
		URL:        s.baseURL + "/" + name,
		Filename:   filename,
		Size:       int64(len(up.Content)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Release deletes the file behind url. URLs this store did not issue and
// files that are already gone are ignored.
func (s *DiskStore) Release(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || name == "" || name != path.Base(name) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// classify maps a sniffed content type (and, for office documents, the
// extension) to a media type.
func classify(detected, ext string) (models.MediaType, bool) {
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		mediaType = detected
	}
	switch {
	case mediaType == "image/jpeg", mediaType == "image/png", mediaType == "image/gif", mediaType == "image/webp":
		return models.MediaTypeImage, true
	case strings.HasPrefix(mediaType, "video/"):
		return models.MediaTypeVideo, true
	case mediaType == "application/pdf":
		return models.MediaTypeDocument, true
	}
	// docx/xlsx/pptx sniff as zip, legacy office files as octet-stream
	switch ext {
	case ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt":
		if mediaType == "application/zip" || mediaType == "application/octet-stream" {
			return models.MediaTypeDocument, true
		}
	case ".txt":
		if strings.HasPrefix(mediaType, "text/plain") {
			return models.MediaTypeDocument, true
		}
	}
	return "", false
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
