package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidFile = errors.New("invalid file")

const (
	DefaultFolder  = "uploads"
	DefaultMaxSize = 5 << 20
)

var DefaultAllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp"}

type UploadOptions struct {
	Folder       string
	AllowedTypes []string
	MaxSize      int64
}

type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type Uploaded struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Uploader struct {
	Bucket Bucket
	now    func() time.Time
}

func NewUploader(b Bucket) *Uploader {
	return &Uploader{Bucket: b, now: time.Now}
}

// Upload validates type and size, stores the file under
// <folder>/<unix-ms>-<uuid>.<ext> and returns a URL rooted at baseURL.
func (u *Uploader) Upload(ctx context.Context, f File, baseURL string, opts UploadOptions) (*Uploaded, error) {
	folder := cleanFolder(opts.Folder)
	allowed := opts.AllowedTypes
	if len(allowed) == 0 {
		allowed = DefaultAllowedTypes
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	ct := strings.ToLower(strings.TrimSpace(strings.Split(f.ContentType, ";")[0]))
	if !slices.Contains(allowed, ct) {
		return nil, fmt.Errorf("%w: File type %s is not allowed. Allowed types: %s", ErrInvalidFile, f.ContentType, strings.Join(allowed, ", "))
	}

	data, err := io.ReadAll(io.LimitReader(f.Body, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: File size exceeds maximum %.2fMB", ErrInvalidFile, float64(maxSize)/1024/1024)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidFile)
	}

	key := fmt.Sprintf("%s/%d-%s.%s", folder, u.now().UnixMilli(), uuid.NewString(), extension(f.Name))
	if err := u.Bucket.Put(ctx, key, data, ct); err != nil {
		return nil, err
	}

	return &Uploaded{Key: key, URL: PublicURL(baseURL, key)}, nil
}

func PublicURL(baseURL, key string) string {
	if baseURL == "" {
		return key
	}
	return strings.TrimRight(baseURL, "/") + "/" + key
}

// KeyFromURL returns the object key behind a URL built by PublicURL. It
// matches on the path only, so the host the URL was minted under does
// not matter. ok is false for URLs outside baseURL.
func KeyFromURL(baseURL, raw string) (key string, ok bool) {
	base, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	prefix := strings.TrimRight(base.Path, "/") + "/"
	if !strings.HasPrefix(u.Path, prefix) || len(u.Path) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(u.Path, prefix), true
}

func cleanFolder(folder string) string {
	folder = strings.Trim(path.Clean("/"+strings.TrimSpace(folder)), "/")
	if folder == "" || folder == "." {
		return DefaultFolder
	}
	return folder
}

func extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return "jpg"
	}
	ext := strings.ToLower(name[i+1:])
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "jpg"
		}
	}
	return ext
}
