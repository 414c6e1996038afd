// Package storage persists binary attachments (signature images,
// license documents) and hands back stable URLs for the filing record.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dotfilings/dotfilings/internal/config"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Store writes attachment blobs and returns their public URL.
type Store interface {
	Save(ctx context.Context, key string, contentType string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

var ErrInvalidKey = errors.New("invalid_attachment_key")

type fsStore struct {
	fs      afero.Fs
	dir     string
	baseURL string
	log     *zap.Logger
}

// NewFilesystem stores attachments on the local filesystem under the
// configured directory and serves them from PUBLIC_BASE_URL.
func NewFilesystem(cfg config.Config, log *zap.Logger) Store {
	return newStore(afero.NewOsFs(), cfg.Storage.Dir, cfg.PublicBaseURL, log)
}

// NewMemory is an in-memory store for tests.
func NewMemory(baseURL string) Store {
	return newStore(afero.NewMemMapFs(), "attachments", baseURL, zap.NewNop())
}

func newStore(fs afero.Fs, dir, baseURL string, log *zap.Logger) Store {
	return &fsStore{
		fs:      fs,
		dir:     strings.TrimRight(dir, "/"),
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.Named("storage"),
	}
}

func (s *fsStore) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	full := path.Join(s.dir, clean)
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("prepare attachment dir: %w", err)
	}

	f, err := s.fs.Create(full)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}

	s.log.Debug("attachment stored",
		zap.String("key", clean),
		zap.String("content_type", contentType),
	)
	return s.baseURL + "/attachments/" + clean, nil
}

func (s *fsStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return s.fs.Open(path.Join(s.dir, clean))
}

// cleanKey rejects traversal and absolute keys.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
