// Package storage persists rendered artifacts and returns a reference to them.
package storage

import (
	"context"
	"path"
	"regexp"

	"github.com/pkg/errors"

	"example.com/albaranes/config"
)

// Store saves an artifact under a suggested name. Storing the same name twice
// overwrites the object and returns the same reference.
type Store interface {
	Store(ctx context.Context, data []byte, name string, contentType string) (string, error)
}

const (
	ContentTypePDF = "application/pdf"
	ContentTypePNG = "image/png"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName strips path segments and characters unsafe in object names
func SafeName(name string) string {
	return unsafeChars.ReplaceAllString(path.Base(name), "_")
}

// New creates the store selected by cfg.Provider
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Provider {
	case "gcs":
		return NewGCSStore(ctx, cfg)
	case "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, errors.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
