package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore writes artifacts to a directory served under a base URL
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the directory if needed
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create storage directory %s", dir)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory artifacts are written to
func (s *LocalStore) Dir() string {
	return s.dir
}

// Store writes data atomically and returns its URL
func (s *LocalStore) Store(ctx context.Context, data []byte, name string, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fileName := SafeName(name)
	target := filepath.Join(s.dir, fileName)

	tmp, err := os.CreateTemp(s.dir, fileName+".*.tmp")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temporary artifact")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "failed to write %s", fileName)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", fileName)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", errors.Wrapf(err, "failed to store %s", fileName)
	}

	return s.baseURL + "/" + fileName, nil
}
