package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// Store persists a binary object and returns its public URL. Third-party
// providers plug in behind this interface.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

// Chain tries each store in order and returns the first successful URL.
// Individual failures are logged; the last error is returned when every
// adapter fails.
type Chain []Store

func (c Chain) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if len(c) == 0 {
		return "", errors.New("imagestore: no adapters configured")
	}

	// buffer once so every adapter sees the full object
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("imagestore: read object: %w", err)
	}

	var lastErr error
	for i, s := range c {
		url, err := s.Put(ctx, name, bytes.NewReader(data))
		if err == nil {
			return url, nil
		}
		lastErr = err
		log.WithError(err).WithField("adapter", i).Warn("image upload adapter failed, trying next")
	}
	return "", lastErr
}

// Local writes objects to a directory on disk and serves them under BaseURL.
type Local struct {
	Dir     string
	BaseURL string
}

func (l Local) Put(_ context.Context, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(l.Dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return l.BaseURL + "/" + filepath.Base(name), nil
}
