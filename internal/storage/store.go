// Package storage holds uploaded scans, analysis masks and rendered reports.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"oct-review-service/internal/config"
)

var ErrNoObject = errors.New("storage: no object")

// URLPrefix is the HTTP path under which stored objects are served.
const URLPrefix = "/media/"

// Store is a flat blob store addressed by slash separated keys such as
// "scans/<uuid>.png".
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// URLForKey returns the public path of a stored object.
func URLForKey(key string) string {
	return URLPrefix + key
}

// KeyFromURL is the inverse of URLForKey. ok is false for URLs that do not
// point into this store.
func KeyFromURL(u string) (string, bool) {
	if !strings.HasPrefix(u, URLPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(u, URLPrefix)
	if cleanKey(key) != nil {
		return "", false
	}
	return key, true
}

func cleanKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("storage: invalid key %q", key)
		}
	}
	return nil
}

// New builds the store selected by cfg.Driver.
func New(cfg config.MediaConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalPath)
	case "s3":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.S3Region)})
		if err != nil {
			return nil, fmt.Errorf("aws session: %w", err)
		}
		return NewS3(sess, cfg.S3Bucket, cfg.S3Prefix), nil
	}
	return nil, fmt.Errorf("unknown media driver %q", cfg.Driver)
}
