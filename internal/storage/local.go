package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const fsMetaSuffix = ".meta"

// errSidecarKey rejects keys that would address a content type sidecar.
var errSidecarKey = errors.New("storage: key addresses a sidecar file")

type localMeta struct {
	ContentType string `json:"content_type"`
}

// LocalStore keeps objects as files under a root directory, with the content
// type in a sidecar file.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage.NewLocalStore: failed to make path %q absolute: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("storage.NewLocalStore: failed to create path %q: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) pathForKey(key string) (string, error) {
	if err := cleanKey(key); err != nil {
		return "", err
	}
	if strings.HasSuffix(key, fsMetaSuffix) {
		return "", fmt.Errorf("%w: %q", errSidecarKey, key)
	}
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: key %q escapes root", key)
	}
	return full, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	full, err := s.pathForKey(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		os.Remove(full)
		return err
	}
	meta, err := json.Marshal(localMeta{ContentType: contentType})
	if err != nil {
		os.Remove(full)
		return err
	}
	if err := os.WriteFile(full+fsMetaSuffix, meta, 0o600); err != nil {
		os.Remove(full)
		return err
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	full, err := s.pathForKey(key)
	if errors.Is(err, errSidecarKey) {
		return nil, "", fmt.Errorf("%w: %s", ErrNoObject, key)
	}
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: %s", ErrNoObject, key)
	} else if err != nil {
		return nil, "", err
	}
	var meta localMeta
	if raw, err := os.ReadFile(full + fsMetaSuffix); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return data, meta.ContentType, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	full, err := s.pathForKey(key)
	if err != nil {
		return err
	}
	os.Remove(full + fsMetaSuffix)
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
