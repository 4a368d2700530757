package services

import (
	"context"
	"errors"
	"fmt"
	"image"

	"oct-review-service/internal/scan"
	"oct-review-service/internal/storage"
)

// loadImage fetches a stored scan or mask by its /media/ URL and decodes it.
func loadImage(ctx context.Context, media storage.Store, url string) (image.Image, error) {
	key, ok := storage.KeyFromURL(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, url)
	}
	data, contentType, err := media.Get(ctx, key)
	if errors.Is(err, storage.ErrNoObject) {
		return nil, fmt.Errorf("%w: %s", ErrMediaNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", url, err)
	}
	return scan.Decode(data, contentType)
}
