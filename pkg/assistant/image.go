package assistant

import (
	"encoding/base64"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultImageCacheSize bounds the number of encoded screenshots kept in memory.
const DefaultImageCacheSize = 8

// ImageEncoder reads screenshot files and base64-encodes them. Screenshot
// files are immutable, so encodings are cached by path.
type ImageEncoder struct {
	cache *lru.Cache[string, string]
}

// NewImageEncoder creates an encoder caching up to size images.
func NewImageEncoder(size int) (*ImageEncoder, error) {
	if size <= 0 {
		size = DefaultImageCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating image cache: %w", err)
	}
	return &ImageEncoder{cache: cache}, nil
}

// Encode returns the base64 encoding of the file at path.
func (e *ImageEncoder) Encode(path string) (string, error) {
	if encoded, ok := e.cache.Get(path); ok {
		return encoded, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	e.cache.Add(path, encoded)
	return encoded, nil
}
