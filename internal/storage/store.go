// Package storage keeps the processed images that scoring results refer to.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImageStore persists processed images and returns a URL clients can use
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewResultKey returns a fresh date-partitioned key for a processed image
func NewResultKey(now time.Time) string {
	return fmt.Sprintf("results/%04d/%02d/%02d/%s.png", now.Year(), int(now.Month()), now.Day(), uuid.New())
}
