package dal

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no value is stored under the key
var ErrNotFound = errors.New("dal: key not found")

// Storage is the durable medium behind the document store. It holds opaque
// string blobs under fixed keys, the way browser local storage does.
type Storage interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// ImageStore serves tier image bytes by their reference path ("/images/x.png")
type ImageStore interface {
	GetImage(ctx context.Context, path string) ([]byte, error)
}
