package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Billy-Davies-2/mitzi/internal/dal"
	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp"
)

// ErrImageNotFound is returned when no source has the referenced image
var ErrImageNotFound = errors.New("image not found")

// ImageResolver turns a tier image reference into a decoded image
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (image.Image, error)
}

// MaxRemoteImageBytes caps the body of a remote tier image
const MaxRemoteImageBytes = 10 << 20

// Images resolves http(s) references remotely. Other references are looked up in
// the database image store, then in the static directory.
type Images struct {
	staticDir   string
	store       dal.ImageStore
	client      *resty.Client
	remoteLimit int
}

// ImagesOption configures Images
type ImagesOption func(*Images)

// WithImageStore looks references up in a database image table first
func WithImageStore(s dal.ImageStore) ImagesOption {
	return func(i *Images) {
		i.store = s
	}
}

// WithRemoteClient sets the client used for remote images
func WithRemoteClient(c *resty.Client) ImagesOption {
	return func(i *Images) {
		i.client = c
	}
}

// WithRemoteLimit changes the largest remote image accepted, in bytes
func WithRemoteLimit(n int) ImagesOption {
	return func(i *Images) {
		i.remoteLimit = n
	}
}

func NewImages(staticDir string, opts ...ImagesOption) *Images {
	i := &Images{
		staticDir:   staticDir,
		client:      resty.New().SetTimeout(10 * time.Second),
		remoteLimit: MaxRemoteImageBytes,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Images) Resolve(ctx context.Context, ref string) (image.Image, error) {
	if ref == "" {
		return nil, ErrImageNotFound
	}
	data, err := i.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return img, nil
}

func (i *Images) fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		resp, err := i.client.R().SetContext(ctx).SetResponseBodyLimit(i.remoteLimit).Get(ref)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", ref, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("%w: %s returned %d", ErrImageNotFound, ref, resp.StatusCode())
		}
		return resp.Body(), nil
	}

	if i.store != nil {
		data, err := i.store.GetImage(ctx, ref)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, dal.ErrNotFound) {
			return nil, err
		}
	}

	if i.staticDir == "" {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, ref)
	}
	// References are site-absolute ("/images/x.png"); keep them inside staticDir.
	path := filepath.Join(i.staticDir, filepath.FromSlash(filepath.Clean("/"+ref)))
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, ref)
	}
	return data, err
}
