/*
Source implementations. DirSource covers the local-filesystem case,
ObjectSource reads from any S3-compatible store through minio.
*/
package corpus

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Decoders for everything Fetch may meet.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/minio/minio-go/v7"
)

// DirSource reads candidate images from a directory tree. Keys are file
// paths; files without an image extension are not even listed.
type DirSource struct {
	Dir string
}

func (s DirSource) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, 128)
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg", ".png", ".gif":
			keys = append(keys, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s DirSource) Fetch(_ context.Context, key string) (image.Image, error) {
	f, err := os.Open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return img, nil
}

// ObjectSource reads candidate images from a bucket. The client is
// injected so callers keep control over endpoint and credentials.
type ObjectSource struct {
	Client *minio.Client
	Bucket string
	Prefix string
}

func (s ObjectSource) Keys(ctx context.Context) ([]string, error) {
	opts := minio.ListObjectsOptions{Prefix: s.Prefix, Recursive: true}

	keys := make([]string, 0, 128)
	for obj := range s.Client.ListObjects(ctx, s.Bucket, opts) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	// Listing order isn't guaranteed across stores, key order is.
	sort.Strings(keys)
	return keys, nil
}

func (s ObjectSource) Fetch(ctx context.Context, key string) (image.Image, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	img, _, err := image.Decode(obj)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return img, nil
}
