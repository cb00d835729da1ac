// Package storage keeps avatar content. LocalStore writes files under the
// upload directory; S3Store puts objects into a bucket.
package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userhub/internal/filex"
)

// BlobStore reads and writes named blobs. Reading or deleting a missing
// blob returns an error wrapping fs.ErrNotExist.
type BlobStore interface {
	Write(ctx context.Context, name, contentType string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
}

func checkName(name string) error {
	if !filex.IsPlainName(name) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
