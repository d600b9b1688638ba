// Package testutil provides helpers for examples and tests.
package testutil

import (
	"context"
	"os"
	"slices"

	"github.com/pithecene-io/bucketfile/bucketfile"
)

// RemoveAll removes the path and any children. Errors are ignored.
// Use for defer cleanup in examples and tests.
//
// Usage:
//
//	defer testutil.RemoveAll(tmpDir)
func RemoveAll(path string) { _ = os.RemoveAll(path) }

// Seed uploads objects (key to body) to bucket in key order, with no
// content type.
func Seed(ctx context.Context, conn bucketfile.Connector, bucket string, objects map[string]string) error {
	keys := make([]string, 0, len(objects))
	for k := range objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := conn.PutObject(ctx, bucket, k, []byte(objects[k]), ""); err != nil {
			return err
		}
	}
	return nil
}
