// Package datasource defines where raw bytes come from. Implementations live
// in sub-packages: file (local disk), httpds (HTTP with retry) and gcs
// (Google Cloud Storage).
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh reader over one object per call.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the object in logs and notices (path, URL, gs:// URI).
	Name() string
}
