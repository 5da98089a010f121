// Package gcs implements a datasource.Source over a Google Cloud Storage
// object. The yearly extracts and the code book are published in a bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrNotFound reports a missing bucket or object.
var ErrNotFound = errors.New("gcs: object not found")

// Config names the object and how to authenticate.
type Config struct {
	Bucket string
	Object string
	// CredentialsFile is a service-account JSON key. When empty, application
	// default credentials are used (GOOGLE_APPLICATION_CREDENTIALS, metadata
	// server).
	CredentialsFile string
	// Endpoint overrides the API endpoint (emulators, tests).
	Endpoint string
	// Anonymous skips authentication; for public buckets and emulators.
	Anonymous bool
}

// Source reads one object. The client is opened per Open call and closed
// with the returned reader.
type Source struct {
	cfg Config
}

// New validates cfg and returns a Source.
func New(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.Bucket) == "" || strings.TrimSpace(cfg.Object) == "" {
		return nil, fmt.Errorf("gcs: bucket and object are required")
	}
	return &Source{cfg: cfg}, nil
}

// ParseURI splits "gs://bucket/path/to/object" into bucket and object.
func ParseURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("gcs: %q is not a gs:// URI", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gcs: %q must name a bucket and an object", uri)
	}
	return bucket, object, nil
}

// Name returns the gs:// URI of the object.
func (s *Source) Name() string { return "gs://" + s.cfg.Bucket + "/" + s.cfg.Object }

// ClientOptions returns the client options implied by cfg.
func (c Config) ClientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	if c.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	return opts
}

// Open starts reading the object.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	client, err := storage.NewClient(ctx, s.cfg.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	r, err := client.Bucket(s.cfg.Bucket).Object(s.cfg.Object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Name())
		}
		return nil, fmt.Errorf("open %s: %w", s.Name(), err)
	}
	return &reader{Reader: r, client: client}, nil
}

// reader closes the client together with the object reader.
type reader struct {
	*storage.Reader
	client *storage.Client
}

func (r *reader) Close() error {
	rerr := r.Reader.Close()
	if err := r.client.Close(); err != nil && rerr == nil {
		return err
	}
	return rerr
}
