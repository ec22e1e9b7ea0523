// Package archive stores the result archive of a completed job.
//
// A completed job yields a download reference. Fetch retrieves it through the
// transport client and hands the body to a Sink backed by a Lode store, either
// a local directory or an S3 bucket.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/mwi/iox"
	"github.com/pithecene-io/mwi/metrics"
	"github.com/pithecene-io/mwi/submit"
	"github.com/pithecene-io/mwi/transport"
)

// Sink stores a named archive and returns its location.
type Sink interface {
	// Save consumes r completely. The returned location is a path or URI.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Kind names the backend ("file" or "s3").
	Kind() string
}

// StoreSink writes archives to a Lode store. The store is created lazily on
// the first Save, so a sink for an unreachable backend can still be built.
type StoreSink struct {
	kind     string
	factory  lode.StoreFactory
	locate   func(key string) string
	once     sync.Once
	store    lode.Store
	storeErr error
}

// NewStoreSink creates a sink over factory. locate maps a stored key to the
// location reported to callers.
func NewStoreSink(kind string, factory lode.StoreFactory, locate func(key string) string) (*StoreSink, error) {
	if factory == nil {
		return nil, errors.New("store factory is required")
	}
	if locate == nil {
		locate = func(key string) string { return key }
	}
	return &StoreSink{kind: kind, factory: factory, locate: locate}, nil
}

// NewFileSink creates a sink for dir, creating the directory if needed.
func NewFileSink(dir string) (*StoreSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("file sink requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return NewStoreSink("file", lode.NewFSFactory(dir), func(key string) string {
		return filepath.Join(dir, filepath.FromSlash(key))
	})
}

// Kind implements Sink.
func (s *StoreSink) Kind() string { return s.kind }

// Key returns the store key for an archive name.
func (s *StoreSink) Key(name string) string { return archiveName(name) }

// Save reads r fully before touching the store, so a failed download never
// leaves a partial archive behind. An existing archive with the same name is
// replaced.
func (s *StoreSink) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(contextReader{ctx: ctx, r: r})
	if err != nil {
		return "", fmt.Errorf("read archive: %w", err)
	}

	store, err := s.getOrCreateStore()
	if err != nil {
		return "", fmt.Errorf("archive store init failed: %w", err)
	}

	key := s.Key(name)
	exists, err := store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", key, err)
	}
	if exists {
		if err := store.Delete(ctx, key); err != nil {
			return "", fmt.Errorf("replace %s: %w", key, err)
		}
	}
	if err := store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return s.locate(key), nil
}

// getOrCreateStore lazily initializes the store from the factory.
func (s *StoreSink) getOrCreateStore() (lode.Store, error) {
	s.once.Do(func() {
		s.store, s.storeErr = s.factory()
	})
	return s.store, s.storeErr
}

// archiveName sanitizes a server-provided name, falling back to a default.
func archiveName(name string) string {
	if clean := submit.SanitizeFilename(name); clean != "" {
		return clean
	}
	return "download.zip"
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Downloader opens a result archive by reference. *transport.Client implements it.
type Downloader interface {
	Download(ctx context.Context, ref string) (*transport.Download, error)
}

// Result describes a stored archive.
type Result struct {
	Name     string
	Location string
	Bytes    int64
}

// Fetch downloads the archive ref points to and stores it in sink.
func Fetch(ctx context.Context, d Downloader, ref string, sink Sink, collector *metrics.Collector) (*Result, error) {
	dl, err := d.Download(ctx, ref)
	if err != nil {
		collector.IncArchiveFailure()
		return nil, fmt.Errorf("download %s: %w", ref, err)
	}
	defer iox.DiscardClose(dl.Body)

	counter := &countingReader{r: dl.Body}
	location, err := sink.Save(ctx, dl.Name, counter)
	if err != nil {
		collector.IncArchiveFailure()
		return nil, fmt.Errorf("store %s: %w", dl.Name, err)
	}
	collector.IncArchiveSave()

	return &Result{Name: dl.Name, Location: location, Bytes: counter.n}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// S3Scheme prefixes destinations that name an S3 bucket.
const S3Scheme = "s3://"

// IsS3Destination reports whether dest is an "s3://bucket[/prefix]" destination.
func IsS3Destination(dest string) bool {
	return strings.HasPrefix(dest, S3Scheme)
}
