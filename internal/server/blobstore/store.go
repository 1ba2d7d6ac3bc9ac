// Package blobstore stores attached-file payloads under opaque UUID ids.
// Two backends are provided: S3Store for any S3-compatible service and
// LocalStore for a plain filesystem directory.
package blobstore

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// DefaultMimeType is reported when a blob was stored without a content type.
const DefaultMimeType = "application/octet-stream"

// Metadata describes a stored blob.
type Metadata struct {
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PutResult is returned by a successful Put.
type PutResult struct {
	ID   string
	Size int64
}

// Store is the blob storage contract used by the account services.
//
// Put streams r in a single pass to a freshly generated id. It fails with
// common.ErrReadError when r fails and with common.ErrStorageUnavailable when
// the backend rejects the write; partial writes are never visible.
// Stat and Open fail with common.ErrorNotFound for unknown ids.
// Delete of a missing id succeeds.
type Store interface {
	Put(ctx context.Context, r io.Reader, meta Metadata) (PutResult, error)
	Stat(ctx context.Context, id string) (Metadata, error)
	Open(ctx context.Context, id string) (io.ReadCloser, Metadata, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// ValidID reports whether id has the shape of a blob id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

func newID() string {
	return uuid.NewString()
}

// sourceReader remembers the first non-EOF error returned by the caller's
// reader so it can be told apart from backend failures.
type sourceReader struct {
	ctx context.Context
	r   io.Reader
	n   int64
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := s.r.Read(p)
	s.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) && s.err == nil {
		s.err = err
	}
	return n, err
}

// ctxReadCloser stops reading once ctx is done.
type ctxReadCloser struct {
	ctx context.Context
	rc  io.ReadCloser
}

func (c *ctxReadCloser) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.rc.Read(p)
}

func (c *ctxReadCloser) Close() error {
	return c.rc.Close()
}
