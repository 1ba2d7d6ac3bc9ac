package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/filex"
)

const metaSuffix = ".json"

// LocalStore keeps blobs as files under root: <id> holds the bytes and
// <id>.json the metadata. Writes go through root/tmp and are renamed into place.
type LocalStore struct {
	root string
	tmp  string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore prepares root and its tmp directory.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	tmp, err := filex.EnsureDir(filepath.Join(abs, "tmp"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	return &LocalStore{root: abs, tmp: tmp}, nil
}

func (s *LocalStore) dataPath(id string) (string, error) {
	if !ValidID(id) {
		return "", common.ErrorNotFound
	}
	return filepath.Join(s.root, id), nil
}

// Put implements Store.
func (s *LocalStore) Put(ctx context.Context, r io.Reader, meta Metadata) (PutResult, error) {
	f, err := os.CreateTemp(s.tmp, "upload-*")
	if err != nil {
		return PutResult{}, fmt.Errorf("%w: create temp: %w", common.ErrStorageUnavailable, err)
	}
	tmpName := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmpName)
		}
	}()

	src := &sourceReader{ctx: ctx, r: r}
	if _, err := io.Copy(f, src); err != nil {
		switch {
		case ctx.Err() != nil:
			return PutResult{}, ctx.Err()
		case src.err != nil:
			return PutResult{}, fmt.Errorf("%w: %w", common.ErrReadError, src.err)
		default:
			return PutResult{}, fmt.Errorf("%w: write: %w", common.ErrStorageUnavailable, err)
		}
	}
	if err := f.Sync(); err != nil {
		return PutResult{}, fmt.Errorf("%w: sync: %w", common.ErrStorageUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return PutResult{}, fmt.Errorf("%w: close: %w", common.ErrStorageUnavailable, err)
	}

	id := newID()
	meta.Size = src.n
	if meta.MimeType == "" {
		meta.MimeType = DefaultMimeType
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return PutResult{}, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := filex.WriteFileAtomic(s.tmp, filepath.Join(s.root, id+metaSuffix), b); err != nil {
		return PutResult{}, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, id)); err != nil {
		_ = os.Remove(filepath.Join(s.root, id+metaSuffix))
		return PutResult{}, fmt.Errorf("%w: rename: %w", common.ErrStorageUnavailable, err)
	}
	committed = true

	return PutResult{ID: id, Size: src.n}, nil
}

// Stat implements Store.
func (s *LocalStore) Stat(ctx context.Context, id string) (Metadata, error) {
	p, err := s.dataPath(id)
	if err != nil {
		return Metadata{}, err
	}
	if _, err := os.Stat(p); err != nil {
		return Metadata{}, classifyFSError(err)
	}

	b, err := os.ReadFile(p + metaSuffix)
	if err != nil {
		return Metadata{}, classifyFSError(err)
	}
	var meta Metadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata %s: %w", id, err)
	}
	return meta, nil
}

// Open implements Store. The returned reader stops once ctx is done.
func (s *LocalStore) Open(ctx context.Context, id string) (io.ReadCloser, Metadata, error) {
	meta, err := s.Stat(ctx, id)
	if err != nil {
		return nil, Metadata{}, err
	}
	p, _ := s.dataPath(id)
	f, err := os.Open(p)
	if err != nil {
		return nil, Metadata{}, classifyFSError(err)
	}
	return &ctxReadCloser{ctx: ctx, rc: f}, meta, nil
}

// Delete implements Store.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	p, err := s.dataPath(id)
	if err != nil {
		return nil
	}
	for _, name := range []string{p, p + metaSuffix} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %w", common.ErrStorageUnavailable, filepath.Base(name), err)
		}
	}
	return nil
}

// List implements Store.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir: %w", common.ErrStorageUnavailable, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), metaSuffix) || !ValidID(e.Name()) {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

func classifyFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
}
