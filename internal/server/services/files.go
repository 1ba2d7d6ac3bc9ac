package services

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// FileContent is an open attached-file stream ready to be served.
type FileContent struct {
	Reader      io.ReadCloser
	ContentType string
	Filename    string
	Size        int64
}

// FileGateway serves attached files to the account owner only.
type FileGateway struct {
	repos  repomanager.RepositoryManager
	blobs  blobstore.Store
	logger logging.Logger
}

func NewFileGateway(rm repomanager.RepositoryManager, blobs blobstore.Store, l logging.Logger) *FileGateway {
	return &FileGateway{repos: rm, blobs: blobs, logger: l.With("module", "file_gateway")}
}

// Open checks that blobID belongs to one of the caller's accounts and opens
// it. Unknown blobs and blobs of other users both yield common.ErrorNotFound.
// The caller must close FileContent.Reader.
func (g *FileGateway) Open(ctx context.Context, caller auth.Identity, blobID string) (*FileContent, error) {
	if !blobstore.ValidID(blobID) {
		return nil, common.ErrInvalidReference
	}

	if _, err := g.blobs.Stat(ctx, blobID); err != nil {
		return nil, err
	}

	a, err := g.repos.Accounts().FindByBlobID(ctx, caller.UserID, blobID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			g.logger.Debug(ctx, "blob not owned by caller", "blob", blobID, "user", caller.UserID)
		}
		return nil, err
	}

	rc, meta, err := g.blobs.Open(ctx, blobID)
	if err != nil {
		return nil, err
	}

	fc := &FileContent{
		Reader:      rc,
		ContentType: a.AttachedFile.ContentType,
		Filename:    a.AttachedFile.Filename,
		Size:        meta.Size,
	}
	if fc.ContentType == "" {
		fc.ContentType = meta.MimeType
	}
	if fc.ContentType == "" {
		fc.ContentType = blobstore.DefaultMimeType
	}
	if fc.Filename == "" {
		fc.Filename = meta.OriginalName
	}
	return fc, nil
}
