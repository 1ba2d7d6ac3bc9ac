// Package services implements the vault use cases on top of the repositories,
// the blob store and the logo resolver.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/events"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/logo"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
)

// LogoResolver is implemented by *logo.Resolver.
type LogoResolver interface {
	ResolveDetailed(ctx context.Context, website string) logo.Result
}

// AccountInput carries the user-editable fields of a new account.
type AccountInput struct {
	Website           string
	Name              string
	Username          string
	Email             string
	Password          string
	Note              string
	IsPasswordVisible bool
	IsAutoGenerated   bool
}

// AccountPatch carries the fields to change on update; nil means unchanged.
type AccountPatch struct {
	Website           *string
	Name              *string
	Username          *string
	Email             *string
	Password          *string
	Note              *string
	IsPasswordVisible *bool
	IsAutoGenerated   *bool

	// File replaces the attached file.
	File *FileUpload
	// RemoveFile detaches the current file. Ignored when File is set.
	RemoveFile bool
}

// AccountService orchestrates account mutations across the repository, the
// blob store and the logo resolver.
type AccountService struct {
	repos     repomanager.RepositoryManager
	blobs     blobstore.Store
	logos     LogoResolver
	events    events.Publisher
	logger    logging.Logger
	maxUpload int64
	now       func() time.Time
}

// NewAccountService wires the service. A nil publisher disables events and a
// non-positive maxUpload selects DefaultMaxUploadBytes.
func NewAccountService(rm repomanager.RepositoryManager, blobs blobstore.Store, logos LogoResolver,
	pub events.Publisher, l logging.Logger, maxUpload int64) *AccountService {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &AccountService{
		repos:     rm,
		blobs:     blobs,
		logos:     logos,
		events:    pub,
		logger:    l.With("module", "account_service"),
		maxUpload: maxUpload,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates in, allocates a serial, stores the optional file, resolves
// the logo and persists the account. If persisting fails the stored blob is
// deleted again.
func (s *AccountService) Create(ctx context.Context, caller auth.Identity, in AccountInput, file *FileUpload) (*models.Account, error) {
	a := &models.Account{
		UserID:            caller.UserID,
		Website:           in.Website,
		Name:              in.Name,
		Username:          in.Username,
		Email:             in.Email,
		Password:          in.Password,
		Note:              in.Note,
		IsPasswordVisible: in.IsPasswordVisible,
		IsAutoGenerated:   in.IsAutoGenerated,
	}
	a.Normalize()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := validateUpload(file, s.maxUpload); err != nil {
		return nil, err
	}

	serial, err := s.repos.Accounts().NextSerial(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate serial: %w", err)
	}
	a.SerialNumber = serial

	if file != nil {
		af, err := s.storeFile(ctx, file)
		if err != nil {
			return nil, err
		}
		a.AttachedFile = af
	}

	s.applyLogo(ctx, a)

	if err := s.repos.Accounts().Create(ctx, a); err != nil {
		if a.AttachedFile != nil {
			s.deleteBlob(ctx, a.AttachedFile.BlobID, "compensating delete after failed create")
		}
		return nil, err
	}

	s.publish(ctx, events.AccountCreated, a)
	s.logger.Info(ctx, "account created", "id", a.ID, "serial", a.SerialNumber, "user", a.UserID)
	return a, nil
}

// Update applies patch to the caller's account id. A new file is stored
// before anything is persisted; the replaced or removed blob is deleted
// best-effort after the record is saved.
func (s *AccountService) Update(ctx context.Context, caller auth.Identity, id string, patch AccountPatch) (*models.Account, error) {
	current, err := s.owned(ctx, caller, id, false)
	if err != nil {
		return nil, err
	}

	next := *current
	applyPatch(&next, patch)
	next.Normalize()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := validateUpload(patch.File, s.maxUpload); err != nil {
		return nil, err
	}

	var newFile *models.AttachedFile
	if patch.File != nil {
		newFile, err = s.storeFile(ctx, patch.File)
		if err != nil {
			return nil, err
		}
	}

	if logo.Clean(next.Website) != logo.Clean(current.Website) || next.Logo == "" {
		s.applyLogo(ctx, &next)
	}

	var oldBlob string
	err = s.repos.WithinTx(ctx, func(ctx context.Context, repo accounts.Repository) error {
		latest, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next.AttachedFile = latest.AttachedFile
		switch {
		case newFile != nil:
			next.AttachedFile = newFile
		case patch.RemoveFile:
			next.AttachedFile = nil
		}
		if latest.AttachedFile != nil && (next.AttachedFile == nil || next.AttachedFile.BlobID != latest.AttachedFile.BlobID) {
			oldBlob = latest.AttachedFile.BlobID
		}
		return repo.Update(ctx, &next)
	})
	if err != nil {
		if newFile != nil {
			s.deleteBlob(ctx, newFile.BlobID, "compensating delete after failed update")
		}
		return nil, err
	}

	if oldBlob != "" {
		s.deleteBlob(ctx, oldBlob, "delete replaced blob")
	}

	s.publish(ctx, events.AccountUpdated, &next)
	return &next, nil
}

// Delete removes an account owned by the caller (or any account for an
// admin). The blob is deleted first; a failure there is logged and the
// record is removed anyway.
func (s *AccountService) Delete(ctx context.Context, caller auth.Identity, id string) error {
	a, err := s.owned(ctx, caller, id, true)
	if err != nil {
		return err
	}

	if a.AttachedFile != nil {
		s.deleteBlob(ctx, a.AttachedFile.BlobID, "delete blob of removed account")
	}

	if err := s.repos.Accounts().Delete(ctx, a.ID); err != nil {
		return err
	}

	s.publish(ctx, events.AccountDeleted, a)
	s.logger.Info(ctx, "account deleted", "id", a.ID, "user", a.UserID)
	return nil
}

// Get returns one account visible to the caller.
func (s *AccountService) Get(ctx context.Context, caller auth.Identity, id string) (*models.Account, error) {
	return s.owned(ctx, caller, id, true)
}

// List returns the caller's accounts ordered by serial number.
func (s *AccountService) List(ctx context.Context, caller auth.Identity) ([]*models.Account, error) {
	list, err := s.repos.Accounts().ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*models.Account{}
	}
	return list, nil
}

// owned loads id and checks the caller may see it. Foreign accounts are
// reported as not found.
func (s *AccountService) owned(ctx context.Context, caller auth.Identity, id string, adminAllowed bool) (*models.Account, error) {
	a, err := s.repos.Accounts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != caller.UserID && !(adminAllowed && caller.IsAdmin()) {
		return nil, common.ErrorNotFound
	}
	return a, nil
}

func (s *AccountService) storeFile(ctx context.Context, f *FileUpload) (*models.AttachedFile, error) {
	// one extra byte detects oversize streams with an unknown declared size
	limited := io.LimitReader(f.Reader, s.maxUpload+1)
	res, err := s.blobs.Put(ctx, limited, blobstore.Metadata{
		OriginalName: f.Filename,
		MimeType:     f.ContentType,
		Size:         f.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	if res.Size > s.maxUpload {
		s.deleteBlob(ctx, res.ID, "delete oversize upload")
		return nil, common.NewValidationError("attachedFile", fmt.Sprintf("must not exceed %d bytes", s.maxUpload))
	}

	return &models.AttachedFile{
		BlobID:      res.ID,
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Size:        res.Size,
		UploadDate:  s.now(),
	}, nil
}

func (s *AccountService) applyLogo(ctx context.Context, a *models.Account) {
	res := s.logos.ResolveDetailed(ctx, a.Website)
	a.Logo, a.LogoStatus, a.LogoSource = res.URL, res.Status, res.Source
}

func (s *AccountService) deleteBlob(ctx context.Context, id, reason string) {
	// must run even when the request ctx is done
	ctx = context.WithoutCancel(ctx)
	if err := s.blobs.Delete(ctx, id); err != nil {
		s.logger.Warn(ctx, "blob delete failed", "blob", id, "reason", reason, "error", err)
	}
}

func (s *AccountService) publish(ctx context.Context, t events.Type, a *models.Account) {
	e := events.Event{
		Type:         t,
		AccountID:    a.ID,
		UserID:       a.UserID,
		SerialNumber: a.SerialNumber,
		Website:      a.Website,
		OccurredAt:   s.now(),
	}
	if a.AttachedFile != nil {
		e.BlobID = a.AttachedFile.BlobID
	}
	if err := s.events.Publish(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn(ctx, "publish event failed", "type", t, "account", a.ID, "error", err)
	}
}

func applyPatch(a *models.Account, p AccountPatch) {
	if p.Website != nil {
		a.Website = *p.Website
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Password != nil {
		a.Password = *p.Password
	}
	if p.Note != nil {
		a.Note = *p.Note
	}
	if p.IsPasswordVisible != nil {
		a.IsPasswordVisible = *p.IsPasswordVisible
	}
	if p.IsAutoGenerated != nil {
		a.IsAutoGenerated = *p.IsAutoGenerated
	}
}
