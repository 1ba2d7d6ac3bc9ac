package accounts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository enforcing the same
// uniqueness rules as the PostgreSQL schema. Records are copied on the way
// in and out.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]*models.Account
	serial atomic.Int64
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty repository whose first serial is SerialBase.
func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{byID: make(map[string]*models.Account)}
	r.serial.Store(SerialBase - 1)
	return r
}

// NextSerial implements Repository.
func (r *MemoryRepository) NextSerial(ctx context.Context) (int64, error) {
	return r.serial.Add(1), nil
}

// Import loads existing records and moves the serial counter past them.
func (r *MemoryRepository) Import(list []*models.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range list {
		r.byID[a.ID] = clone(a)
		for {
			cur := r.serial.Load()
			if a.SerialNumber <= cur || r.serial.CompareAndSwap(cur, a.SerialNumber) {
				break
			}
		}
	}
}

// Create implements Repository.
func (r *MemoryRepository) Create(ctx context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, ok := r.byID[a.ID]; ok {
		return fmt.Errorf("%w: accounts_pkey", common.ErrDuplicateKey)
	}
	if err := r.checkUnique(a); err != nil {
		return err
	}

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.byID[a.ID] = clone(a)
	return nil
}

// Update implements Repository.
func (r *MemoryRepository) Update(ctx context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[a.ID]
	if !ok {
		return common.ErrorNotFound
	}
	a.SerialNumber = cur.SerialNumber
	a.UserID = cur.UserID
	a.CreatedAt = cur.CreatedAt
	if err := r.checkUnique(a); err != nil {
		return err
	}

	a.UpdatedAt = time.Now().UTC()
	r.byID[a.ID] = clone(a)
	return nil
}

// Delete implements Repository.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.byID, id)
	return nil
}

// GetByID implements Repository.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(a), nil
}

// GetForUpdate implements Repository. The in-memory manager serializes
// transactions, so no row lock is needed.
func (r *MemoryRepository) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return r.GetByID(ctx, id)
}

// ListByUser implements Repository.
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*models.Account, error) {
	return r.filter(func(a *models.Account) bool { return a.UserID == userID }), nil
}

// ListAll implements Repository.
func (r *MemoryRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	return r.filter(func(*models.Account) bool { return true }), nil
}

// FindByBlobID implements Repository.
func (r *MemoryRepository) FindByBlobID(ctx context.Context, userID, blobID string) (*models.Account, error) {
	found := r.filter(func(a *models.Account) bool {
		return a.UserID == userID && a.AttachedFile != nil && a.AttachedFile.BlobID == blobID
	})
	if len(found) == 0 {
		return nil, common.ErrorNotFound
	}
	return found[0], nil
}

// ListBlobIDs implements Repository.
func (r *MemoryRepository) ListBlobIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, a := range r.byID {
		if a.AttachedFile != nil {
			ids = append(ids, a.AttachedFile.BlobID)
		}
	}
	return ids, nil
}

// UpdateLogo implements Repository.
func (r *MemoryRepository) UpdateLogo(ctx context.Context, id, logo string, status models.LogoStatus, source models.LogoSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.Logo, a.LogoStatus, a.LogoSource = logo, status, source
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) filter(keep func(*models.Account) bool) []*models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Account
	for _, a := range r.byID {
		if keep(a) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out
}

// checkUnique mirrors the table constraints. Caller holds mu.
func (r *MemoryRepository) checkUnique(a *models.Account) error {
	for id, o := range r.byID {
		if id == a.ID {
			continue
		}
		switch {
		case o.SerialNumber == a.SerialNumber && a.SerialNumber != 0:
			return fmt.Errorf("%w: accounts_serial_number_key", common.ErrDuplicateKey)
		case o.Username == a.Username && o.Website == a.Website:
			return fmt.Errorf("%w: accounts_username_website_key", common.ErrDuplicateKey)
		case o.Email == a.Email && o.Website == a.Website:
			return fmt.Errorf("%w: accounts_email_website_key", common.ErrDuplicateKey)
		case a.AttachedFile != nil && o.AttachedFile != nil && o.AttachedFile.BlobID == a.AttachedFile.BlobID:
			return fmt.Errorf("%w: accounts_file_blob_id_key", common.ErrDuplicateKey)
		}
	}
	return nil
}

func clone(a *models.Account) *models.Account {
	c := *a
	if a.AttachedFile != nil {
		f := *a.AttachedFile
		c.AttachedFile = &f
	}
	return &c
}
