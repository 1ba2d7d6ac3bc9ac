// Package accounts persists vault Account records.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

// SerialBase is the serial number assigned to the first account.
const SerialBase int64 = 1000

// Repository is the account persistence contract.
//
// Create and Update return common.ErrDuplicateKey on uniqueness violations.
// Lookups and mutations of a missing id return common.ErrorNotFound.
type Repository interface {
	// NextSerial atomically allocates the next serial number.
	NextSerial(ctx context.Context) (int64, error)
	Create(ctx context.Context, a *models.Account) error
	Update(ctx context.Context, a *models.Account) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	// GetForUpdate is GetByID that also locks the row until the surrounding
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Account, error)
	// ListByUser returns the user's accounts ordered by serial number.
	ListByUser(ctx context.Context, userID string) ([]*models.Account, error)
	ListAll(ctx context.Context) ([]*models.Account, error)
	// FindByBlobID returns the account of userID that owns blobID.
	FindByBlobID(ctx context.Context, userID, blobID string) (*models.Account, error)
	// ListBlobIDs returns every blob id referenced by an account.
	ListBlobIDs(ctx context.Context) ([]string, error)
	UpdateLogo(ctx context.Context, id, logo string, status models.LogoStatus, source models.LogoSource) error
}
