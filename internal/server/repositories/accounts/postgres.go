package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/dbx"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, serial_number, user_id, website, name, username, email, password, note,
	is_password_visible, is_auto_generated, logo, logo_status, logo_source,
	file_blob_id, file_name, file_content_type, file_size, file_upload_date,
	created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// NextSerial draws from account_serial_seq.
func (r *PostgresRepository) NextSerial(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('account_serial_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Create inserts a. An empty a.ID is filled with a new UUID.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	blobID, name, ctype, size, uploaded := fileArgs(a.AttachedFile)
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.SerialNumber, a.UserID, a.Website, a.Name, a.Username, a.Email, a.Password, a.Note,
		a.IsPasswordVisible, a.IsAutoGenerated, a.Logo, string(a.LogoStatus), string(a.LogoSource),
		blobID, name, ctype, size, uploaded,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return classifyError(err)
	}
	return nil
}

// Update overwrites every mutable column of a.
func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE accounts SET
			website = $2, name = $3, username = $4, email = $5, password = $6, note = $7,
			is_password_visible = $8, is_auto_generated = $9,
			logo = $10, logo_status = $11, logo_source = $12,
			file_blob_id = $13, file_name = $14, file_content_type = $15, file_size = $16, file_upload_date = $17,
			updated_at = $18
		WHERE id = $1
	`
	blobID, name, ctype, size, uploaded := fileArgs(a.AttachedFile)
	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.Website, a.Name, a.Username, a.Email, a.Password, a.Note,
		a.IsPasswordVisible, a.IsAutoGenerated,
		a.Logo, string(a.LogoStatus), string(a.LogoSource),
		blobID, name, ctype, size, uploaded,
		a.UpdatedAt,
	)
	if err != nil {
		return classifyError(err)
	}
	return expectOne(res)
}

// Delete removes the row with id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// GetByID loads one account.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// GetForUpdate implements Repository. Outside a transaction the lock is
// released as soon as the statement completes.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// ListByUser implements Repository.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY serial_number ASC`
	return r.list(ctx, query, userID)
}

// ListAll implements Repository.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY serial_number ASC`
	return r.list(ctx, query)
}

// FindByBlobID implements Repository.
func (r *PostgresRepository) FindByBlobID(ctx context.Context, userID, blobID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND file_blob_id = $2`
	return scanAccount(r.db.QueryRowContext(ctx, query, userID, blobID))
}

// ListBlobIDs implements Repository.
func (r *PostgresRepository) ListBlobIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT file_blob_id FROM accounts WHERE file_blob_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to select blob ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateLogo sets the logo columns only.
func (r *PostgresRepository) UpdateLogo(ctx context.Context, id, logo string, status models.LogoStatus, source models.LogoSource) error {
	query := `UPDATE accounts SET logo = $2, logo_status = $3, logo_source = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, logo, string(status), string(source), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select accounts: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	var (
		a                   models.Account
		status, source      string
		blobID, name, ctype sql.NullString
		size                sql.NullInt64
		uploaded            sql.NullTime
	)
	err := s.Scan(
		&a.ID, &a.SerialNumber, &a.UserID, &a.Website, &a.Name, &a.Username, &a.Email, &a.Password, &a.Note,
		&a.IsPasswordVisible, &a.IsAutoGenerated, &a.Logo, &status, &source,
		&blobID, &name, &ctype, &size, &uploaded,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.LogoStatus = models.LogoStatus(status)
	a.LogoSource = models.LogoSource(source)
	if blobID.Valid {
		a.AttachedFile = &models.AttachedFile{
			BlobID:      blobID.String,
			Filename:    name.String,
			ContentType: ctype.String,
			Size:        size.Int64,
			UploadDate:  uploaded.Time,
		}
	}
	return &a, nil
}

func fileArgs(f *models.AttachedFile) (blobID, name, ctype, size, uploaded any) {
	if f == nil {
		return nil, nil, nil, nil, nil
	}
	return f.BlobID, f.Filename, f.ContentType, f.Size, f.UploadDate
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", common.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", err)
}
