package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

// rowQuerier is the part of *pgxpool.Pool the repository uses.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides access to user records by external identifier.
type Repository struct {
	db rowQuerier
}

// NewRepository builds a new record repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// FindByExternalID fetches the record owning externalID.
func (r *Repository) FindByExternalID(ctx context.Context, externalID string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
SELECT id, external_id, email, avatar_url, updated_at
FROM users
WHERE external_id = $1;`

	var rec Record
	err := r.db.QueryRow(ctx, query, externalID).Scan(
		&rec.ID,
		&rec.ExternalID,
		&rec.EmailAddress,
		&rec.AssetURL,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrEntityNotFound
		}
		return Record{}, fmt.Errorf("find user record: %w", err)
	}
	return rec, nil
}

// UpdateAssetURL writes the asset reference and modification time, scoped by externalID.
func (r *Repository) UpdateAssetURL(ctx context.Context, externalID, assetURL string, updatedAt time.Time) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE users
SET avatar_url = $2, updated_at = $3
WHERE external_id = $1
RETURNING id, external_id, email, avatar_url, updated_at;`

	var rec Record
	err := r.db.QueryRow(ctx, query, externalID, assetURL, updatedAt).Scan(
		&rec.ID,
		&rec.ExternalID,
		&rec.EmailAddress,
		&rec.AssetURL,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrEntityNotFound
		}
		return Record{}, fmt.Errorf("update user record: %w", err)
	}
	return rec, nil
}
