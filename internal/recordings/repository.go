package recordings

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidvault/backend/internal/models"
)

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a recording and fills in the store-assigned id and
// created_at. The caller must have durably stored the blob first.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (filename, location, filesize)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, rec.Filename, rec.Location, rec.Filesize).
		Scan(&rec.ID, &rec.CreatedAt)
}

// List returns all recordings, newest (highest id) first.
func (r *Repository) List(ctx context.Context) ([]models.Recording, error) {
	const q = `SELECT id, filename, location, filesize, created_at
		FROM recordings ORDER BY id DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Location, &rec.Filesize, &rec.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// GetByID returns a recording by id, or (nil, nil) when absent.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Recording, error) {
	const q = `SELECT id, filename, location, filesize, created_at
		FROM recordings WHERE id = $1`
	var rec models.Recording
	err := r.pool.QueryRow(ctx, q, id).Scan(&rec.ID, &rec.Filename, &rec.Location, &rec.Filesize, &rec.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
