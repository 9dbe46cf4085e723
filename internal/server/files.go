// files.go - File registry: uploaded document metadata backed by Postgres.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// StoredFile maps a file identifier to its original filename, the object
// key in blob storage, and the uploader. Rows are immutable after creation.
type StoredFile struct {
	ID        int64
	Filename  string
	ObjectKey string
	OwnerID   int64
	CreatedAt time.Time
}

// FileStore persists file records.
type FileStore interface {
	FindByID(ctx context.Context, id int64) (StoredFile, error)
	Create(ctx context.Context, filename, objectKey string, ownerID int64) (StoredFile, error)
	List(ctx context.Context) ([]StoredFile, error)
}

type postgresFileStore struct {
	db *sql.DB
}

// NewFileStore returns a Postgres-backed FileStore.
func NewFileStore(db *sql.DB) FileStore {
	return &postgresFileStore{db: db}
}

func (s *postgresFileStore) FindByID(ctx context.Context, id int64) (StoredFile, error) {
	var f StoredFile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, object_key, owner_id, created_at
		 FROM files WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.Filename, &f.ObjectKey, &f.OwnerID, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, fmt.Errorf("find file: %w", err)
	}
	return f, nil
}

func (s *postgresFileStore) Create(ctx context.Context, filename, objectKey string, ownerID int64) (StoredFile, error) {
	var f StoredFile
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO files (filename, object_key, owner_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, filename, object_key, owner_id, created_at`,
		filename, objectKey, ownerID,
	).Scan(&f.ID, &f.Filename, &f.ObjectKey, &f.OwnerID, &f.CreatedAt)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create file record: %w", err)
	}
	return f, nil
}

func (s *postgresFileStore) List(ctx context.Context) ([]StoredFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, object_key, owner_id, created_at
		 FROM files ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredFile
	for rows.Next() {
		var f StoredFile
		if err := rows.Scan(&f.ID, &f.Filename, &f.ObjectKey, &f.OwnerID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
