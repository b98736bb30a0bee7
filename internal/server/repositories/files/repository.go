// Package files implements the metadata catalog over SQL: one row per file
// in "files" and one row per chunk reference in "file_chunks", keyed by
// (file_id, seq).
package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/dmitrijs2005/chunkvault/internal/dbx"
	"github.com/dmitrijs2005/chunkvault/internal/server/models"
)

// Repository is the catalog storage contract. Insert and DeleteByID touch
// two tables and are expected to run on a transactional DBTX.
type Repository interface {
	Insert(ctx context.Context, rec *models.FileRecord) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.FileRecord, error)
	ListAll(ctx context.Context) ([]*models.FileRecord, error)
	TotalSize(ctx context.Context) (int64, error)
	DeleteByID(ctx context.Context, id int64) error
}

// queries holds the dialect-specific statements.
type queries struct {
	insertChunk  string
	selectFile   string
	selectChunks string
	selectFiles  string
	selectAll    string
	totalSize    string
	deleteChunks string
	deleteFile   string
}

// sqlRepository carries the dialect-independent read and delete logic.
type sqlRepository struct {
	db dbx.DBTX
	q  queries
}

func (r *sqlRepository) insertChunks(ctx context.Context, id int64, refs []string) error {
	for i, ref := range refs {
		if _, err := r.db.ExecContext(ctx, r.q.insertChunk, id, i+1, ref); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i+1, err)
		}
	}
	return nil
}

func scanFile(row interface{ Scan(...any) error }) (*models.FileRecord, error) {
	rec := &models.FileRecord{}
	err := row.Scan(&rec.ID, &rec.FileName, &rec.FileType, &rec.FileSize, &rec.TotalChunks,
		&rec.Nonce, &rec.Compressed, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetByID returns the record with its chunk references in sequence order,
// or common.ErrNotFound.
func (r *sqlRepository) GetByID(ctx context.Context, id int64) (*models.FileRecord, error) {
	rec, err := scanFile(r.db.QueryRowContext(ctx, r.q.selectFile, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, r.q.selectChunks, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select chunks: %w", err)
	}
	defer rows.Close()

	rec.ChunkReferences = make([]string, 0, rec.TotalChunks)
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		rec.ChunkReferences = append(rec.ChunkReferences, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(rec.ChunkReferences) != rec.TotalChunks {
		return nil, fmt.Errorf("file %d: catalog holds %d chunk references, expected %d",
			id, len(rec.ChunkReferences), rec.TotalChunks)
	}

	return rec, nil
}

// ListAll returns every record ordered by id, chunk references included.
func (r *sqlRepository) ListAll(ctx context.Context) ([]*models.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, r.q.selectFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}

	var result []*models.FileRecord
	byID := make(map[int64]*models.FileRecord)
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rec.ChunkReferences = make([]string, 0, rec.TotalChunks)
		result = append(result, rec)
		byID[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	chunks, err := r.db.QueryContext(ctx, r.q.selectAll)
	if err != nil {
		return nil, fmt.Errorf("failed to select chunks: %w", err)
	}
	defer chunks.Close()

	for chunks.Next() {
		var id int64
		var ref string
		if err := chunks.Scan(&id, &ref); err != nil {
			return nil, err
		}
		if rec, ok := byID[id]; ok {
			rec.ChunkReferences = append(rec.ChunkReferences, ref)
		}
	}
	if err := chunks.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// TotalSize returns the sum of file_size over all records.
func (r *sqlRepository) TotalSize(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, r.q.totalSize).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}
	return total, nil
}

// DeleteByID removes the record and its chunk rows. Exactly one file row
// must be affected; zero means common.ErrNotFound.
func (r *sqlRepository) DeleteByID(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, r.q.deleteChunks, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.q.deleteFile, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	switch ra {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
}
