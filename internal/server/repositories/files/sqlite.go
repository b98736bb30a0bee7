package files

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chunkvault/internal/dbx"
	"github.com/dmitrijs2005/chunkvault/internal/server/models"
)

// SQLiteRepository implements Repository for the modernc.org/sqlite driver.
type SQLiteRepository struct {
	sqlRepository
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{sqlRepository{db: db, q: queries{
		insertChunk: `INSERT INTO file_chunks (file_id, seq, reference) VALUES (?, ?, ?)`,
		selectFile: `SELECT id, file_name, file_type, file_size, total_chunks, nonce, compressed, created_at
			FROM files WHERE id=?`,
		selectChunks: `SELECT reference FROM file_chunks WHERE file_id=? ORDER BY seq`,
		selectFiles: `SELECT id, file_name, file_type, file_size, total_chunks, nonce, compressed, created_at
			FROM files ORDER BY id`,
		selectAll:    `SELECT file_id, reference FROM file_chunks ORDER BY file_id, seq`,
		totalSize:    `SELECT COALESCE(SUM(file_size), 0) FROM files`,
		deleteChunks: `DELETE FROM file_chunks WHERE file_id=?`,
		deleteFile:   `DELETE FROM files WHERE id=?`,
	}}}
}

func (r *SQLiteRepository) Insert(ctx context.Context, rec *models.FileRecord) (int64, error) {
	query := `INSERT INTO files (file_name, file_type, file_size, total_chunks, nonce, compressed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	createdAt := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx, query,
		rec.FileName, rec.FileType, rec.FileSize, rec.TotalChunks, rec.Nonce, rec.Compressed, createdAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = createdAt

	if err := r.insertChunks(ctx, id, rec.ChunkReferences); err != nil {
		return 0, err
	}

	return id, nil
}
