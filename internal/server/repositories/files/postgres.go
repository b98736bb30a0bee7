package files

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/chunkvault/internal/dbx"
	"github.com/dmitrijs2005/chunkvault/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx)
// backed by the pgx driver.
type PostgresRepository struct {
	sqlRepository
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{sqlRepository{db: db, q: queries{
		insertChunk: `INSERT INTO file_chunks (file_id, seq, reference) VALUES ($1, $2, $3)`,
		selectFile: `SELECT id, file_name, file_type, file_size, total_chunks, nonce, compressed, created_at
			FROM files WHERE id=$1`,
		selectChunks: `SELECT reference FROM file_chunks WHERE file_id=$1 ORDER BY seq`,
		selectFiles: `SELECT id, file_name, file_type, file_size, total_chunks, nonce, compressed, created_at
			FROM files ORDER BY id`,
		selectAll:    `SELECT file_id, reference FROM file_chunks ORDER BY file_id, seq`,
		totalSize:    `SELECT COALESCE(SUM(file_size), 0) FROM files`,
		deleteChunks: `DELETE FROM file_chunks WHERE file_id=$1`,
		deleteFile:   `DELETE FROM files WHERE id=$1`,
	}}}
}

// Insert writes the file row and its chunk rows and returns the new id.
// rec.ID and rec.CreatedAt are filled in.
func (r *PostgresRepository) Insert(ctx context.Context, rec *models.FileRecord) (int64, error) {
	query := `
		INSERT INTO files (file_name, file_type, file_size, total_chunks, nonce, compressed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.FileName, rec.FileType, rec.FileSize, rec.TotalChunks, rec.Nonce, rec.Compressed,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	if err := r.insertChunks(ctx, rec.ID, rec.ChunkReferences); err != nil {
		return 0, err
	}

	return rec.ID, nil
}
