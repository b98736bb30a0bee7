package files

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/dmitrijs2005/chunkvault/internal/dbx"
	"github.com/dmitrijs2005/chunkvault/internal/server/migrations"
	"github.com/dmitrijs2005/chunkvault/internal/server/models"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := dbx.Open(ctx, dbx.DriverSQLite, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(ctx, db, migrations.SQLiteDir))
	return db
}

func insertTx(t *testing.T, db *sql.DB, rec *models.FileRecord) int64 {
	t.Helper()
	var id int64
	err := dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		id, err = NewSQLiteRepository(tx).Insert(ctx, rec)
		return err
	})
	require.NoError(t, err)
	return id
}

func TestSQLite_InsertGetListDelete(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	repo := NewSQLiteRepository(db)

	id1 := insertTx(t, db, &models.FileRecord{
		FileName: "a.txt", FileType: "text/plain", FileSize: 30, TotalChunks: 3,
		ChunkReferences: []string{"r1", "r2", "r3"}, Nonce: []byte("salt-1"), Compressed: true,
	})
	id2 := insertTx(t, db, &models.FileRecord{
		FileName: "a.txt", FileType: "text/plain", FileSize: 0, TotalChunks: 0, Nonce: []byte("salt-2"),
	})
	assert.NotEqual(t, id1, id2, "same name must still produce distinct ids")
	assert.Greater(t, id2, id1)

	rec, err := repo.GetByID(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, rec.ChunkReferences)
	assert.Equal(t, []byte("salt-1"), rec.Nonce)
	assert.True(t, rec.Compressed)
	assert.False(t, rec.CreatedAt.IsZero())

	empty, err := repo.GetByID(ctx, id2)
	require.NoError(t, err)
	assert.Empty(t, empty.ChunkReferences)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, id1, all[0].ID)
	assert.Len(t, all[0].ChunkReferences, 3)

	total, err := repo.TotalSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)

	require.NoError(t, dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return NewSQLiteRepository(tx).DeleteByID(ctx, id1)
	}))

	_, err = repo.GetByID(ctx, id1)
	assert.ErrorIs(t, err, common.ErrNotFound)

	var orphans int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_chunks WHERE file_id=?`, id1).Scan(&orphans))
	assert.Zero(t, orphans)

	err = repo.DeleteByID(ctx, id1)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	total, err = repo.TotalSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSQLite_DuplicateSequenceRejected(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)

	id := insertTx(t, db, &models.FileRecord{FileName: "x", TotalChunks: 1, FileSize: 1, ChunkReferences: []string{"r"}, Nonce: []byte("n")})

	_, err := db.ExecContext(ctx, `INSERT INTO file_chunks (file_id, seq, reference) VALUES (?, 1, 'dup')`, id)
	assert.Error(t, err, "primary key (file_id, seq) must be unique")

	_, err = db.ExecContext(ctx, `INSERT INTO file_chunks (file_id, seq, reference) VALUES (12345, 1, 'dangling')`)
	assert.Error(t, err, "foreign key must be enforced")
}

func TestSQLite_InsertRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := NewSQLiteRepository(tx).Insert(ctx, &models.FileRecord{
			FileName: "x", TotalChunks: 1, FileSize: 1, ChunkReferences: []string{"r"}, Nonce: []byte("n"),
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	all, err := NewSQLiteRepository(db).ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "no partial commit may be visible")
}
