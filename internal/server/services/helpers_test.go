package services

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/chunkvault/internal/dbx"
	"github.com/dmitrijs2005/chunkvault/internal/logging"
	"github.com/dmitrijs2005/chunkvault/internal/server/blobstore"
	"github.com/dmitrijs2005/chunkvault/internal/server/config"
	"github.com/dmitrijs2005/chunkvault/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

var testKey = bytes.Repeat([]byte{0x42}, 32)

type testEnv struct {
	svc     *FileService
	catalog *Catalog
	store   *blobstore.MemoryStore
	db      *sql.DB
	cfg     *config.Config
}

func newCatalog(t *testing.T) (*Catalog, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := dbx.Open(ctx, dbx.DriverSQLite, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := repomanager.New(dbx.DriverSQLite)
	require.NoError(t, err)
	require.NoError(t, m.RunMigrations(ctx, db))
	return NewCatalog(db, m, logging.Nop()), db
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BlobBackend = "memory"
	cfg.ChunkSize = 16
	cfg.StagingDir = t.TempDir()
	cfg.BackendCallTimeout = 5 * time.Second
	if mutate != nil {
		mutate(cfg)
	}

	catalog, db := newCatalog(t)
	store := blobstore.NewMemoryStore()
	svc, err := NewFileService(catalog, store, testKey, cfg, logging.Nop())
	require.NoError(t, err)
	return &testEnv{svc: svc, catalog: catalog, store: store, db: db, cfg: cfg}
}

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func readAllClose(t *testing.T, rc io.ReadCloser) []byte {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return b
}
