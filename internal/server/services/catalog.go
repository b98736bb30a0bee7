// Package services contains the chunkvault business logic: the metadata
// catalog and the file pipeline that splits, encrypts, uploads, reassembles
// and deletes files.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/dmitrijs2005/chunkvault/internal/dbx"
	"github.com/dmitrijs2005/chunkvault/internal/logging"
	"github.com/dmitrijs2005/chunkvault/internal/server/models"
	"github.com/dmitrijs2005/chunkvault/internal/server/repositories/repomanager"
)

// Catalog is the persistent, transactional store of FileRecords. Writes
// either commit a whole record (file row and every chunk row) or nothing.
type Catalog struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewCatalog constructs a Catalog over an open, migrated database.
func NewCatalog(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *Catalog {
	return &Catalog{db: db, repomanager: m, logger: logger.With("module", "catalog")}
}

// Insert persists rec and returns its new id. Failures are reported as
// common.ErrCatalogWriteFailed and leave nothing behind.
func (c *Catalog) Insert(ctx context.Context, rec *models.FileRecord) (int64, error) {
	if rec.TotalChunks != len(rec.ChunkReferences) {
		return 0, fmt.Errorf("%w: total chunks %d does not match %d references",
			common.ErrCatalogWriteFailed, rec.TotalChunks, len(rec.ChunkReferences))
	}

	var id int64
	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		id, err = c.repomanager.Files(tx).Insert(ctx, rec)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrCatalogWriteFailed, err)
	}

	c.logger.Debug(ctx, "record inserted", "id", id, "chunks", rec.TotalChunks)
	return id, nil
}

// GetByID returns the record or common.ErrNotFound. The file row and its
// chunk rows are read in one transaction, so a concurrent delete yields
// ErrNotFound rather than a partial record.
func (c *Catalog) GetByID(ctx context.Context, id int64) (*models.FileRecord, error) {
	var rec *models.FileRecord
	err := dbx.WithTx(ctx, c.db, c.readOpts(), func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		rec, err = c.repomanager.Files(tx).GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListAll returns every record in id order and the sum of their sizes, read
// from one snapshot.
func (c *Catalog) ListAll(ctx context.Context) ([]*models.FileRecord, int64, error) {
	var (
		recs  []*models.FileRecord
		total int64
	)
	err := dbx.WithTx(ctx, c.db, c.readOpts(), func(ctx context.Context, tx dbx.DBTX) error {
		repo := c.repomanager.Files(tx)
		var err error
		if recs, err = repo.ListAll(ctx); err != nil {
			return err
		}
		total, err = repo.TotalSize(ctx)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	if recs == nil {
		recs = []*models.FileRecord{}
	}
	return recs, total, nil
}

// DeleteByID removes the record and its chunk rows in one transaction.
func (c *Catalog) DeleteByID(ctx context.Context, id int64) error {
	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return c.repomanager.Files(tx).DeleteByID(ctx, id)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound):
		return err
	default:
		return fmt.Errorf("%w: %w", common.ErrCatalogWriteFailed, err)
	}
}

// readOpts returns the options for multi-statement reads. Postgres defaults
// to read committed, which takes a fresh snapshot per statement; SQLite
// transactions already see one snapshot.
func (c *Catalog) readOpts() *sql.TxOptions {
	if c.repomanager.Dialect() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}
