// Package server wires the chunkvault components together: logging, the
// catalog database, the blob store, the master key and the file service.
// It runs the HTTP endpoint until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/dmitrijs2005/chunkvault/internal/dbx"
	"github.com/dmitrijs2005/chunkvault/internal/filex"
	"github.com/dmitrijs2005/chunkvault/internal/logging"
	"github.com/dmitrijs2005/chunkvault/internal/server/blobstore"
	"github.com/dmitrijs2005/chunkvault/internal/server/config"
	"github.com/dmitrijs2005/chunkvault/internal/server/httpapi"
	"github.com/dmitrijs2005/chunkvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/chunkvault/internal/server/secrets"
	"github.com/dmitrijs2005/chunkvault/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	closer io.Closer
	db     *sql.DB
	files  *services.FileService
}

// NewApp opens every dependency named by c. Call Close when done.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := logging.New(logging.Options{
		Backend: c.LogBackend,
		Format:  c.LogFormat,
		File:    c.LogFile,
		Debug:   c.Debug,
	})
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger, closer: closer}
	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	if c.StagingDir != "" {
		dir, err := filex.EnsureDir(c.StagingDir)
		if err != nil {
			return fmt.Errorf("staging dir: %w", err)
		}
		c.StagingDir = dir
		if n, err := filex.RemoveStale(dir, services.StagingPatterns...); err != nil {
			app.logger.Warn(ctx, "stale staging cleanup failed", "error", err)
		} else if n > 0 {
			app.logger.Info(ctx, "removed stale staging files", "count", n)
		}
	}

	key, err := secrets.Resolve(ctx, c)
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}
	defer common.WipeByteArray(key)

	m, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return err
	}

	app.db, err = dbx.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := m.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	store, err := blobstore.New(ctx, c)
	if err != nil {
		return fmt.Errorf("blob store init error: %w", err)
	}

	catalog := services.NewCatalog(app.db, m, app.logger)
	app.files, err = services.NewFileService(catalog, store, append([]byte(nil), key...), c, app.logger)
	return err
}

// Files exposes the file service for in-process callers such as the CLI.
func (app *App) Files() *services.FileService {
	return app.files
}

func (app *App) Logger() logging.Logger {
	return app.logger
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddr,
		"driver", app.config.DatabaseDriver, "backend", app.config.BlobBackend)

	app.initSignalHandler(cancelFunc)

	s := httpapi.NewServer(app.config.EndpointAddr, app.files, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	return nil
}

// Close releases the database and the log sink.
func (app *App) Close() error {
	var errs []error
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	if app.closer != nil {
		errs = append(errs, app.closer.Close())
	}
	return errors.Join(errs...)
}
