package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/chunkvault/internal/chunker"
	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/dmitrijs2005/chunkvault/internal/compressx"
	"github.com/dmitrijs2005/chunkvault/internal/cryptox"
	"github.com/dmitrijs2005/chunkvault/internal/logging"
	"github.com/dmitrijs2005/chunkvault/internal/server/blobstore"
	"github.com/dmitrijs2005/chunkvault/internal/server/config"
	"github.com/dmitrijs2005/chunkvault/internal/server/models"
	"golang.org/x/sync/errgroup"
)

// FileUpload is one input of a batch upload. Open is called when the file's
// turn comes; the returned reader is closed afterwards.
type FileUpload struct {
	Name string
	Type string
	// Size is the declared plaintext length; -1 skips the check.
	Size int64
	Open func() (io.ReadCloser, error)
}

// FileService stores, retrieves and deletes chunked, encrypted files.
type FileService struct {
	catalog   *Catalog
	store     blobstore.Store
	masterKey []byte
	sidecar   *SidecarWriter
	logger    logging.Logger

	chunkSize         int
	uploadConcurrency int
	batchConcurrency  int
	compensate        bool
	compress          bool
	stagingDir        string
	memLimit          int64
}

// NewFileService validates cfg and the master key and wires the pipeline.
func NewFileService(catalog *Catalog, store blobstore.Store, masterKey []byte, cfg *config.Config, logger logging.Logger) (*FileService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(masterKey) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes", common.ErrInvalidKey, cryptox.KeySize)
	}

	s := &FileService{
		catalog:           catalog,
		store:             store,
		masterKey:         masterKey,
		logger:            logger.With("module", "files"),
		chunkSize:         cfg.ChunkSize,
		uploadConcurrency: cfg.UploadConcurrency,
		batchConcurrency:  cfg.BatchConcurrency,
		compensate:        cfg.CompensateOnFailure,
		compress:          cfg.Compress,
		stagingDir:        cfg.StagingDir,
		memLimit:          cfg.InMemoryDownloadLimit,
	}

	if cfg.SidecarDir != "" {
		w, err := NewSidecarWriter(cfg.SidecarDir)
		if err != nil {
			return nil, err
		}
		s.sidecar = w
	}
	return s, nil
}

// StoreFile splits src into chunks, encrypts and uploads each one, then
// commits a FileRecord listing the references in chunk order. fileSize is
// the declared length; pass -1 when unknown.
//
// No record is committed unless every chunk was uploaded. On failure the
// uploaded chunks are deleted again when compensation is enabled and left
// as orphans (logged) otherwise.
func (s *FileService) StoreFile(ctx context.Context, name, fileType string, src io.Reader, fileSize int64) (*models.FileRecord, error) {
	salt := cryptox.NewFileSalt()
	cc, err := cryptox.NewChunkCipher(s.masterKey, salt)
	if err != nil {
		return nil, err
	}
	sp, err := chunker.NewSplitter(src, s.chunkSize)
	if err != nil {
		return nil, err
	}
	compressed := s.compress && compressx.ShouldCompress(fileType)

	var (
		mu   sync.Mutex
		refs = make(map[int]string)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.uploadConcurrency)

	var readErr error
	for {
		if err := gctx.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				readErr = fmt.Errorf("upload %q: %w", name, ctxErr)
			}
			break
		}

		chunk, err := sp.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if fileSize >= 0 && sp.Offset() > fileSize {
			readErr = fmt.Errorf("%w: read more than the declared %d bytes", common.ErrSizeMismatch, fileSize)
			break
		}

		data := chunk.Data
		if compressed {
			if data, err = compressx.Compress(data); err != nil {
				readErr = &common.ChunkError{Op: "compress", Index: chunk.Seq, Kind: common.ErrIOFailure, Err: err}
				break
			}
		}
		ct := cc.Seal(chunk.Seq, data)
		seq := chunk.Seq

		g.Go(func() error {
			ref, err := s.uploadChunk(gctx, name, seq, ct)
			if err != nil {
				return &common.ChunkError{Op: "upload", Index: seq, Kind: backendKind(err), Err: err}
			}
			mu.Lock()
			refs[seq] = ref
			mu.Unlock()
			s.logger.Debug(gctx, "chunk uploaded", "file", name, "seq", seq, "bytes", len(ct))
			return nil
		})
	}

	uploadErr := g.Wait()
	fail := errors.Join(readErr, uploadErr)
	if fail == nil && fileSize >= 0 && sp.Offset() != fileSize {
		fail = fmt.Errorf("%w: read %d bytes, declared %d", common.ErrSizeMismatch, sp.Offset(), fileSize)
	}

	// references ordered by sequence number
	ordered := make([]string, 0, len(refs))
	for seq := 1; seq <= len(refs); seq++ {
		ref, ok := refs[seq]
		if !ok {
			break
		}
		ordered = append(ordered, ref)
	}
	if fail != nil {
		return nil, s.abandon(ctx, name, refs, fail)
	}
	if len(ordered) != len(refs) {
		return nil, s.abandon(ctx, name, refs, fmt.Errorf("%w: chunk sequence has gaps", common.ErrIOFailure))
	}

	rec := &models.FileRecord{
		FileName:        name,
		FileType:        fileType,
		FileSize:        sp.Offset(),
		TotalChunks:     len(ordered),
		ChunkReferences: ordered,
		Nonce:           salt,
		Compressed:      compressed,
	}
	if _, err := s.catalog.Insert(ctx, rec); err != nil {
		return nil, s.abandon(ctx, name, refs, err)
	}

	if s.sidecar != nil {
		if err := s.sidecar.Write(rec); err != nil {
			s.logger.Warn(ctx, "sidecar write failed", "id", rec.ID, "error", err)
		}
	}

	s.logger.Info(ctx, "file stored", "id", rec.ID, "name", name, "size", rec.FileSize, "chunks", rec.TotalChunks)
	return rec, nil
}

// uploadChunk stages ct in a temp file and uploads it from there. The temp
// file is removed whatever the outcome.
func (s *FileService) uploadChunk(ctx context.Context, name string, seq int, ct []byte) (string, error) {
	f, err := os.CreateTemp(s.stagingDir, "chunk-*")
	if err != nil {
		return "", fmt.Errorf("%w: stage chunk: %v", common.ErrIOFailure, err)
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	if _, err := f.Write(ct); err != nil {
		return "", fmt.Errorf("%w: stage chunk: %v", common.ErrIOFailure, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: stage chunk: %v", common.ErrIOFailure, err)
	}

	return s.store.Upload(ctx, f, int64(len(ct)), fmt.Sprintf("%s#%d", name, seq))
}

// abandon handles a failed upload: it deletes the uploaded chunks when
// compensation is on, or logs them as orphans otherwise. The returned
// error is cause joined with any cleanup failures.
func (s *FileService) abandon(ctx context.Context, name string, refs map[int]string, cause error) error {
	s.logger.Error(ctx, "file upload failed", "name", name, "uploaded", len(refs), "error", cause)
	if len(refs) == 0 {
		return cause
	}

	if !s.compensate {
		for seq, ref := range refs {
			s.logger.Warn(ctx, "orphaned chunk", "name", name, "seq", seq, "ref", ref)
		}
		return cause
	}

	cleanupCtx := context.WithoutCancel(ctx)
	errs := []error{cause}
	for seq, ref := range refs {
		if err := s.store.Delete(cleanupCtx, ref); err != nil && !errors.Is(err, common.ErrReferenceNotFound) {
			s.logger.Warn(ctx, "compensation failed, chunk orphaned", "name", name, "seq", seq, "ref", ref, "error", err)
			errs = append(errs, fmt.Errorf("compensate chunk %d: %w", seq, err))
		}
	}
	return errors.Join(errs...)
}

// StoreFiles stores each upload, up to the configured number at a time.
// The committed records are returned in input order. After the first
// failure no further uploads start and the error is returned alongside
// whatever was already committed.
func (s *FileService) StoreFiles(ctx context.Context, uploads []FileUpload) ([]*models.FileRecord, error) {
	results := make([]*models.FileRecord, len(uploads))
	errs := make([]error, len(uploads))

	var (
		g      errgroup.Group
		failed atomic.Bool
	)
	g.SetLimit(s.batchConcurrency)

	for i, u := range uploads {
		if failed.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if failed.Load() {
				return nil
			}
			rec, err := s.storeUpload(ctx, u)
			if err != nil {
				failed.Store(true)
				errs[i] = fmt.Errorf("file %q: %w", u.Name, err)
				return nil
			}
			results[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	committed := make([]*models.FileRecord, 0, len(uploads))
	for _, rec := range results {
		if rec != nil {
			committed = append(committed, rec)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return committed, err
	}
	if err := ctx.Err(); err != nil {
		return committed, err
	}
	return committed, nil
}

func (s *FileService) storeUpload(ctx context.Context, u FileUpload) (*models.FileRecord, error) {
	rc, err := u.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", common.ErrIOFailure, err)
	}
	defer rc.Close()
	return s.StoreFile(ctx, u.Name, u.Type, rc, u.Size)
}

// RetrieveFile reassembles the file with the given id. The returned reader
// yields exactly fileSize bytes and must be closed. Any chunk failure aborts
// with a *common.ChunkError and no reader.
func (s *FileService) RetrieveFile(ctx context.Context, id int64) (*models.FileRecord, io.ReadCloser, error) {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	cc, err := cryptox.NewChunkCipher(s.masterKey, rec.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrReconstructionFailed, err)
	}

	out, err := s.newSink(rec.FileSize)
	if err != nil {
		return nil, nil, err
	}

	var written int64
	for i, ref := range rec.ChunkReferences {
		seq := i + 1
		ct, err := s.store.Resolve(ctx, ref)
		if err != nil {
			out.discard()
			return nil, nil, &common.ChunkError{Op: "resolve", Index: seq, Kind: common.ErrReconstructionFailed, Err: err}
		}
		pt, err := cc.Open(seq, ct)
		if err != nil {
			out.discard()
			return nil, nil, &common.ChunkError{Op: "decrypt", Index: seq, Kind: common.ErrReconstructionFailed, Err: err}
		}
		if rec.Compressed {
			if pt, err = compressx.Decompress(pt); err != nil {
				out.discard()
				return nil, nil, &common.ChunkError{Op: "decompress", Index: seq, Kind: common.ErrReconstructionFailed, Err: err}
			}
		}
		n, err := out.Write(pt)
		written += int64(n)
		if err != nil {
			out.discard()
			return nil, nil, &common.ChunkError{Op: "write", Index: seq, Kind: common.ErrIOFailure, Err: err}
		}
		s.logger.Debug(ctx, "chunk resolved", "id", id, "seq", seq, "bytes", n)
	}

	if written != rec.FileSize {
		out.discard()
		return nil, nil, fmt.Errorf("%w: reconstructed %d bytes, expected %d", common.ErrReconstructionFailed, written, rec.FileSize)
	}

	rc, err := out.reader()
	if err != nil {
		out.discard()
		return nil, nil, err
	}
	s.logger.Info(ctx, "file retrieved", "id", id, "size", written)
	return rec, rc, nil
}

// DeleteFile deletes every chunk of the file, then its record. A chunk the
// store no longer has counts as deleted, so a failed attempt can simply be
// retried. On failure the record stays in the catalog.
func (s *FileService) DeleteFile(ctx context.Context, id int64) error {
	rec, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for i, ref := range rec.ChunkReferences {
		err := s.store.Delete(ctx, ref)
		switch {
		case err == nil:
		case errors.Is(err, common.ErrReferenceNotFound):
			s.logger.Debug(ctx, "chunk already gone", "id", id, "seq", i+1)
		default:
			s.logger.Error(ctx, "chunk delete failed", "id", id, "seq", i+1, "error", err)
			return &common.ChunkError{Op: "delete", Index: i + 1, Kind: backendKind(err), Err: err}
		}
	}

	if err := s.catalog.DeleteByID(ctx, id); err != nil {
		return err
	}

	if s.sidecar != nil {
		if err := s.sidecar.Remove(id); err != nil {
			s.logger.Warn(ctx, "sidecar remove failed", "id", id, "error", err)
		}
	}

	s.logger.Info(ctx, "file deleted", "id", id, "chunks", rec.TotalChunks)
	return nil
}

// ListFiles returns every record and the total stored plaintext size.
func (s *FileService) ListFiles(ctx context.Context) ([]*models.FileRecord, int64, error) {
	return s.catalog.ListAll(ctx)
}

// backendKind picks the category sentinel for a blob store error.
func backendKind(err error) error {
	switch {
	case errors.Is(err, common.ErrBackendRejected):
		return common.ErrBackendRejected
	case errors.Is(err, common.ErrReferenceNotFound):
		return common.ErrReferenceNotFound
	case errors.Is(err, common.ErrIOFailure):
		return common.ErrIOFailure
	default:
		return common.ErrBackendUnavailable
	}
}
