// Package httpapi exposes the file service over HTTP.
//
// Routes:
//
//	POST   /upload         multipart field "file"
//	POST   /bulkUpload     multipart field "files" (repeated)
//	GET    /files          list with total size
//	GET    /download/{id}  reconstructed file
//	DELETE /delete/{id}
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/dmitrijs2005/chunkvault/internal/logging"
	"github.com/dmitrijs2005/chunkvault/internal/server/models"
	"github.com/dmitrijs2005/chunkvault/internal/server/services"
	"github.com/gorilla/mux"
)

// maxMemory is the multipart size kept in memory; larger parts spill to
// temp files.
const maxMemory = 32 << 20

// FileService is the subset of services.FileService the handlers call.
type FileService interface {
	StoreFile(ctx context.Context, name, fileType string, src io.Reader, fileSize int64) (*models.FileRecord, error)
	StoreFiles(ctx context.Context, uploads []services.FileUpload) ([]*models.FileRecord, error)
	RetrieveFile(ctx context.Context, id int64) (*models.FileRecord, io.ReadCloser, error)
	DeleteFile(ctx context.Context, id int64) error
	ListFiles(ctx context.Context) ([]*models.FileRecord, int64, error)
}

type handler struct {
	files  FileService
	logger logging.Logger
}

type uploadResponse struct {
	ID int64 `json:"id"`
}

type bulkItem struct {
	ID              int64    `json:"id"`
	FileName        string   `json:"fileName"`
	ChunkReferences []string `json:"chunkReferences"`
}

type bulkResponse struct {
	Message        string     `json:"message"`
	BulkMessageIDs []bulkItem `json:"bulkMessageIds"`
}

type listResponse struct {
	Files     []*models.FileRecord `json:"files"`
	TotalSize int64                `json:"totalSize"`
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, fh, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer f.Close()

	rec, err := h.files.StoreFile(r.Context(), fh.Filename, contentType(fh), f, fh.Size)
	if err != nil {
		h.fail(w, r, "upload", err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{ID: rec.ID})
}

func (h *handler) bulkUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	fhs := r.MultipartForm.File["files"]
	if len(fhs) == 0 {
		http.Error(w, "missing files", http.StatusBadRequest)
		return
	}

	uploads := make([]services.FileUpload, 0, len(fhs))
	for _, fh := range fhs {
		uploads = append(uploads, services.FileUpload{
			Name: fh.Filename,
			Type: contentType(fh),
			Size: fh.Size,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	recs, err := h.files.StoreFiles(r.Context(), uploads)
	if err != nil {
		h.fail(w, r, "bulk upload", err)
		return
	}

	resp := bulkResponse{Message: "Bulk upload completed successfully.", BulkMessageIDs: make([]bulkItem, 0, len(recs))}
	for _, rec := range recs {
		resp.BulkMessageIDs = append(resp.BulkMessageIDs, bulkItem{ID: rec.ID, FileName: rec.FileName, ChunkReferences: rec.ChunkReferences})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	recs, total, err := h.files.ListFiles(r.Context())
	if err != nil {
		h.fail(w, r, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Files: recs, TotalSize: total})
}

func (h *handler) download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, rc, err := h.files.RetrieveFile(r.Context(), id)
	if err != nil {
		h.fail(w, r, "download", err)
		return
	}
	defer rc.Close()

	ct := rec.FileType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.FileName}))
	w.Header().Set("Content-Length", strconv.FormatInt(rec.FileSize, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn(r.Context(), "download interrupted", "id", id, "error", err)
	}
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.files.DeleteFile(r.Context(), id); err != nil {
		h.fail(w, r, "delete", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "File deleted successfully.")
}

// fail maps service errors onto HTTP status codes. Internal details are
// logged, not returned.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, common.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.logger.Error(r.Context(), op+" failed", "error", err)
	http.Error(w, "operation failed", http.StatusInternalServerError)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
