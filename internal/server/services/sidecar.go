package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/chunkvault/internal/filex"
	"github.com/dmitrijs2005/chunkvault/internal/server/models"
)

// Sidecar is the JSON document written next to the catalog for each file.
type Sidecar struct {
	ID              int64    `json:"id"`
	FileName        string   `json:"fileName"`
	FileType        string   `json:"fileType"`
	TotalChunks     int      `json:"totalChunks"`
	FileSize        int64    `json:"fileSize"`
	ChunkReferences []string `json:"chunkReferences"`
}

// SidecarWriter maintains <id>_metadata.json files in one directory.
type SidecarWriter struct {
	dir string
}

func NewSidecarWriter(dir string) (*SidecarWriter, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sidecar dir: %w", err)
	}
	return &SidecarWriter{dir: abs}, nil
}

func (w *SidecarWriter) path(id int64) string {
	return filepath.Join(w.dir, fmt.Sprintf("%d_metadata.json", id))
}

// Write atomically replaces the sidecar for rec.
func (w *SidecarWriter) Write(rec *models.FileRecord) error {
	b, err := json.MarshalIndent(Sidecar{
		ID:              rec.ID,
		FileName:        rec.FileName,
		FileType:        rec.FileType,
		TotalChunks:     rec.TotalChunks,
		FileSize:        rec.FileSize,
		ChunkReferences: rec.ChunkReferences,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.dir, ".sidecar-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), w.path(rec.ID))
}

// Remove deletes the sidecar for id; a missing file is not an error.
func (w *SidecarWriter) Remove(id int64) error {
	err := os.Remove(w.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
