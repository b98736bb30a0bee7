// Package models defines server-side data models persisted in the catalog.
package models

import "time"

// FileRecord describes one logical file. The encrypted chunks themselves
// live in the remote blob store; ChunkReferences lists them in file order
// and is the only source of byte order during reconstruction.
type FileRecord struct {
	// ID is the catalog-assigned identifier.
	ID int64 `json:"id"`
	// FileName is the original name; not unique.
	FileName string `json:"fileName"`
	// FileType is the content type supplied at upload.
	FileType string `json:"fileType"`
	// FileSize is the plaintext length in bytes.
	FileSize int64 `json:"fileSize"`
	// TotalChunks equals len(ChunkReferences); 0 for an empty file.
	TotalChunks int `json:"totalChunks"`
	// ChunkReferences holds opaque blob store references, chunk 1 first.
	ChunkReferences []string `json:"chunkReferences"`
	// Nonce is the random per-file salt the chunk key is derived from.
	Nonce []byte `json:"-"`
	// Compressed marks chunks that were lz4-compressed before encryption.
	Compressed bool `json:"compressed"`
	// CreatedAt is set by the catalog on insert.
	CreatedAt time.Time `json:"createdAt"`
}
