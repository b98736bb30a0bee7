// Package cryptox implements the chunk cipher: per-file keys derived from a
// master key, and AES-256-GCM sealing of individual chunks bound to their
// position in the file.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dmitrijs2005/chunkvault/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the length of master and per-file keys (AES-256).
	KeySize = 32
	// SaltSize is the length of the random per-file salt stored in the catalog.
	SaltSize = 16
	// Overhead is the number of bytes Seal adds to every chunk.
	Overhead = 16

	hkdfInfo = "chunkvault-chunk-v1"
)

// DeriveMasterKey stretches a passphrase into a 32-byte master key with
// argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	x := argon2.IDKey(password, salt, 1, 64*1024, 4, KeySize)
	return x
}

// NewFileSalt returns a fresh random per-file salt.
func NewFileSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// ChunkCipher seals and opens the chunks of one file.
//
// The file key is HKDF-SHA256(masterKey, salt). Chunk n (1-based) uses the
// nonce 0x00000000 || uint64(n) and n as additional data, so a chunk only
// opens at the position it was sealed for. Output is deterministic for a
// fixed master key, salt, sequence number and plaintext.
type ChunkCipher struct {
	aead cipher.AEAD
}

// NewChunkCipher derives the file key from masterKey and salt.
func NewChunkCipher(masterKey, salt []byte) (*ChunkCipher, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", common.ErrInvalidKey, KeySize, len(masterKey))
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty file salt", common.ErrInvalidKey)
	}

	key := make([]byte, KeySize)
	defer common.WipeByteArray(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, salt, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive file key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &ChunkCipher{aead: aead}, nil
}

// Seal encrypts chunk seq. The result is len(plaintext)+Overhead bytes.
func (c *ChunkCipher) Seal(seq int, plaintext []byte) []byte {
	nonce, ad := position(seq, c.aead.NonceSize())
	return c.aead.Seal(nil, nonce, plaintext, ad)
}

// Open decrypts and authenticates chunk seq.
func (c *ChunkCipher) Open(seq int, ciphertext []byte) ([]byte, error) {
	nonce, ad := position(seq, c.aead.NonceSize())
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("open chunk %d: %w", seq, err)
	}
	return plaintext, nil
}

func position(seq int, nonceSize int) (nonce, ad []byte) {
	ad = binary.BigEndian.AppendUint64(nil, uint64(seq))
	nonce = make([]byte, nonceSize-len(ad), nonceSize)
	nonce = append(nonce, ad...)
	return nonce, ad
}
