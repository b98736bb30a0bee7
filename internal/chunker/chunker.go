// Package chunker splits a byte stream into an ordered sequence of
// fixed-maximum-size chunks.
package chunker

import (
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/chunkvault/internal/common"
)

// Chunk is one contiguous slice of the source. Seq is 1-based.
type Chunk struct {
	Seq    int
	Offset int64
	Data   []byte
}

// Splitter yields chunks of at most Size bytes in source order. Only the
// final chunk may be shorter. An empty source yields no chunks.
//
// Each call to Next returns a freshly allocated Data slice, so a chunk can
// be handed to another goroutine while the splitter keeps reading.
type Splitter struct {
	r      io.Reader
	size   int
	seq    int
	offset int64
	done   bool
}

// NewSplitter returns a Splitter over r. chunkSize must be positive.
func NewSplitter(r io.Reader, chunkSize int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidChunkSize, chunkSize)
	}
	return &Splitter{r: r, size: chunkSize}, nil
}

// Next returns the next chunk, or io.EOF once the source is exhausted.
// Read errors from the source are returned wrapped in common.ErrIOFailure.
func (s *Splitter) Next() (Chunk, error) {
	if s.done {
		return Chunk{}, io.EOF
	}

	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.r, buf)
	switch {
	case errors.Is(err, io.EOF):
		s.done = true
		return Chunk{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
	case err != nil:
		return Chunk{}, fmt.Errorf("%w: read chunk %d: %v", common.ErrIOFailure, s.seq+1, err)
	}

	s.seq++
	c := Chunk{Seq: s.seq, Offset: s.offset, Data: buf[:n]}
	s.offset += int64(n)
	return c, nil
}

// Reset rewinds the splitter to the start of its source. The source must
// implement io.Seeker.
func (s *Splitter) Reset() error {
	seeker, ok := s.r.(io.Seeker)
	if !ok {
		return fmt.Errorf("%w: source is not seekable", common.ErrIOFailure)
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewind: %v", common.ErrIOFailure, err)
	}
	s.seq, s.offset, s.done = 0, 0, false
	return nil
}

// Offset is the number of bytes consumed so far.
func (s *Splitter) Offset() int64 {
	return s.offset
}

// Count returns how many chunks a file of fileSize bytes splits into:
// ceil(fileSize / chunkSize), and 0 for an empty file.
func Count(fileSize int64, chunkSize int) int {
	if fileSize <= 0 || chunkSize <= 0 {
		return 0
	}
	cs := int64(chunkSize)
	return int((fileSize + cs - 1) / cs)
}

// LastChunkSize returns the expected plaintext length of the final chunk.
func LastChunkSize(fileSize int64, chunkSize int) int64 {
	n := Count(fileSize, chunkSize)
	if n == 0 {
		return 0
	}
	return fileSize - int64(chunkSize)*int64(n-1)
}
