package services

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/chunkvault/internal/common"
)

// StagingPatterns match the temp files the pipeline creates in the staging
// directory.
var StagingPatterns = []string{"chunk-*", "download-*"}

// sink collects reconstructed plaintext, in memory or in a spool file.
type sink struct {
	buf  *bytes.Buffer
	file *os.File
}

func (s *FileService) newSink(size int64) (*sink, error) {
	if size <= s.memLimit {
		return &sink{buf: bytes.NewBuffer(make([]byte, 0, size))}, nil
	}
	f, err := os.CreateTemp(s.stagingDir, "download-*")
	if err != nil {
		return nil, fmt.Errorf("%w: spool: %v", common.ErrIOFailure, err)
	}
	return &sink{file: f}, nil
}

func (k *sink) Write(p []byte) (int, error) {
	if k.file != nil {
		return k.file.Write(p)
	}
	return k.buf.Write(p)
}

func (k *sink) reader() (io.ReadCloser, error) {
	if k.file == nil {
		return io.NopCloser(bytes.NewReader(k.buf.Bytes())), nil
	}
	if _, err := k.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: rewind spool: %v", common.ErrIOFailure, err)
	}
	return &spoolReader{File: k.file}, nil
}

func (k *sink) discard() {
	if k.file != nil {
		k.file.Close()
		os.Remove(k.file.Name())
	}
}

// spoolReader removes its backing file on Close.
type spoolReader struct {
	*os.File
}

func (r *spoolReader) Close() error {
	err := r.File.Close()
	if rmErr := os.Remove(r.File.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}
