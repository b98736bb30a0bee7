// Package config handles configuration for the chunkvault server and CLI,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/chunkvault/internal/common"
)

// Config holds runtime settings.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP endpoint.
//   - DatabaseDriver / DatabaseDSN: catalog database ("sqlite" or "pgx").
//   - BlobBackend: "s3" or "memory".
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings. The bucket
//     is the destination for every chunk.
//   - PresignTTL: lifetime of the retrieval URLs used to resolve chunks.
//   - ChunkSize: maximum plaintext bytes per chunk.
//   - UploadConcurrency: chunk uploads in flight per file.
//   - BatchConcurrency: files processed in parallel by a bulk upload.
//   - BackendCallTimeout: deadline applied to each blob store call.
//   - CompensateOnFailure: delete already-uploaded chunks when an upload fails.
//   - Compress: lz4-compress chunks before encryption.
//   - StagingDir: where ciphertext is staged before upload (empty: os temp dir).
//   - SidecarDir: where JSON metadata sidecars are written (empty: disabled).
//   - InMemoryDownloadLimit: larger reconstructions are spooled to disk.
//   - MasterKey / MasterPassphrase / MasterKeySalt / MasterKeySecretID: key source.
//   - LogBackend / LogFormat / LogFile / Debug: logging.
type Config struct {
	EndpointAddr          string
	DatabaseDriver        string
	DatabaseDSN           string
	BlobBackend           string
	S3RootUser            string
	S3RootPassword        string
	S3Bucket              string
	S3Region              string
	S3BaseEndpoint        string
	PresignTTL            time.Duration
	ChunkSize             int
	UploadConcurrency     int
	BatchConcurrency      int
	BackendCallTimeout    time.Duration
	CompensateOnFailure   bool
	Compress              bool
	StagingDir            string
	SidecarDir            string
	InMemoryDownloadLimit int64
	MasterKey             string
	MasterPassphrase      string
	MasterKeySalt         string
	MasterKeySecretID     string
	LogBackend            string
	LogFormat             string
	LogFile               string
	Debug                 bool
}

// LoadDefaults populates Config with development defaults.
// NOTE: the S3 credentials are MinIO defaults and must be overridden in prod.
// No master key is defaulted; one of the key sources has to be configured.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "chunkvault.db"
	c.BlobBackend = "s3"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "chunks"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.PresignTTL = 15 * time.Minute
	c.ChunkSize = common.DefaultChunkSize
	c.UploadConcurrency = 1
	c.BatchConcurrency = 1
	c.BackendCallTimeout = 2 * time.Minute
	c.CompensateOnFailure = true
	c.Compress = false
	c.StagingDir = ""
	c.SidecarDir = ""
	c.InMemoryDownloadLimit = 32 * common.MiB
	c.MasterKeySalt = "chunkvault"
	c.LogBackend = "slog"
	c.LogFormat = "json"
}

// Validate reports settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: %d", common.ErrInvalidChunkSize, c.ChunkSize))
	}
	if c.UploadConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("upload concurrency must be positive, got %d", c.UploadConcurrency))
	}
	if c.BatchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("batch concurrency must be positive, got %d", c.BatchConcurrency))
	}
	if c.BackendCallTimeout <= 0 {
		errs = append(errs, errors.New("backend call timeout must be positive"))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
