package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/chunkvault/internal/flagx"
)

var knownFlags = []string{
	"-a", "-driver", "-d", "-backend", "-u", "-p", "-b", "-g", "-e",
	"-presign-ttl", "-chunk-size", "-upload-workers", "-batch-workers",
	"-backend-timeout", "-compensate", "-compress", "-staging", "-sidecar",
	"-mem-limit", "-k", "-passphrase", "-salt", "-secret-id",
	"-log-backend", "-log-format", "-log-file", "-debug",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string             HTTP bind address (e.g., ":8080")
//	-driver string        catalog driver: sqlite | pgx
//	-d string             catalog DSN
//	-backend string       blob backend: s3 | memory
//	-u / -p string        S3 root user / password
//	-b string             S3 bucket name
//	-g string             S3 region
//	-e string             S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-presign-ttl dur      retrieval URL lifetime
//	-chunk-size int       chunk size, bytes
//	-upload-workers int   concurrent chunk uploads per file
//	-batch-workers int    concurrent files per bulk upload
//	-backend-timeout dur  per-call backend deadline
//	-compensate bool      delete uploaded chunks after a failed upload
//	-compress bool        lz4-compress chunks
//	-staging string       staging directory
//	-sidecar string       metadata sidecar directory
//	-mem-limit int        max download buffered in memory, bytes
//	-k string             master key, hex
//	-passphrase string    master passphrase
//	-salt string          passphrase salt
//	-secret-id string     AWS Secrets Manager secret holding the master key
//	-log-backend string   slog | zap
//	-log-format string    json | text
//	-log-file string      rotating log file
//	-debug bool           debug logging
//
// Boolean flags must use the -flag=value form to be set to false.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDriver, "driver", config.DatabaseDriver, "catalog database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.BlobBackend, "backend", config.BlobBackend, "blob backend")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	presignTTL := fs.Duration("presign-ttl", config.PresignTTL, "presigned URL lifetime")
	fs.IntVar(&config.ChunkSize, "chunk-size", config.ChunkSize, "chunk size in bytes")
	fs.IntVar(&config.UploadConcurrency, "upload-workers", config.UploadConcurrency, "concurrent chunk uploads per file")
	fs.IntVar(&config.BatchConcurrency, "batch-workers", config.BatchConcurrency, "concurrent files per bulk upload")
	backendTimeout := fs.Duration("backend-timeout", config.BackendCallTimeout, "per-call backend timeout")
	fs.BoolVar(&config.CompensateOnFailure, "compensate", config.CompensateOnFailure, "delete uploaded chunks on failure")
	fs.BoolVar(&config.Compress, "compress", config.Compress, "compress chunks")
	fs.StringVar(&config.StagingDir, "staging", config.StagingDir, "staging directory")
	fs.StringVar(&config.SidecarDir, "sidecar", config.SidecarDir, "metadata sidecar directory")
	fs.Int64Var(&config.InMemoryDownloadLimit, "mem-limit", config.InMemoryDownloadLimit, "in-memory download limit in bytes")
	fs.StringVar(&config.MasterKey, "k", config.MasterKey, "master key (hex)")
	fs.StringVar(&config.MasterPassphrase, "passphrase", config.MasterPassphrase, "master passphrase")
	fs.StringVar(&config.MasterKeySalt, "salt", config.MasterKeySalt, "master passphrase salt")
	fs.StringVar(&config.MasterKeySecretID, "secret-id", config.MasterKeySecretID, "master key secret id")
	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "log backend")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format")
	fs.StringVar(&config.LogFile, "log-file", config.LogFile, "log file")
	fs.BoolVar(&config.Debug, "debug", config.Debug, "debug logging")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PresignTTL = *presignTTL
	config.BackendCallTimeout = *backendTimeout
}

// durationOrKeep returns d unless it is zero.
func durationOrKeep(d, keep time.Duration) time.Duration {
	if d == 0 {
		return keep
	}
	return d
}
