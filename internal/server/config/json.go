package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/chunkvault/internal/flagx"
	"github.com/dmitrijs2005/chunkvault/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept strings such as "15m" or integer nanoseconds. Pointer booleans
// distinguish "absent" from "false".
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDriver        string         `json:"database_driver"`
	DatabaseDSN           string         `json:"database_dsn"`
	BlobBackend           string         `json:"blob_backend"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	PresignTTL            timex.Duration `json:"presign_ttl"`
	ChunkSize             int            `json:"chunk_size"`
	UploadConcurrency     int            `json:"upload_concurrency"`
	BatchConcurrency      int            `json:"batch_concurrency"`
	BackendCallTimeout    timex.Duration `json:"backend_call_timeout"`
	CompensateOnFailure   *bool          `json:"compensate_on_failure"`
	Compress              *bool          `json:"compress"`
	StagingDir            string         `json:"staging_dir"`
	SidecarDir            string         `json:"sidecar_dir"`
	InMemoryDownloadLimit int64          `json:"in_memory_download_limit"`
	MasterKey             string         `json:"master_key"`
	MasterPassphrase      string         `json:"master_passphrase"`
	MasterKeySalt         string         `json:"master_key_salt"`
	MasterKeySecretID     string         `json:"master_key_secret_id"`
	LogBackend            string         `json:"log_backend"`
	LogFormat             string         `json:"log_format"`
	LogFile               string         `json:"log_file"`
	Debug                 *bool          `json:"debug"`
}

// parseJson overlays values from the JSON file named by -c/-config (or the
// CHUNKVAULT_CONFIG environment variable) onto config. Fields absent from
// the file keep their current values. An unreadable or malformed file
// panics, as a misconfigured process should not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFilePath()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddr, c.EndpointAddr)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	config.PresignTTL = durationOrKeep(c.PresignTTL.Duration, config.PresignTTL)
	if c.ChunkSize != 0 {
		config.ChunkSize = c.ChunkSize
	}
	if c.UploadConcurrency != 0 {
		config.UploadConcurrency = c.UploadConcurrency
	}
	if c.BatchConcurrency != 0 {
		config.BatchConcurrency = c.BatchConcurrency
	}
	config.BackendCallTimeout = durationOrKeep(c.BackendCallTimeout.Duration, config.BackendCallTimeout)
	if c.CompensateOnFailure != nil {
		config.CompensateOnFailure = *c.CompensateOnFailure
	}
	if c.Compress != nil {
		config.Compress = *c.Compress
	}
	setString(&config.StagingDir, c.StagingDir)
	setString(&config.SidecarDir, c.SidecarDir)
	if c.InMemoryDownloadLimit != 0 {
		config.InMemoryDownloadLimit = c.InMemoryDownloadLimit
	}
	setString(&config.MasterKey, c.MasterKey)
	setString(&config.MasterPassphrase, c.MasterPassphrase)
	setString(&config.MasterKeySalt, c.MasterKeySalt)
	setString(&config.MasterKeySecretID, c.MasterKeySecretID)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogFile, c.LogFile)
	if c.Debug != nil {
		config.Debug = *c.Debug
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
