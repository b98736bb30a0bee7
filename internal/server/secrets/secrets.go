// Package secrets resolves the master key chunk keys are derived from.
// A key comes from AWS Secrets Manager, a hex string, or a passphrase
// stretched with argon2id.
package secrets

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/dmitrijs2005/chunkvault/internal/cryptox"
	"github.com/dmitrijs2005/chunkvault/internal/server/config"
)

// ErrNoKeySource is returned when no master key source is configured.
var ErrNoKeySource = errors.New("no master key configured: set master_key, master_passphrase or master_key_secret_id")

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var (
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx, optFns...)
	}
	newSecretsClient = func(cfg aws.Config) secretsAPI {
		return secretsmanager.NewFromConfig(cfg)
	}
)

// Resolve returns the 32-byte master key from the single configured source.
func Resolve(ctx context.Context, cfg *config.Config) ([]byte, error) {
	sources := 0
	for _, s := range []string{cfg.MasterKeySecretID, cfg.MasterKey, cfg.MasterPassphrase} {
		if s != "" {
			sources++
		}
	}
	switch {
	case sources == 0:
		return nil, ErrNoKeySource
	case sources > 1:
		return nil, fmt.Errorf("%w: more than one master key source configured", common.ErrInvalidKey)
	}

	switch {
	case cfg.MasterKeySecretID != "":
		return fromSecretsManager(ctx, cfg)
	case cfg.MasterKey != "":
		return decodeKey(cfg.MasterKey)
	default:
		if cfg.MasterKeySalt == "" {
			return nil, fmt.Errorf("%w: passphrase requires a salt", common.ErrInvalidKey)
		}
		return cryptox.DeriveMasterKey([]byte(cfg.MasterPassphrase), []byte(cfg.MasterKeySalt)), nil
	}
}

func fromSecretsManager(ctx context.Context, cfg *config.Config) ([]byte, error) {
	optFns := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3RootUser != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3RootUser, cfg.S3RootPassword, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}

	out, err := newSecretsClient(awsCfg).GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.MasterKeySecretID),
	})
	if err != nil {
		return nil, fmt.Errorf("get secret %s: %w", cfg.MasterKeySecretID, err)
	}

	if len(out.SecretBinary) > 0 {
		if len(out.SecretBinary) != cryptox.KeySize {
			return nil, fmt.Errorf("%w: secret holds %d bytes, want %d", common.ErrInvalidKey, len(out.SecretBinary), cryptox.KeySize)
		}
		return append([]byte(nil), out.SecretBinary...), nil
	}
	return decodeKey(aws.ToString(out.SecretString))
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidKey, err)
	}
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", common.ErrInvalidKey, len(key), cryptox.KeySize)
	}
	return key, nil
}
