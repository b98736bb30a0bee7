package secrets

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/dmitrijs2005/chunkvault/internal/common"
	"github.com/dmitrijs2005/chunkvault/internal/cryptox"
	"github.com/dmitrijs2005/chunkvault/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	out   *secretsmanager.GetSecretValueOutput
	err   error
	gotID string
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.gotID = aws.ToString(in.SecretId)
	return f.out, f.err
}

func stubSecrets(t *testing.T, f *fakeSecrets) {
	t.Helper()
	origLoad, origNew := loadDefaultAWSConfig, newSecretsClient
	t.Cleanup(func() { loadDefaultAWSConfig, newSecretsClient = origLoad, origNew })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newSecretsClient = func(aws.Config) secretsAPI { return f }
}

const hexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestResolve_HexKey(t *testing.T) {
	key, err := Resolve(context.Background(), &config.Config{MasterKey: hexKey})
	require.NoError(t, err)
	assert.Len(t, key, cryptox.KeySize)
	assert.Equal(t, byte(0x1f), key[31])

	_, err = Resolve(context.Background(), &config.Config{MasterKey: "abcd"})
	assert.ErrorIs(t, err, common.ErrInvalidKey)

	_, err = Resolve(context.Background(), &config.Config{MasterKey: strings.Repeat("zz", 32)})
	assert.ErrorIs(t, err, common.ErrInvalidKey)
}

func TestResolve_Passphrase(t *testing.T) {
	cfg := &config.Config{MasterPassphrase: "correct horse", MasterKeySalt: "chunkvault"}
	a, err := Resolve(context.Background(), cfg)
	require.NoError(t, err)
	b, err := Resolve(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, cryptox.KeySize)

	cfg.MasterKeySalt = ""
	_, err = Resolve(context.Background(), cfg)
	assert.ErrorIs(t, err, common.ErrInvalidKey)
}

func TestResolve_NoneOrMany(t *testing.T) {
	_, err := Resolve(context.Background(), &config.Config{})
	assert.ErrorIs(t, err, ErrNoKeySource)

	_, err = Resolve(context.Background(), &config.Config{MasterKey: hexKey, MasterPassphrase: "x"})
	assert.ErrorIs(t, err, common.ErrInvalidKey)
}

func TestResolve_SecretsManager(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, cryptox.KeySize)

	f := &fakeSecrets{out: &secretsmanager.GetSecretValueOutput{SecretBinary: raw}}
	stubSecrets(t, f)
	key, err := Resolve(context.Background(), &config.Config{MasterKeySecretID: "chunkvault/master"})
	require.NoError(t, err)
	assert.Equal(t, raw, key)
	assert.Equal(t, "chunkvault/master", f.gotID)

	f.out = &secretsmanager.GetSecretValueOutput{SecretString: aws.String(hexKey + "\n")}
	key, err = Resolve(context.Background(), &config.Config{MasterKeySecretID: "s"})
	require.NoError(t, err)
	assert.Len(t, key, cryptox.KeySize)

	f.out = &secretsmanager.GetSecretValueOutput{SecretBinary: []byte("short")}
	_, err = Resolve(context.Background(), &config.Config{MasterKeySecretID: "s"})
	assert.ErrorIs(t, err, common.ErrInvalidKey)

	f.err = errors.New("access denied")
	_, err = Resolve(context.Background(), &config.Config{MasterKeySecretID: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestResolve_SecretsManagerConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err := Resolve(context.Background(), &config.Config{MasterKeySecretID: "s"})
	if err == nil || err.Error() != "load-fail" {
		t.Fatalf("want load-fail, got %v", err)
	}
}
