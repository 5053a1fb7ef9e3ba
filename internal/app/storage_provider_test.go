package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/research-evidence-backend/internal/platform/gcp"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

type stubReader struct{}

func (stubReader) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return nil, gcp.ErrObjectNotFound
}
func (stubReader) Size(ctx context.Context, bucket, key string) (int64, error) { return 0, nil }
func (stubReader) Close() error { return nil }

func stubNewObjectReader(t *testing.T, fn func(*logger.Logger, gcp.ObjectStorageConfig) (gcp.ObjectReader, error)) {
	t.Helper()
	prev := newObjectReader
	newObjectReader = fn
	t.Cleanup(func() { newObjectReader = prev })
}

func TestResolveObjectReaderDisabled(t *testing.T) {
	stubNewObjectReader(t, func(*logger.Logger, gcp.ObjectStorageConfig) (gcp.ObjectReader, error) {
		t.Fatal("must not connect when disabled")
		return nil, nil
	})
	r, err := resolveObjectReader(logger.Nop(), Config{})
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestResolveObjectReaderEmulator(t *testing.T) {
	var got gcp.ObjectStorageConfig
	stubNewObjectReader(t, func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.ObjectReader, error) {
		got = cfg
		return stubReader{}, nil
	})
	r, err := resolveObjectReader(logger.Nop(), Config{
		ObjectStorageEnabled: true,
		ObjectStorage:        gcp.ObjectStorageConfig{EmulatorHost: "http://fake-gcs:4443/"},
	})
	require.NoError(t, err)
	assert.NotNil(t, r)
	assert.Equal(t, gcp.ObjectStorageModeGCSEmulator, got.Mode)
	assert.Equal(t, "http://fake-gcs:4443", got.EmulatorHost)
}

func TestResolveObjectReaderErrors(t *testing.T) {
	stubNewObjectReader(t, func(*logger.Logger, gcp.ObjectStorageConfig) (gcp.ObjectReader, error) {
		return nil, errors.New("dial tcp: refused")
	})

	_, err := resolveObjectReader(logger.Nop(), Config{
		ObjectStorageEnabled: true,
		ObjectStorage:        gcp.ObjectStorageConfig{Mode: "s3"},
	})
	var berr *StorageProviderBootstrapError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, StorageProviderBootstrapErrorInvalidConfig, berr.Code)

	_, err = resolveObjectReader(logger.Nop(), Config{
		ObjectStorageEnabled: true,
		ObjectStorage:        gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS},
	})
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, StorageProviderBootstrapErrorConnectFailed, berr.Code)
	assert.Contains(t, err.Error(), "refused")
}
