package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectReader reads evidence files stored in Cloud Storage.
type ObjectReader interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Size(ctx context.Context, bucket, key string) (int64, error)
	Close() error
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
}

func NewObjectReader(log *logger.Logger, cfg ObjectStorageConfig) (ObjectReader, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	serviceLog := log.With("service", "BucketService", "mode", cfg.Mode)

	st, err := newStorageClientForMode(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	serviceLog.Info("Object storage initialized", "emulator_host", cfg.EmulatorHost)
	return &bucketService{log: serviceLog, storageClient: st}, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	if cfg.IsEmulatorMode() {
		return storage.NewClient(ctx,
			option.WithoutAuthentication(),
			option.WithEndpoint(cfg.EmulatorHost+"/storage/v1/"),
		)
	}
	opts := ClientOptions(cfg.Credentials)
	opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	return storage.NewClient(ctx, opts...)
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	r.cancel()
	return err
}

func (bs *bucketService) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	// The reader outlives this call; cancel only once it is closed.
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := bs.storageClient.Bucket(bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("gs://%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (bs *bucketService) Size(ctx context.Context, bucket, key string) (int64, error) {
	attrs, err := bs.storageClient.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return 0, fmt.Errorf("gs://%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return 0, fmt.Errorf("gcs attrs: %w", err)
	}
	return attrs.Size, nil
}

func (bs *bucketService) Close() error {
	if bs == nil || bs.storageClient == nil {
		return nil
	}
	return bs.storageClient.Close()
}
