package app

import (
	"fmt"

	"github.com/yungbote/research-evidence-backend/internal/platform/gcp"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

var newObjectReader = gcp.NewObjectReader

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidConfig StorageProviderBootstrapErrorCode = "invalid_config"
	StorageProviderBootstrapErrorConnectFailed StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "object storage bootstrap failed"
	}
	return fmt.Sprintf(
		"object storage bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveObjectReader returns nil when object storage is disabled; gs://
// evidence then fails extraction instead of the whole service failing to boot.
func resolveObjectReader(log *logger.Logger, cfg Config) (gcp.ObjectReader, error) {
	if !cfg.ObjectStorageEnabled {
		log.Info("Object storage disabled; gs:// evidence will not be readable")
		return nil, nil
	}
	storageCfg := cfg.ObjectStorage.Normalize()
	if err := storageCfg.Validate(); err != nil {
		berr := &StorageProviderBootstrapError{
			Code:         StorageProviderBootstrapErrorInvalidConfig,
			Mode:         string(storageCfg.Mode),
			EmulatorHost: storageCfg.EmulatorHost,
			Cause:        err,
		}
		log.Error("Object storage provider selection failed", "mode", storageCfg.Mode, "error_code", berr.Code, "error", err)
		return nil, berr
	}

	log.Info("Selecting object storage provider", "mode", storageCfg.Mode, "emulator_host", storageCfg.EmulatorHost)
	reader, err := newObjectReader(log, storageCfg)
	if err != nil {
		berr := &StorageProviderBootstrapError{
			Code:         StorageProviderBootstrapErrorConnectFailed,
			Mode:         string(storageCfg.Mode),
			EmulatorHost: storageCfg.EmulatorHost,
			Cause:        err,
		}
		log.Error("Object storage provider bootstrap failed", "mode", storageCfg.Mode, "error_code", berr.Code, "error", err)
		return nil, berr
	}
	return reader, nil
}
