package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

type ObjectStorageConfig struct {
	Mode         ObjectStorageMode
	EmulatorHost string
	Credentials  string
}

func (cfg ObjectStorageConfig) IsEmulatorMode() bool {
	return cfg.Mode == ObjectStorageModeGCSEmulator
}

// Normalize defaults the mode: an emulator host alone implies emulator mode.
func (cfg ObjectStorageConfig) Normalize() ObjectStorageConfig {
	cfg.Mode = ObjectStorageMode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	cfg.EmulatorHost = strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	if cfg.Mode == "" {
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
		} else {
			cfg.Mode = ObjectStorageModeGCS
		}
	}
	return cfg
}

func (cfg ObjectStorageConfig) Validate() error {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		return nil
	case ObjectStorageModeGCSEmulator:
	default:
		return fmt.Errorf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", cfg.Mode, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	}
	if cfg.EmulatorHost == "" {
		return fmt.Errorf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", cfg.Mode)
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", cfg.EmulatorHost)
	}
	return nil
}

// ParseGSURI splits gs://bucket/path/to/object.
func ParseGSURI(uri string) (bucket, key string, err error) {
	raw := strings.TrimSpace(uri)
	if !strings.HasPrefix(raw, "gs://") {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	rest := strings.TrimPrefix(raw, "gs://")
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || strings.TrimSpace(key) == "" {
		return "", "", fmt.Errorf("gs uri needs bucket and object: %q", uri)
	}
	return bucket, key, nil
}
