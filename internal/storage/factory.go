package storage

import (
	"strings"

	"github.com/timmy/stickergen/internal/config"
)

// NewStorage creates the S3-compatible client described by cfg.
// Parameters:
//   - cfg: storage section of the service configuration.
// Returns:
//   - *S3Storage: initialized storage client.
//   - error: non-nil if the storage client cannot be created.
func NewStorage(cfg *config.StorageConfig) (*S3Storage, error) {
	storeType := StorageType(cfg.Type)
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	return NewS3Storage(&S3Config{
		Type:      storeType,
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		PublicURL: cfg.PublicURL,
	})
}

// detectStorageType guesses the storage flavour from the endpoint host
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
