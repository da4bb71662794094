package encryption

import (
	"fmt"

	"taxarchive/internal/archive"
	"taxarchive/internal/config"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" (or empty) returns a nil Encryptor: stashes are stored as plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (archive.Encryptor, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
