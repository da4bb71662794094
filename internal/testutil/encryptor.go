package testutil

import (
	"taxarchive/internal/archive"
	"taxarchive/internal/encryption"
)

// NewTestEncryptor creates a reversible encryptor that needs no keys.
func NewTestEncryptor() archive.Encryptor {
	return encryption.NewTestEncryptor()
}
