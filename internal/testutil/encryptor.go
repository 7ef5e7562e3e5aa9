package testutil

import (
	"mediasort/internal/encryption"
	"mediasort/internal/media"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() media.Encryptor {
	return encryption.NewTestEncryptor()
}
