package encryption

import (
	"fmt"
	"io"

	"mediasort/internal/media"
)

// NoneEncryptor stores snapshots as plaintext.
type NoneEncryptor struct{}

var _ media.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(string) error { return nil }

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (NoneEncryptor) Unlock(string) (media.DecryptionContext, error) {
	return plaintextContext{}, nil
}

func (NoneEncryptor) IsConfigured() bool { return true }

// NeedsPassphrase reports whether Unlock uses its passphrase.
func NeedsPassphrase(enc media.Encryptor) bool {
	switch enc.(type) {
	case NoneEncryptor, *TestEncryptor:
		return false
	default:
		return true
	}
}

type plaintextContext struct{}

func (plaintextContext) Decrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
