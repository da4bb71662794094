package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"taxarchive/internal/archive"
)

// testHeader opens every TestEncryptor ciphertext.
var testHeader = []byte("TAXENC\x00\x01")

// TestEncryptor stands in for AgeEncryptor without keys. A ciphertext is
// testHeader followed by the document with every byte inverted, so a vault
// never holds readable document bytes and an encrypted stash's ContentID
// never equals its plaintext checksum.
type TestEncryptor struct {
	// passphrase is set by Setup. Until then Unlock accepts any passphrase.
	passphrase string
}

// NewTestEncryptor creates a TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(invertWriter{w}, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (archive.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return errors.New("not a test ciphertext")
	}
	if _, err := io.Copy(invertWriter{w}, r); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}

type invertWriter struct {
	w io.Writer
}

func (iw invertWriter) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	for i, b := range p {
		out[i] = ^b
	}
	return iw.w.Write(out)
}

var (
	_ archive.Encryptor         = (*TestEncryptor)(nil)
	_ archive.DecryptionContext = (*TestDecryptionContext)(nil)
)
