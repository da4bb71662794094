package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Stash uploads a displaced file to the vault and records it in the ledger.
// When an encryptor is configured the content is encrypted first and stored
// under the hash of the ciphertext.
func (s *Service) Stash(originalPath string, r io.Reader, size int64, checksum, reason string) error {
	if s.vault == nil {
		return fmt.Errorf("no vault configured")
	}

	stash := &Stash{
		Checksum:     checksum,
		ContentID:    checksum,
		OriginalPath: originalPath,
		Reason:       reason,
		Size:         size,
		StashedAt:    s.clock.Now(),
	}

	if s.encryptor != nil && s.encryptor.IsConfigured() {
		tmp, err := os.CreateTemp("", "taxarchive-stash-*")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		defer os.Remove(tmp.Name())
		defer tmp.Close()

		h := sha256.New()
		if err := s.encryptor.Encrypt(r, io.MultiWriter(tmp, h)); err != nil {
			return fmt.Errorf("encrypting: %w", err)
		}
		encSize, err := tmp.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("measuring ciphertext: %w", err)
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewinding ciphertext: %w", err)
		}

		stash.ContentID = hex.EncodeToString(h.Sum(nil))
		stash.Encrypted = true
		if err := s.vault.PutContent(stash.ContentID, tmp, encSize); err != nil {
			return fmt.Errorf("uploading to vault: %w", err)
		}
	} else if err := s.vault.PutContent(checksum, r, size); err != nil {
		return fmt.Errorf("uploading to vault: %w", err)
	}

	if err := s.store.RecordStash(stash); err != nil {
		return fmt.Errorf("recording stash: %w", err)
	}
	s.logger.Info("file stashed", "path", originalPath, "checksum", checksum, "reason", reason, "encrypted", stash.Encrypted)
	return nil
}

// Stashes returns the most recent stashes, newest first.
func (s *Service) Stashes(limit int) ([]*Stash, error) {
	stashes, err := s.store.ListStashes(limit)
	if err != nil {
		return nil, fmt.Errorf("listing stashes: %w", err)
	}
	return stashes, nil
}

// FindStash returns the most recent stash with the given checksum, or nil.
func (s *Service) FindStash(checksum string) (*Stash, error) {
	stash, err := s.store.FindStash(checksum)
	if err != nil {
		return nil, fmt.Errorf("finding stash: %w", err)
	}
	return stash, nil
}

// RestoreStash writes the stashed content with the given checksum to dest,
// which must not exist. decryptCtx is required for encrypted stashes.
func (s *Service) RestoreStash(checksum string, dest string, decryptCtx DecryptionContext) error {
	if s.vault == nil {
		return fmt.Errorf("no vault configured")
	}
	stash, err := s.FindStash(checksum)
	if err != nil {
		return err
	}
	if stash == nil {
		return fmt.Errorf("no stash with checksum %s", checksum)
	}
	if stash.Encrypted && decryptCtx == nil {
		return fmt.Errorf("stash is encrypted but no passphrase was provided")
	}

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if stash.Encrypted {
		pr, pw := io.Pipe()
		vaultErrCh := make(chan error, 1)
		go func() {
			err := s.vault.GetContent(stash.ContentID, pw)
			pw.CloseWithError(err)
			vaultErrCh <- err
		}()

		decryptErr := decryptCtx.Decrypt(pr, f)
		pr.CloseWithError(decryptErr)
		vaultErr := <-vaultErrCh

		if decryptErr != nil {
			os.Remove(dest)
			return fmt.Errorf("decrypting content: %w", decryptErr)
		}
		if vaultErr != nil {
			os.Remove(dest)
			return fmt.Errorf("retrieving content from vault: %w", vaultErr)
		}
	} else if err := s.vault.GetContent(stash.ContentID, f); err != nil {
		os.Remove(dest)
		return fmt.Errorf("retrieving content from vault: %w", err)
	}

	s.logger.Info("stash restored", "checksum", checksum, "path", dest)
	return nil
}

var _ Stasher = (*Service)(nil)
