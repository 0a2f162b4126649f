// Package token implements ports.TokenStore: a filesystem-backed
// exclusive lock per named token, owner identity recorded as the file's
// content. Acquisition writes the signature to a side file and publishes
// it with os.Link, which — unlike os.Rename — fails with EEXIST if the
// target is already taken, giving the atomic "first writer wins"
// guarantee §4.7/§5 require; Rename alone would silently overwrite a
// concurrent winner.
package token

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.TokenStore, persisting one plain-text file per
// token under root.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a Store persisting token files under root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name+".token")
}

// Acquire attempts to atomically create the token file for token.Name
// with token.HolderID as its content. It never overwrites an existing
// token: if the file already exists under any holder (including the
// caller's own), ok is false and the caller must consult Holder to learn
// who owns it.
func (s *Store) Acquire(t domain.Token) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return false, zerr.Wrap(err, "failed to create token directory")
	}

	target := s.path(t.Name)

	for n := 0; ; n++ {
		tmp := fmt.Sprintf("%s.%d.tmp", target, n)
		f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // tmp is derived from the store's configured root and a caller-supplied token name
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return false, zerr.With(zerr.Wrap(err, "failed to create token temp file"), "token", t.Name)
		}

		_, writeErr := f.WriteString(t.HolderID)
		closeErr := f.Close()
		defer os.Remove(tmp) //nolint:errcheck // best-effort cleanup of the staging file

		if writeErr != nil {
			return false, zerr.With(zerr.Wrap(writeErr, "failed to write token temp file"), "token", t.Name)
		}
		if closeErr != nil {
			return false, zerr.With(zerr.Wrap(closeErr, "failed to close token temp file"), "token", t.Name)
		}

		linkErr := os.Link(tmp, target)
		if linkErr == nil {
			return true, nil
		}
		if os.IsExist(linkErr) {
			return false, nil
		}
		return false, zerr.With(zerr.Wrap(linkErr, "failed to publish token"), "token", t.Name)
	}
}

// Holder returns the signature currently recorded for name.
func (s *Store) Holder(name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(name)) //nolint:gosec // path is derived from the store's configured root and a caller-supplied token name
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, zerr.With(zerr.Wrap(err, "failed to read token"), "token", name)
	}
	return string(data), true, nil
}

// Release removes token.Name's file, but only if it is currently held by
// token.HolderID; releasing a token owned by a different holder is a
// no-op error rather than a forced reclaim.
func (s *Store) Release(t domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.path(t.Name)
	data, err := os.ReadFile(target) //nolint:gosec // path is derived from the store's configured root and a caller-supplied token name
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to read token for release"), "token", t.Name)
	}

	if string(data) != t.HolderID {
		return zerr.With(zerr.With(domain.ErrTokenHeld, "token", t.Name), "holder", string(data))
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return zerr.With(zerr.Wrap(err, "failed to remove token"), "token", t.Name)
	}
	return nil
}
