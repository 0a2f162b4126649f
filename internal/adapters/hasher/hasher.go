// Package hasher implements ports.Hasher using xxhash, a fast
// non-cryptographic digest suitable for content-addressing temp storage
// files and command-fingerprint comparisons.
package hasher

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// XXHash implements ports.Hasher.
type XXHash struct{}

// New creates an XXHash hasher.
func New() *XXHash { return &XXHash{} }

// Sum returns the hex-encoded xxhash digest of data.
func (h *XXHash) Sum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// SumFile returns the hex-encoded xxhash digest of the file at path,
// streaming its content rather than reading it fully into memory.
func (h *XXHash) SumFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is resolved by the caller from a configured root
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open file for hashing"), "path", path)
	}
	defer f.Close()

	d := xxhash.New()
	if _, err := io.Copy(d, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}
	return fmt.Sprintf("%016x", d.Sum64()), nil
}
