// Package fingerprint computes content digests used as change-detection keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint is the hex-encoded SHA-256 digest of a file's content bytes.
// Equal fingerprints mean equal content regardless of path or mtime.
type Fingerprint string

// Sum returns the fingerprint of data.
func Sum(data []byte) Fingerprint {
	h := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(h[:]))
}

// File streams the file at path through the hash.
func File(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// String returns the hex digest.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns the first 12 hex characters, for log output.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}
