// Package identity derives content fingerprints for downloaded workbooks.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Fingerprint hashes everything read from r and returns the hex SHA-256 digest
// and the number of bytes read.
func Fingerprint(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func FileFingerprint(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return Fingerprint(f)
}

// Short is the first 16 hex characters of a fingerprint, for log lines and filenames.
func Short(fingerprint string) string {
	if len(fingerprint) <= 16 {
		return fingerprint
	}
	return fingerprint[:16]
}
