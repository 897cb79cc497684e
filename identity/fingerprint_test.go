package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	hash, n, err := Fingerprint(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hash)
}

func TestFileFingerprint_MatchesReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("workbook bytes"), 0o644))

	fromFile, size, err := FileFingerprint(path)
	require.NoError(t, err)
	fromReader, _, err := Fingerprint(strings.NewReader("workbook bytes"))
	require.NoError(t, err)

	assert.Equal(t, fromReader, fromFile)
	assert.Equal(t, int64(len("workbook bytes")), size)
}

func TestFileFingerprint_Missing(t *testing.T) {
	_, _, err := FileFingerprint(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "ba7816bf8f01cfea", Short("ba7816bf8f01cfea414140de5dae2223"))
	assert.Equal(t, "abc", Short("abc"))
}
