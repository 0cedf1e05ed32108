package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// GetFileChecksum hashes the whole file. The ledger uses it to recognise
// a spreadsheet that was already imported.
func GetFileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to copy file content to hasher for file %s: %w", filePath, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// CalculateHash hashes a spreadsheet row after trimming each cell, so rows
// that differ only in surrounding whitespace collide.
func CalculateHash(record []string) string {
	cells := make([]string, len(record))
	for i, cell := range record {
		cells[i] = strings.TrimSpace(cell)
	}

	digest := xxhash.New()
	digest.WriteString(strings.Join(cells, "\x1f"))

	return hex.EncodeToString(digest.Sum(nil))
}

func HashBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
