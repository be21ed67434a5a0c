// Package fingerprint computes content digests used for upload deduplication.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// DefaultChunkSize is the read buffer used when none is configured.
const DefaultChunkSize = 64 * 1024

// Hasher streams files through SHA-256 in fixed-size chunks.
type Hasher struct {
	chunkSize int
}

// NewHasher creates a Hasher. A non-positive chunkSize selects DefaultChunkSize.
func NewHasher(chunkSize int) *Hasher {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Hasher{chunkSize: chunkSize}
}

// Sum returns the lowercase hex SHA-256 digest of the file at path.
// The file is never held in memory as a whole; ctx is checked between chunks.
func (h *Hasher) Sum(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return h.SumReader(ctx, f)
}

// SumReader digests everything readable from r.
func (h *Hasher) SumReader(ctx context.Context, r io.Reader) (string, error) {
	digest := sha256.New()
	buf := make([]byte, h.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(buf)
		if n > 0 {
			digest.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read chunk: %w", err)
		}
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}
