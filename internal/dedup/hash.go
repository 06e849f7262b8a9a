package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ContentHash is the SHA-256 digest of a document's bytes. It is the only dedup key;
// filenames and remote ids play no part.
type ContentHash [sha256.Size]byte

// Hash digests the full byte sequence. Empty input is valid.
func Hash(b []byte) ContentHash {
	return sha256.Sum256(b)
}

// String returns the lowercase hex form sent downstream as content_hash.
func (h ContentHash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes the hex form produced by String.
func ParseHash(s string) (ContentHash, error) {
	var h ContentHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode content hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("content hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
