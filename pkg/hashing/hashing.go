// Package hashing implements the Content Hasher (C1): a deterministic
// 32-byte hash over petition text and event payloads, used to produce the
// witness_hash carried by every ledger event.
//
// Grounded on the teacher's direct crypto/sha256 usage in
// pkg/merkle/tree.go (sha256.Sum256 over raw byte content); no third-party
// hashing library is wired because SHA-256 is the algorithm the teacher
// itself reaches for, via the standard library.
package hashing

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// Size is the fixed output length in bytes.
const Size = sha256.Size // 32

// Hash computes the deterministic 32-byte digest of content.
func Hash(content []byte) [Size]byte {
	return sha256.Sum256(content)
}

// HashText encodes text as UTF-8 (the native Go string encoding) and hashes
// it. Go strings are already UTF-8 byte sequences, so this is a thin,
// explicit alias kept for symmetry with the spec's hash_text operation.
func HashText(text string) [Size]byte {
	return Hash([]byte(text))
}

// Verify performs a constant-time comparison of content's hash against
// expected. It returns an error if expected is not exactly Size bytes.
func Verify(content []byte, expected []byte) (bool, error) {
	if len(expected) != Size {
		return false, fmt.Errorf("hashing: expected digest must be %d bytes, got %d", Size, len(expected))
	}
	got := Hash(content)
	return subtle.ConstantTimeCompare(got[:], expected) == 1, nil
}
