// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// PredictionKey generates a deterministic cache key for a prediction.
// The model name is part of the key so entries never collide across
// model versions.
func PredictionKey(model, text string) string {
	data := []byte(model + "\x00" + text)
	return SHA256(data)
}

// FileID generates a deterministic short ID from a filename and content hash.
func FileID(name, contentHash string) string {
	data := []byte(name + ":" + contentHash)
	return SHA256Short(data, 16)
}
