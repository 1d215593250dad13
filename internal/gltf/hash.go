package gltf

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the hex SHA-256 digest of a payload. It is the storage
// dedup key and the change-detection signal for asset bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
