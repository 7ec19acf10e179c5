package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// canonicalJSON encodes value as RFC 8785 JSON and returns it with its
// sha256 digest. Equal values always produce byte-identical rows.
func canonicalJSON(value any) (string, string, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", "", fmt.Errorf("encode payload: %w", err)
	}
	canonical, err := jcs.Transform(encoded)
	if err != nil {
		return "", "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return string(canonical), hex.EncodeToString(sum[:]), nil
}
