package document

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
)

// FingerprintLength is the number of hex characters kept from the digest.
const FingerprintLength = 16

// Document is a unit of loaded content. It is chunked right after loading
// and never persisted on its own.
type Document struct {
	Text       string
	OriginPath string
	// Extra is copied onto every chunk produced from the document.
	Extra map[string]string
}

// New creates a Document, copying extra.
func New(originPath, text string, extra map[string]string) Document {
	return Document{Text: text, OriginPath: originPath, Extra: maps.Clone(extra)}
}

// Fingerprint returns the dedup digest of the document.
func (d Document) Fingerprint() string {
	return Fingerprint(d.OriginPath, d.Text)
}

// Fingerprint hashes "path:text" and truncates the hex digest.
// Collisions are accepted; the space is 64 bits.
func Fingerprint(originPath, text string) string {
	sum := sha256.Sum256([]byte(originPath + ":" + text))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}
