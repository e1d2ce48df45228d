package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
)

// Hasher provides hashing for module content
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

// Hash computes a hex hash of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case SHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// ManifestDigest computes the digest of a module file set.
// Each entry contributes "path\x00hex(hash(content))\n" in sorted path order,
// so the digest is independent of map iteration and of how files were read.
func (h *Hasher) ManifestDigest(files map[string][]byte) string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		b.WriteString(path)
		b.WriteByte(0)
		b.WriteString(h.Hash(files[path]))
		b.WriteByte('\n')
	}
	return fmt.Sprintf("%s:%s", h.algorithm, h.HashString(b.String()))
}

// ManifestDigest computes a manifest digest with the default hasher
func ManifestDigest(files map[string][]byte) string {
	return DefaultHasher().ManifestDigest(files)
}

// ShortHash returns the first 12 characters of a digest body for logs
func ShortHash(digest string) string {
	if i := strings.IndexByte(digest, ':'); i >= 0 {
		digest = digest[i+1:]
	}
	if len(digest) < 12 {
		return digest
	}
	return digest[:12]
}
