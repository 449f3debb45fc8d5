// Package pathutil sandboxes filesystem access to a configured document
// root and provides the content-addressed vector cache lookup used to skip
// re-embedding on re-ingest.
package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
)

// vectorCacheNamespace is the uuid_v5 namespace of cache keys:
// the cache key is path-stable (uuid_v5(URL, fullFilePath)), not
// content-stable, so a renamed file gets a new key.
var vectorCacheNamespace = uuid.NameSpaceURL

// NormalizePath rejects empty, ".", "..", and "/" inputs, and any path
// that cleans to "." or climbs out through "..", and returns the cleaned
// path. Absolute inputs stay absolute.
func NormalizePath(p string) (string, error) {
	if p == "" || p == "." || p == ".." || p == "/" {
		return "", fmt.Errorf("%w: %q", ingesterr.ErrInvalidPath, p)
	}
	cleaned := filepath.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ingesterr.ErrInvalidPath, p)
	}
	return cleaned, nil
}

// IsWithin reports whether inner resolves to a location strictly inside
// outer. Equal paths and any path that escapes via ".." return false.
func IsWithin(outer, inner string) bool {
	outerAbs, err := filepath.Abs(outer)
	if err != nil {
		return false
	}
	innerAbs, err := filepath.Abs(inner)
	if err != nil {
		return false
	}
	if outerAbs == innerAbs {
		return false
	}
	rel, err := filepath.Rel(outerAbs, innerAbs)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

// ResolveWithin joins root and candidate, rejecting any result that escapes
// root.
func ResolveWithin(root, candidate string) (string, error) {
	norm, err := NormalizePath(candidate)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, norm)
	if !IsWithin(root, full) {
		return "", fmt.Errorf("%w: %q escapes root %q", ingesterr.ErrInvalidPath, candidate, root)
	}
	return full, nil
}

// VectorCacheKey derives the content-addressed (by path, not content) cache
// key for a document at fullFilePath.
func VectorCacheKey(fullFilePath string) uuid.UUID {
	return uuid.NewSHA1(vectorCacheNamespace, []byte(fullFilePath))
}
