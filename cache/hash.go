package cache

import (
	"fmt"
	"hash/fnv"
)

// HashContent computes a cheap, non-cryptographic rolling hash over content
// bytes. Collisions are tolerable: a stale hit only costs a redundant tool
// round trip, never correctness.
func HashContent(content string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(content))
	return fmt.Sprintf("%016x", h.Sum64())
}
