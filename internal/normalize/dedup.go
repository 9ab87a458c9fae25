package normalize

import "github.com/cespare/xxhash/v2"

// tagDedupCache tracks which tag keys have already been kept, so that tag
// normalization can enforce "first occurrence wins" in a single left-to-right
// pass without an O(n^2) scan.
type tagDedupCache struct {
	seen map[uint64]bool
}

func newTagDedupCache() *tagDedupCache {
	return &tagDedupCache{seen: make(map[uint64]bool)}
}

// seenBefore reports whether key was already recorded, and records it if not.
func (c *tagDedupCache) seenBefore(key string) bool {
	h := xxhash.Sum64String(key)
	if c.seen[h] {
		return true
	}
	c.seen[h] = true
	return false
}
