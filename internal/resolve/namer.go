package resolve

import (
	"fmt"
	"hash/crc32"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// GenerateName returns "<basename>.<crc32>" for resource, where basename is
// the final path element without its last extension and crc32 is the
// zero-padded lower-case hex IEEE checksum of the whole resource string.
func GenerateName(resource string) string {
	base := strings.TrimRight(resource, "/")
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}

	return fmt.Sprintf("%s.%08x", base, crc32.ChecksumIEEE([]byte(resource)))
}

// NameGenerator memoizes GenerateName. Names are pure functions of the
// resource so the cache never needs invalidation.
type NameGenerator struct {
	cache *lru.Cache[string, string]
}

// NewNameGenerator creates a generator caching up to size names.
func NewNameGenerator(size int) (*NameGenerator, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating name cache: %w", err)
	}

	return &NameGenerator{cache: cache}, nil
}

// Name returns the stable identifier for resource.
func (g *NameGenerator) Name(resource string) string {
	if name, ok := g.cache.Get(resource); ok {
		return name
	}
	name := GenerateName(resource)
	g.cache.Add(resource, name)

	return name
}
