package classpath

import (
	"sync/atomic"

	"github.com/chazu/minijvm/classfile"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// DefaultCacheSize is the number of decoded classes a Cached keeps when no
// size is configured.
const DefaultCacheSize = 256

// Cached memoizes decoded classes of another provider in an LRU cache.
// The interpreter asks for a class on every invokestatic, so this spares
// repeated reads and decoding.
type Cached struct {
	next   Provider
	cache  *lru.Cache
	hits   uint64
	misses uint64
}

// CacheStats counts lookups served from and past the cache.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

// NewCached wraps next. size <= 0 selects DefaultCacheSize.
func NewCached(next Provider, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "creating class cache")
	}
	return &Cached{next: next, cache: cache}, nil
}

// LoadClass returns the cached class or loads and caches it. Failures are
// not cached.
func (c *Cached) LoadClass(name string) (*classfile.Class, error) {
	name = classfile.InternalName(name)
	if v, ok := c.cache.Get(name); ok {
		atomic.AddUint64(&c.hits, 1)
		return v.(*classfile.Class), nil
	}
	atomic.AddUint64(&c.misses, 1)
	class, err := c.next.LoadClass(name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(name, class)
	return class, nil
}

// Purge empties the cache.
func (c *Cached) Purge() {
	c.cache.Purge()
}

func (c *Cached) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadUint64(&c.hits),
		Misses: atomic.LoadUint64(&c.misses),
		Len:    c.cache.Len(),
	}
}

// Closure loads the named roots and every class they reference through
// method or field constants, transitively. Referenced classes the provider
// cannot find, such as java/lang/System, are skipped; roots must exist.
// The result is ordered by discovery.
func Closure(p Provider, roots ...string) ([]*classfile.Class, error) {
	seen := make(map[string]bool)
	var out []*classfile.Class
	queue := make([]string, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, classfile.InternalName(r))
	}
	required := len(queue)

	for i := 0; i < len(queue); i++ {
		name := queue[i]
		if seen[name] {
			continue
		}
		seen[name] = true
		c, err := p.LoadClass(name)
		if err != nil {
			if i >= required && errors.Is(err, ErrClassNotFound) {
				log.Debugf("closure: skipping %s", name)
				continue
			}
			return nil, err
		}
		out = append(out, c)
		for _, ref := range c.ClassRefs() {
			if !seen[ref] {
				queue = append(queue, ref)
			}
		}
	}
	return out, nil
}
