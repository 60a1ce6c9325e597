package shader

import "github.com/gogpu/framepipe/internal/cache"

type programKey struct {
	label  string
	source string
	debug  bool
}

// Cache keeps compiled programs so pipelines that are torn down and built
// again skip the naga pipeline. Failed compilations are not cached.
type Cache struct {
	programs *cache.Cache[programKey, *Program]
}

// NewCache returns a cache holding at most capacity programs.
func NewCache(capacity int) *Cache {
	return &Cache{programs: cache.New[programKey, *Program](capacity)}
}

// Compile returns the cached program for label, source and opts, compiling
// it on a miss.
func (c *Cache) Compile(label, source string, opts Options) (*Program, error) {
	key := programKey{label: label, source: source, debug: opts.Debug}
	return c.programs.GetOrCreate(key, func() (*Program, error) {
		return Compile(label, source, opts)
	})
}

// Stats returns the cache counters.
func (c *Cache) Stats() cache.Stats {
	return c.programs.Stats()
}
