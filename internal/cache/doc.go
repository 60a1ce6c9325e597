// Package cache provides a small generic LRU cache.
//
// Cache holds at most a fixed number of entries and evicts the least
// recently used one when a new entry would exceed the limit. It is used to
// keep compiled shader programs across pipeline lifetimes:
//
//	programs := cache.New[string, *shader.Program](8)
//	p, err := programs.GetOrCreate(key, compile)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
