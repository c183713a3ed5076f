// Package cmap provides a sharded concurrent map keyed by strings.
//
// Keys are spread over a power-of-two number of shards with murmur3;
// each shard has its own RWMutex. Rename moves an entry between keys
// atomically, locking the two shards in index order.
//
// Usage:
//
//	m := cmap.New[string, *domain.Session]()
//	m.Set(id, session)
//	s, ok := m.Get(id)
package cmap
