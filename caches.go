package dbus

import (
	"errors"
	"sync"
)

// errNotFound is returned by cache.Get when the requested key has no
// entry yet.
var errNotFound = errors.New("not found in cache")

// cache is a concurrent-safe memoization table keyed by a comparable
// type, typically a reflect.Type. It is used to memoize the results
// of reflection-heavy work (signature computation, encoder/decoder
// construction) that would otherwise be repeated on every call.
//
// Entries can record either a successful value or an error, so that a
// type which fails to produce a valid mapping doesn't get re-derived
// on every subsequent lookup.
type cache[K comparable, V any] struct {
	m sync.Map // K -> cacheEntry[V]
}

type cacheEntry[V any] struct {
	val V
	err error
}

// Get returns the cached value for key. If key has no entry yet, Get
// returns errNotFound. Any other non-nil error is the one previously
// recorded for key with SetErr.
func (c *cache[K, V]) Get(key K) (V, error) {
	v, ok := c.m.Load(key)
	if !ok {
		var zero V
		return zero, errNotFound
	}
	ent := v.(cacheEntry[V])
	return ent.val, ent.err
}

// Set records val as the successful result for key.
func (c *cache[K, V]) Set(key K, val V) {
	c.m.Store(key, cacheEntry[V]{val: val})
}

// SetErr records err as the result for key. A subsequent Get returns
// the zero value and err.
func (c *cache[K, V]) SetErr(key K, err error) {
	var zero V
	c.m.Store(key, cacheEntry[V]{val: zero, err: err})
}
