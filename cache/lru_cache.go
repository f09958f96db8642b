// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache is a bounded cache for values that never change once computed,
// such as the signer recovered from a (digest, signature) pair.
type LRUCache[K comparable, V any] struct {
	cache *lru.Cache[K, V]
}

func NewLRUCache[K comparable, V any](size int) (*LRUCache[K, V], error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache[K, V]{cache: c}, nil
}

// Get returns the cached value for key, otherwise fetches it using fetchFunc.
// Failed fetches are not cached.
func (c *LRUCache[K, V]) Get(key K, fetchFunc func(K) (V, error)) (V, error) {
	if value, found := c.cache.Get(key); found {
		return value, nil
	}

	newValue, err := fetchFunc(key)
	if err != nil {
		var zero V
		return zero, err
	}

	c.cache.Add(key, newValue)
	return newValue, nil
}

// Len returns the number of cached entries
func (c *LRUCache[K, V]) Len() int {
	return c.cache.Len()
}
