/*
 cache.go

 GNU GENERAL PUBLIC LICENSE
 Version 3, 29 June 2007
 Copyright (C) 2025 The paperfs authors

 This program is free software: you can redistribute it and/or modify
 it under the terms of the GNU General Public License as published by
 the Free Software Foundation, either version 3 of the License, or
 (at your option) any later version.

 This program is distributed in the hope that it will be useful,
 but WITHOUT ANY WARRANTY; without even the implied warranty of
 MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 GNU General Public License for more details.

 You should have received a copy of the GNU General Public License
 along with this program.  If not, see <https://www.gnu.org/licenses/> */

package vfs

import (
	"container/list"
)

const (
	DefaultCacheCapacity = 64
)

// CacheStats is a snapshot of the cache counters, exposed for the
// system-status report.
type CacheStats struct {
	Capacity  int
	Entries   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// BlockCache is an LRU cache mapping block number to raw block bytes. It
// knows nothing about filesystem semantics; every Put is an authoritative
// write-through from the caller. Capacity 0 disables caching entirely.
type BlockCache struct {
	capacity  int
	cache     map[uint32]*list.Element
	list      *list.List
	hits      uint64
	misses    uint64
	evictions uint64
}

type cachedBlock struct {
	blockID uint32
	data    []byte
}

func NewBlockCache(capacity int) *BlockCache {
	if capacity < 0 {
		capacity = 0
	}
	return &BlockCache{
		capacity: capacity,
		cache:    make(map[uint32]*list.Element),
		list:     list.New(),
	}
}

// Get returns a copy of the cached block and promotes it. The copy keeps
// callers from mutating resident entries behind the cache's back.
func (c *BlockCache) Get(blockID uint32) ([]byte, bool) {
	if c.capacity == 0 {
		c.misses++
		return nil, false
	}
	elem, found := c.cache[blockID]
	if !found {
		c.misses++
		return nil, false
	}
	c.list.MoveToFront(elem)
	c.hits++
	data := elem.Value.(*cachedBlock).data
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// Put inserts or replaces a block, evicting the least-recently-used entry
// on capacity pressure.
func (c *BlockCache) Put(blockID uint32, data []byte) {
	if c.capacity == 0 {
		return
	}
	stored := make([]byte, len(data))
	copy(stored, data)

	if elem, found := c.cache[blockID]; found {
		elem.Value.(*cachedBlock).data = stored
		c.list.MoveToFront(elem)
		return
	}

	if c.list.Len() >= c.capacity {
		backElem := c.list.Back()
		if backElem != nil {
			c.list.Remove(backElem)
			delete(c.cache, backElem.Value.(*cachedBlock).blockID)
			c.evictions++
		}
	}

	elem := c.list.PushFront(&cachedBlock{blockID: blockID, data: stored})
	c.cache[blockID] = elem
}

// Reset drops every entry; counters survive. Used on remount so stale
// blocks are never served after the backing file changed underneath us.
func (c *BlockCache) Reset() {
	c.cache = make(map[uint32]*list.Element)
	c.list = list.New()
}

func (c *BlockCache) Stats() CacheStats {
	return CacheStats{
		Capacity:  c.capacity,
		Entries:   c.list.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
