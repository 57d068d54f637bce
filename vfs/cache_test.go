/*
 cache_test.go

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
	"bytes"
	"testing"
)

func blockOf(b byte) []byte {
	data := make([]byte, 16)
	for i := range data {
		data[i] = b
	}
	return data
}

func TestCacheLRUEviction(t *testing.T) {
	const n = 4
	c := NewBlockCache(n)

	for id := uint32(1); id <= n+1; id++ {
		if _, hit := c.Get(id); hit {
			t.Errorf("block %d unexpectedly resident", id)
		}
		c.Put(id, blockOf(byte(id)))
	}

	st := c.Stats()
	if st.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", st.Evictions)
	}
	if st.Entries != n {
		t.Errorf("entries = %d, want %d", st.Entries, n)
	}

	if _, hit := c.Get(1); hit {
		t.Errorf("block 1 should have been evicted")
	}
	for id := uint32(2); id <= n+1; id++ {
		data, hit := c.Get(id)
		if !hit {
			t.Errorf("block %d should be resident", id)
			continue
		}
		if !bytes.Equal(data, blockOf(byte(id))) {
			t.Errorf("block %d content mismatch", id)
		}
	}
}

func TestCachePutPromotes(t *testing.T) {
	c := NewBlockCache(2)
	c.Put(1, blockOf(1))
	c.Put(2, blockOf(2))

	// Re-put 1 so 2 becomes the LRU victim.
	c.Put(1, blockOf(9))
	c.Put(3, blockOf(3))

	if _, hit := c.Get(2); hit {
		t.Errorf("block 2 should have been evicted")
	}
	data, hit := c.Get(1)
	if !hit {
		t.Fatalf("block 1 should be resident")
	}
	if !bytes.Equal(data, blockOf(9)) {
		t.Errorf("block 1 should hold the replaced content")
	}
}

func TestCacheGetPromotes(t *testing.T) {
	c := NewBlockCache(2)
	c.Put(1, blockOf(1))
	c.Put(2, blockOf(2))

	if _, hit := c.Get(1); !hit {
		t.Fatalf("block 1 should be resident")
	}
	c.Put(3, blockOf(3))

	if _, hit := c.Get(2); hit {
		t.Errorf("block 2 should have been evicted after block 1 was touched")
	}
	if _, hit := c.Get(1); !hit {
		t.Errorf("block 1 should still be resident")
	}
}

func TestCacheDisabled(t *testing.T) {
	c := NewBlockCache(0)
	c.Put(1, blockOf(1))
	if _, hit := c.Get(1); hit {
		t.Errorf("capacity-0 cache must never hit")
	}
	st := c.Stats()
	if st.Misses != 1 || st.Hits != 0 || st.Entries != 0 {
		t.Errorf("bad disabled-cache stats: %+v", st)
	}
}

func TestCacheCopiesData(t *testing.T) {
	c := NewBlockCache(2)
	data := blockOf(7)
	c.Put(1, data)
	data[0] = 0xff

	got, hit := c.Get(1)
	if !hit {
		t.Fatalf("block 1 should be resident")
	}
	if got[0] != 7 {
		t.Errorf("cache entry aliased the caller's buffer")
	}

	got[1] = 0xee
	again, _ := c.Get(1)
	if again[1] != 7 {
		t.Errorf("Get returned an aliased buffer")
	}
}

func TestCacheReset(t *testing.T) {
	c := NewBlockCache(2)
	c.Put(1, blockOf(1))
	c.Get(1)
	c.Reset()

	if _, hit := c.Get(1); hit {
		t.Errorf("reset cache must not serve old blocks")
	}
	st := c.Stats()
	if st.Entries != 0 {
		t.Errorf("entries = %d after reset, want 0", st.Entries)
	}
	if st.Hits != 1 {
		t.Errorf("counters should survive reset, hits = %d", st.Hits)
	}
}
