/*
 store_test.go

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

package fsstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ospkit/paperfs/vfs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{
		BackingFile:   filepath.Join(t.TempDir(), "store.img"),
		CacheCapacity: 16,
	})
	if err != nil {
		t.Fatalf("open failed: %s", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreOperationSurface(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateDirectory("/papers"); err != nil {
		t.Fatalf("mkdir failed: %s", err)
	}
	if err := s.WriteFile("/papers/meta.txt", []byte("1\n7\nSubmitted")); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	data, err := s.ReadFile("/papers/meta.txt")
	if err != nil || string(data) != "1\n7\nSubmitted" {
		t.Fatalf("read: %q, %v", data, err)
	}
	listing, err := s.ListDirectory("/")
	if err != nil || listing != "papers/" {
		t.Fatalf("list: %q, %v", listing, err)
	}
	if err := s.RemoveDirectory("/papers"); !errors.Is(err, vfs.ErrNotEmpty) {
		t.Fatalf("rmdir non-empty: err = %v, want ErrNotEmpty", err)
	}
	if err := s.RemoveFile("/papers/meta.txt"); err != nil {
		t.Fatalf("rm failed: %s", err)
	}
	if err := s.RemoveDirectory("/papers"); err != nil {
		t.Fatalf("rmdir failed: %s", err)
	}
	if err := s.Sync(); err != nil {
		t.Fatalf("sync failed: %s", err)
	}
}

func TestStoreStatusAccounting(t *testing.T) {
	s := newTestStore(t)

	before, err := s.Status()
	if err != nil {
		t.Fatalf("status failed: %s", err)
	}
	if before.FreeDataBlocks != before.DataBlocks-1 {
		t.Errorf("fresh store free = %d, want %d", before.FreeDataBlocks, before.DataBlocks-1)
	}

	// One directory block plus three file blocks.
	if err := s.CreateDirectory("/d"); err != nil {
		t.Fatalf("mkdir failed: %s", err)
	}
	content := make([]byte, 3*int(vfs.DefaultBlockSize))
	if err := s.WriteFile("/d/f", content); err != nil {
		t.Fatalf("write failed: %s", err)
	}

	after, err := s.Status()
	if err != nil {
		t.Fatalf("status failed: %s", err)
	}
	if got, want := before.FreeDataBlocks-after.FreeDataBlocks, uint32(4); got != want {
		t.Errorf("consumed %d data blocks, want %d", got, want)
	}
	if after.BlockSize != vfs.DefaultBlockSize || after.TotalBlocks != vfs.DefaultTotalBlocks {
		t.Errorf("status geometry: %+v", after)
	}
	if after.Cache.Capacity != 16 {
		t.Errorf("cache capacity = %d, want 16", after.Cache.Capacity)
	}

	bitmap, err := s.FreeBitmap()
	if err != nil {
		t.Fatalf("bitmap failed: %s", err)
	}
	if len(bitmap) != int(vfs.DefaultFreeBitmapBlocks)*int(vfs.DefaultBlockSize) {
		t.Errorf("bitmap length = %d", len(bitmap))
	}
}

func TestStoreBackupRestore(t *testing.T) {
	s := newTestStore(t)
	snap := filepath.Join(t.TempDir(), "snap.img")

	if err := s.WriteFile("/keep", []byte("survives")); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	if err := s.Backup(snap); err != nil {
		t.Fatalf("backup failed: %s", err)
	}

	if err := s.WriteFile("/keep", []byte("clobbered")); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	if err := s.WriteFile("/late", []byte("x")); err != nil {
		t.Fatalf("write failed: %s", err)
	}

	if err := s.Restore(snap); err != nil {
		t.Fatalf("restore failed: %s", err)
	}
	data, err := s.ReadFile("/keep")
	if err != nil || string(data) != "survives" {
		t.Fatalf("restored content: %q, %v", data, err)
	}
	if _, err := s.ReadFile("/late"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("post-backup file survived restore: %v", err)
	}
}

func TestStoreRestoreMissingSnapshot(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteFile("/f", []byte("x")); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	if err := s.Restore(filepath.Join(t.TempDir(), "nope.img")); err == nil {
		t.Fatalf("restore from missing snapshot must fail")
	}
	// The store stays mounted and usable after a failed restore.
	if data, err := s.ReadFile("/f"); err != nil || string(data) != "x" {
		t.Errorf("store unusable after failed restore: %q, %v", data, err)
	}
}

func TestStoreConcurrentWriters(t *testing.T) {
	s := newTestStore(t)
	const writers = 8

	var wg sync.WaitGroup
	errc := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			path := fmt.Sprintf("/w%d", n)
			body := []byte(fmt.Sprintf("writer %d", n))
			if err := s.WriteFile(path, body); err != nil {
				errc <- err
			}
		}(i)
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		t.Fatalf("concurrent write failed: %s", err)
	}

	for i := 0; i < writers; i++ {
		data, err := s.ReadFile(fmt.Sprintf("/w%d", i))
		if err != nil {
			t.Fatalf("read w%d failed: %s", i, err)
		}
		if string(data) != fmt.Sprintf("writer %d", i) {
			t.Errorf("w%d content = %q", i, data)
		}
	}
	status, err := s.Status()
	if err != nil {
		t.Fatalf("status failed: %s", err)
	}
	if got := status.DataBlocks - status.FreeDataBlocks; got != writers+1 {
		t.Errorf("used data blocks = %d, want %d", got, writers+1)
	}
}
