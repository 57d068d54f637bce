/*
 scenario_test.go

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

package vfs_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ospkit/paperfs/vfs"
)

func mountScratch(t *testing.T) *vfs.Vfs {
	t.Helper()
	v := vfs.New(vfs.DefaultCacheCapacity)
	if err := v.Mount(filepath.Join(t.TempDir(), "scratch.img")); err != nil {
		t.Fatalf("mount failed: %s", err)
	}
	t.Cleanup(func() { v.Close() })
	return v
}

// TestPaperSubmissionFlow walks the directory layout a submission service
// builds per paper: /papers/<id>/meta.txt with the review metadata inside.
func TestPaperSubmissionFlow(t *testing.T) {
	v := mountScratch(t)

	if err := v.CreateDirectory("/papers"); err != nil {
		t.Fatalf("mkdir /papers: %s", err)
	}
	if err := v.CreateDirectory("/papers/1"); err != nil {
		t.Fatalf("mkdir /papers/1: %s", err)
	}
	meta := "1\n7\nSubmitted\nA Study of Block Caches"
	if err := v.WriteFile("/papers/1/meta.txt", []byte(meta)); err != nil {
		t.Fatalf("write meta: %s", err)
	}

	got, err := v.ReadFile("/papers/1/meta.txt")
	if err != nil {
		t.Fatalf("read meta: %s", err)
	}
	if string(got) != meta {
		t.Errorf("meta round trip: %q", got)
	}
	listing, err := v.ListDirectory("/papers")
	if err != nil {
		t.Fatalf("list /papers: %s", err)
	}
	if listing != "1/" {
		t.Errorf("listing = %q, want %q", listing, "1/")
	}
}

func TestRemoveDirectoryRequiresEmpty(t *testing.T) {
	v := mountScratch(t)

	if err := v.CreateDirectory("/papers"); err != nil {
		t.Fatalf("mkdir: %s", err)
	}
	if err := v.CreateDirectory("/papers/1"); err != nil {
		t.Fatalf("mkdir: %s", err)
	}
	if err := v.WriteFile("/papers/1/meta.txt", []byte("1")); err != nil {
		t.Fatalf("write: %s", err)
	}

	if err := v.RemoveDirectory("/papers"); !errors.Is(err, vfs.ErrNotEmpty) {
		t.Fatalf("rmdir /papers: err = %v, want ErrNotEmpty", err)
	}
	if err := v.RemoveDirectory("/papers/1"); !errors.Is(err, vfs.ErrNotEmpty) {
		t.Fatalf("rmdir /papers/1: err = %v, want ErrNotEmpty", err)
	}

	// Bottom-up teardown succeeds.
	if err := v.RemoveFile("/papers/1/meta.txt"); err != nil {
		t.Fatalf("rm meta: %s", err)
	}
	if err := v.RemoveDirectory("/papers/1"); err != nil {
		t.Fatalf("rmdir /papers/1: %s", err)
	}
	if err := v.RemoveDirectory("/papers"); err != nil {
		t.Fatalf("rmdir /papers: %s", err)
	}
	if listing, err := v.ListDirectory("/"); err != nil || listing != "" {
		t.Errorf("root after teardown: %q, %v", listing, err)
	}
}

// TestManyPapersSurviveRemount fills a realistic tree, remounts cold and
// checks everything came back from the backing file.
func TestManyPapersSurviveRemount(t *testing.T) {
	v := mountScratch(t)

	if err := v.CreateDirectory("/papers"); err != nil {
		t.Fatalf("mkdir: %s", err)
	}
	const papers = 20
	for i := 1; i <= papers; i++ {
		dir := fmt.Sprintf("/papers/%d", i)
		if err := v.CreateDirectory(dir); err != nil {
			t.Fatalf("mkdir %s: %s", dir, err)
		}
		meta := fmt.Sprintf("%d\n%d\nSubmitted\nPaper %d", i, i%10, i)
		if err := v.WriteFile(dir+"/meta.txt", []byte(meta)); err != nil {
			t.Fatalf("write %s: %s", dir, err)
		}
	}

	if err := v.Remount(nil); err != nil {
		t.Fatalf("remount: %s", err)
	}

	for i := 1; i <= papers; i++ {
		want := fmt.Sprintf("%d\n%d\nSubmitted\nPaper %d", i, i%10, i)
		got, err := v.ReadFile(fmt.Sprintf("/papers/%d/meta.txt", i))
		if err != nil {
			t.Fatalf("read paper %d: %s", i, err)
		}
		if string(got) != want {
			t.Errorf("paper %d meta = %q", i, got)
		}
	}
	stats := v.CacheStats()
	if stats.Misses == 0 {
		t.Errorf("remount should start with a cold cache: %+v", stats)
	}
}
