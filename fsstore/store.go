/*
 store.go

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
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ospkit/paperfs/vfs"
)

// Store is the single owner of a mounted Vfs. The Vfs does no internal
// locking, so every operation here holds one mutex for its whole duration;
// filesystem throughput is deliberately serialized across all callers.
type Store struct {
	mu          sync.Mutex
	vfs         *vfs.Vfs
	backingFile string
}

// Status is the system-status snapshot consumed by the service's
// VIEW_SYSTEM_STATUS report.
type Status struct {
	BackingFile    string
	BlockSize      uint32
	TotalBlocks    uint32
	InodeCount     uint32
	DataBlocks     uint32
	FreeDataBlocks uint32
	Cache          vfs.CacheStats
}

// Open mounts (formatting if needed) the backing file from cfg.
func Open(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.BackingFile); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	v := vfs.New(cfg.CacheCapacity)
	if err := v.Mount(cfg.BackingFile); err != nil {
		return nil, err
	}
	return &Store{vfs: v, backingFile: cfg.BackingFile}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.Close()
}

func (s *Store) CreateDirectory(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.CreateDirectory(path)
}

func (s *Store) WriteFile(path string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.WriteFile(path, content)
}

func (s *Store) ReadFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.ReadFile(path)
}

func (s *Store) RemoveFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.RemoveFile(path)
}

func (s *Store) RemoveDirectory(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.RemoveDirectory(path)
}

func (s *Store) ListDirectory(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.ListDirectory(path)
}

func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.Sync()
}

func (s *Store) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	free, err := s.vfs.CountFreeDataBlocks()
	if err != nil {
		return Status{}, err
	}
	sb := s.vfs.SuperBlock()
	return Status{
		BackingFile:    s.backingFile,
		BlockSize:      sb.BlockSize,
		TotalBlocks:    sb.TotalBlocks,
		InodeCount:     sb.InodeCount,
		DataBlocks:     sb.DataBlockCount,
		FreeDataBlocks: free,
		Cache:          s.vfs.CacheStats(),
	}, nil
}

// FreeBitmap snapshots the data-region bitmap for the status heat map.
func (s *Store) FreeBitmap() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vfs.FreeBitmap()
}

// Backup flushes the filesystem and copies the backing file to dst.
func (s *Store) Backup(dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.vfs.Sync(); err != nil {
		return err
	}
	if err := copyFile(s.backingFile, dst); err != nil {
		logrus.Errorf("backup to %s failed: %s", dst, err)
		return err
	}
	logrus.Infof("backup written to %s", dst)
	return nil
}

// Restore overwrites the backing file with src and remounts with a cold
// cache so no stale block survives.
func (s *Store) Restore(src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.vfs.Remount(func(path string) error {
		return copyFile(src, path)
	})
	if err != nil {
		logrus.Errorf("restore from %s failed: %s", src, err)
		return err
	}
	logrus.Infof("restored from %s", src)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
