/*
 vfs.go

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
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound      = errors.New("path not found")
	ErrExists        = errors.New("name already exists")
	ErrNotDirectory  = errors.New("not a directory")
	ErrIsDirectory   = errors.New("is a directory")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrNameTooLong   = errors.New("name too long")
	ErrFileTooLarge  = errors.New("file too large")
	ErrRootForbidden = errors.New("operation not allowed on root")
	ErrNoSpace       = errors.New("no free data blocks")
	ErrNoInode       = errors.New("no free inodes")
	ErrCorrupt       = errors.New("filesystem inconsistency")
	ErrNotMounted    = errors.New("filesystem not mounted")
)

// Vfs emulates a block device inside one backing file and exposes
// POSIX-like file and directory operations on top of it. It performs no
// internal locking: every public method assumes exclusive access for the
// duration of the call (the fsstore wrapper enforces this with one mutex).
type Vfs struct {
	sb     SuperBlock
	cache  *BlockCache
	policy AllocPolicy
	path   string
	file   *os.File
}

// New builds an unmounted Vfs with a first-fit allocator and an LRU block
// cache of the given capacity (0 disables caching).
func New(cacheCapacity int) *Vfs {
	return &Vfs{
		cache:  NewBlockCache(cacheCapacity),
		policy: FirstFit{},
	}
}

// SetAllocPolicy swaps the data-block allocation strategy. Must be called
// before Mount.
func (v *Vfs) SetAllocPolicy(p AllocPolicy) {
	if p != nil {
		v.policy = p
	}
}

// Mount opens (creating if absent) the backing file. If its first block is
// a verified superblock the existing filesystem is used as-is; anything
// else is reformatted. Only an unopenable backing file is fatal.
func (v *Vfs) Mount(path string) error {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		logrus.Errorf("mount failed, cannot open backing file %s: %s", path, err)
		return err
	}
	v.file = file
	v.path = path

	first := make([]byte, DefaultBlockSize)
	if n, rerr := file.ReadAt(first, 0); rerr == nil && n == len(first) {
		sb, derr := DecodeSuperBlock(first)
		if derr == nil && sb.Verify() == nil {
			v.sb = sb
			logrus.Infof("mounted existing filesystem on %s <blocks:%d, blocksize:%d, inodes:%d, data blocks:%d>",
				path, sb.TotalBlocks, sb.BlockSize, sb.InodeCount, sb.DataBlockCount)
			return nil
		}
	}
	return v.format()
}

// format lays out a fresh filesystem: grown backing file, zeroed inode
// table and bitmap, a root directory with one data block, then the signed
// superblock.
func (v *Vfs) format() error {
	if v.file == nil {
		return ErrNotMounted
	}
	sb := NewSuperBlock()
	if err := v.file.Truncate(int64(sb.TotalBlocks) * int64(sb.BlockSize)); err != nil {
		logrus.Errorf("format failed, cannot grow %s: %s", v.path, err)
		return err
	}
	v.sb = sb
	v.cache.Reset()

	zero := make([]byte, sb.BlockSize)
	for i := uint32(0); i < sb.InodeTableBlocks; i++ {
		if err := v.writeBlock(sb.InodeTableStart+i, zero); err != nil {
			return err
		}
	}
	for i := uint32(0); i < sb.FreeBitmapBlocks; i++ {
		if err := v.writeBlock(sb.FreeBitmapStart+i, zero); err != nil {
			return err
		}
	}

	rootBlock, err := v.allocDataBlock()
	if err != nil {
		return err
	}
	root := Inode{
		ID:    sb.RootInodeID,
		Flags: FlagUsed | FlagDirectory,
	}
	root.DirectBlocks[0] = rootBlock
	if err := v.storeInode(&root); err != nil {
		return err
	}

	block, err := sb.Encode()
	if err != nil {
		return err
	}
	if err := v.writeBlock(0, block); err != nil {
		return err
	}
	if err := v.file.Sync(); err != nil {
		return err
	}
	logrus.Infof("formatted filesystem on %s <blocks:%d, blocksize:%d, inodes:%d, data blocks:%d, alloc:%s>",
		v.path, sb.TotalBlocks, sb.BlockSize, sb.InodeCount, sb.DataBlockCount, v.policy.Name())
	return nil
}

// Sync flushes the backing file to stable storage.
func (v *Vfs) Sync() error {
	if v.file == nil {
		return ErrNotMounted
	}
	return v.file.Sync()
}

// Remount closes the backing file, runs beforeOpen (which may overwrite the
// file's contents, e.g. a restore), then reopens it with a cold cache so no
// stale block is ever served.
func (v *Vfs) Remount(beforeOpen func(path string) error) error {
	if v.file == nil {
		return ErrNotMounted
	}
	if err := v.file.Sync(); err != nil {
		logrus.Warnf("remount: sync before close failed: %s", err)
	}
	if err := v.file.Close(); err != nil {
		return err
	}
	v.file = nil

	var hookErr error
	if beforeOpen != nil {
		hookErr = beforeOpen(v.path)
	}

	v.cache.Reset()
	if err := v.Mount(v.path); err != nil {
		return err
	}
	return hookErr
}

// Close releases the backing file. The Vfs can be mounted again afterwards.
func (v *Vfs) Close() error {
	if v.file == nil {
		return nil
	}
	err := v.file.Close()
	v.file = nil
	return err
}

func (v *Vfs) SuperBlock() SuperBlock {
	return v.sb
}

func (v *Vfs) CacheStats() CacheStats {
	return v.cache.Stats()
}

// readBlock returns one full block, via the cache when resident.
func (v *Vfs) readBlock(blockID uint32) ([]byte, error) {
	if data, ok := v.cache.Get(blockID); ok {
		return data, nil
	}
	if v.file == nil {
		return nil, ErrNotMounted
	}
	data := make([]byte, v.sb.BlockSize)
	n, err := v.file.ReadAt(data, int64(blockID)*int64(v.sb.BlockSize))
	if err != nil || n != len(data) {
		logrus.Errorf("read block %d failed [n:%d]: %v", blockID, n, err)
		return nil, fmt.Errorf("read block %d: short read", blockID)
	}
	v.cache.Put(blockID, data)
	return data, nil
}

// writeBlock persists one full block and write-throughs the cache.
func (v *Vfs) writeBlock(blockID uint32, data []byte) error {
	if v.file == nil {
		return ErrNotMounted
	}
	if uint32(len(data)) != v.sb.BlockSize {
		return fmt.Errorf("write block %d: bad buffer size %d", blockID, len(data))
	}
	if _, err := v.file.WriteAt(data, int64(blockID)*int64(v.sb.BlockSize)); err != nil {
		logrus.Errorf("write block %d failed: %s", blockID, err)
		return err
	}
	v.cache.Put(blockID, data)
	return nil
}

func (v *Vfs) loadInode(id uint32) (Inode, error) {
	if id >= v.sb.InodeCount {
		return Inode{}, fmt.Errorf("inode %d out of range", id)
	}
	per := v.sb.InodesPerBlock()
	blockIndex := id / per
	if blockIndex >= v.sb.InodeTableBlocks {
		return Inode{}, fmt.Errorf("inode %d beyond table", id)
	}
	block, err := v.readBlock(v.sb.InodeTableStart + blockIndex)
	if err != nil {
		return Inode{}, err
	}
	offset := int(id%per) * InodeSize
	return DecodeInode(block[offset : offset+InodeSize])
}

func (v *Vfs) storeInode(ino *Inode) error {
	if ino.ID >= v.sb.InodeCount {
		return fmt.Errorf("inode %d out of range", ino.ID)
	}
	per := v.sb.InodesPerBlock()
	blockIndex := ino.ID / per
	if blockIndex >= v.sb.InodeTableBlocks {
		return fmt.Errorf("inode %d beyond table", ino.ID)
	}
	blockID := v.sb.InodeTableStart + blockIndex
	block, err := v.readBlock(blockID)
	if err != nil {
		return err
	}
	encoded, err := ino.Encode()
	if err != nil {
		return err
	}
	offset := int(ino.ID%per) * InodeSize
	copy(block[offset:offset+InodeSize], encoded)
	return v.writeBlock(blockID, block)
}

// allocDataBlock scans the free-space bitmap with the configured policy,
// marks the chosen bit used and persists that bitmap block.
func (v *Vfs) allocDataBlock() (uint32, error) {
	bitsPerBlock := v.sb.BlockSize * 8
	remaining := v.sb.DataBlockCount
	base := uint32(0)
	for b := uint32(0); b < v.sb.FreeBitmapBlocks && remaining > 0; b++ {
		blockID := v.sb.FreeBitmapStart + b
		bitmap, err := v.readBlock(blockID)
		if err != nil {
			return 0, err
		}
		limit := bitsPerBlock
		if remaining < limit {
			limit = remaining
		}
		if idx, ok := v.policy.FindFree(bitmap, limit); ok {
			setBit(bitmap, idx)
			if err := v.writeBlock(blockID, bitmap); err != nil {
				return 0, err
			}
			id := v.sb.DataBlockStart + base + idx
			logrus.Debugf("alloc data block %d", id)
			return id, nil
		}
		base += limit
		remaining -= limit
	}
	return 0, ErrNoSpace
}

// freeDataBlock clears the block's bitmap bit and persists it. Blocks
// outside the data region are rejected.
func (v *Vfs) freeDataBlock(blockID uint32) error {
	if blockID < v.sb.DataBlockStart || blockID >= v.sb.DataBlockStart+v.sb.DataBlockCount {
		return fmt.Errorf("block %d outside data region", blockID)
	}
	relative := blockID - v.sb.DataBlockStart
	bitsPerBlock := v.sb.BlockSize * 8
	bitmapIndex := relative / bitsPerBlock
	if bitmapIndex >= v.sb.FreeBitmapBlocks {
		return fmt.Errorf("block %d beyond bitmap", blockID)
	}
	bitmapBlockID := v.sb.FreeBitmapStart + bitmapIndex
	bitmap, err := v.readBlock(bitmapBlockID)
	if err != nil {
		return err
	}
	clearBit(bitmap, relative%bitsPerBlock)
	logrus.Debugf("free data block %d", blockID)
	return v.writeBlock(bitmapBlockID, bitmap)
}

// findFreeInode scans the table from id 1 (0 is the root) for a slot
// without FlagUsed. Any load error aborts the scan.
func (v *Vfs) findFreeInode() (uint32, error) {
	for id := uint32(1); id < v.sb.InodeCount; id++ {
		ino, err := v.loadInode(id)
		if err != nil {
			return 0, err
		}
		if !ino.InUse() {
			return id, nil
		}
	}
	return 0, ErrNoInode
}

// FreeBitmap returns a snapshot of the free-space bitmap covering the data
// region, for status reporting and the heat map.
func (v *Vfs) FreeBitmap() ([]byte, error) {
	nbytes := (v.sb.DataBlockCount + 7) / 8
	out := make([]byte, 0, nbytes)
	for b := uint32(0); b < v.sb.FreeBitmapBlocks && uint32(len(out)) < nbytes; b++ {
		bitmap, err := v.readBlock(v.sb.FreeBitmapStart + b)
		if err != nil {
			return nil, err
		}
		want := nbytes - uint32(len(out))
		if want > uint32(len(bitmap)) {
			want = uint32(len(bitmap))
		}
		out = append(out, bitmap[:want]...)
	}
	return out, nil
}

// CountFreeDataBlocks reports how many data blocks are unallocated.
func (v *Vfs) CountFreeDataBlocks() (uint32, error) {
	bitmap, err := v.FreeBitmap()
	if err != nil {
		return 0, err
	}
	return v.sb.DataBlockCount - countSetBits(bitmap, v.sb.DataBlockCount), nil
}
