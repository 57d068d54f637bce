/*
 dirent.go

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
	"encoding/binary"
)

const (
	// DirNameLen is the fixed name field width; names must be shorter so
	// the NUL terminator always fits.
	DirNameLen   = 60
	DirEntrySize = 4 + DirNameLen
)

// DirEntry is one (child inode, name) record inside a directory's single
// data block. InodeID 0 marks an empty slot.
type DirEntry struct {
	InodeID uint32
	Name    string
}

func (e *DirEntry) encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[:4], e.InodeID)
	name := dst[4:DirEntrySize]
	for i := range name {
		name[i] = 0
	}
	copy(name[:DirNameLen-1], e.Name)
}

func decodeDirEntry(src []byte) DirEntry {
	name := src[4:DirEntrySize]
	end := bytes.IndexByte(name, 0)
	if end < 0 {
		end = len(name)
	}
	return DirEntry{
		InodeID: binary.LittleEndian.Uint32(src[:4]),
		Name:    string(name[:end]),
	}
}

// packDirEntries lays the live entries out as a packed array in a fresh
// zeroed block. Entries beyond the block's capacity are dropped: a
// directory never spans more than one block.
func packDirEntries(entries []DirEntry, blockSize uint32) ([]byte, int) {
	block := make([]byte, blockSize)
	max := int(blockSize) / DirEntrySize
	n := len(entries)
	if n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		entries[i].encode(block[i*DirEntrySize:])
	}
	return block, n
}

// unpackDirEntries returns the live (non-zero) entries of a directory block.
func unpackDirEntries(block []byte) []DirEntry {
	var entries []DirEntry
	for off := 0; off+DirEntrySize <= len(block); off += DirEntrySize {
		e := decodeDirEntry(block[off:])
		if e.InodeID != 0 {
			entries = append(entries, e)
		}
	}
	return entries
}
