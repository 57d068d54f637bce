/*
 inode.go

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
	"fmt"
)

const (
	// DirectBlocks is the hard ceiling on blocks per file; there are no
	// indirect pointers, so file size caps at DirectBlocks*BlockSize.
	DirectBlocks = 8
)

// Inode slot state is explicit: a slot without FlagUsed is free and
// reusable, regardless of its other fields.
const (
	FlagUsed      uint32 = 1 << 0
	FlagDirectory uint32 = 1 << 1
)

var InodeSize = binary.Size(Inode{})

// Inode is one fixed-size record of the on-disk inode table, addressed by
// its table index.
type Inode struct {
	ID           uint32
	Flags        uint32
	Size         uint32
	DirectBlocks [DirectBlocks]uint32
}

func (i *Inode) InUse() bool {
	return i.Flags&FlagUsed != 0
}

func (i *Inode) IsDirectory() bool {
	return i.Flags&FlagDirectory != 0
}

// Encode marshals the inode into exactly InodeSize bytes.
func (i *Inode) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, i); err != nil {
		return nil, err
	}
	if buf.Len() != InodeSize {
		return nil, fmt.Errorf("encoded inode size %d, want %d", buf.Len(), InodeSize)
	}
	return buf.Bytes(), nil
}

// DecodeInode unmarshals one inode record from a slice of at least
// InodeSize bytes.
func DecodeInode(data []byte) (Inode, error) {
	var ino Inode
	if len(data) < InodeSize {
		return ino, fmt.Errorf("inode buffer too small: %d", len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:InodeSize]), binary.LittleEndian, &ino); err != nil {
		return ino, err
	}
	return ino, nil
}
