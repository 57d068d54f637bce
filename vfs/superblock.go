/*
 superblock.go

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
	"errors"
	"fmt"
	"hash/crc64"
)

const (
	SuperBlockMagic = 0x50415046 // "PAPF"

	DefaultBlockSize        = 4096
	DefaultTotalBlocks      = 1024
	DefaultInodeTableBlocks = 8
	DefaultFreeBitmapBlocks = 1
)

var SuperBlockSize = binary.Size(SuperBlock{})

// SuperBlock describes the on-disk layout of the filesystem. It lives in
// block 0 and is static after format. Regions are consecutive:
// [0]=superblock, [InodeTableStart..), [FreeBitmapStart..), [DataBlockStart..TotalBlocks)
type SuperBlock struct {
	Magic            uint32
	BlockSize        uint32
	TotalBlocks      uint32
	InodeTableStart  uint32
	InodeTableBlocks uint32
	InodeCount       uint32
	FreeBitmapStart  uint32
	FreeBitmapBlocks uint32
	DataBlockStart   uint32
	DataBlockCount   uint32
	RootInodeID      uint32
	Crc              uint64
}

// NewSuperBlock computes the fixed default geometry and signs it.
func NewSuperBlock() SuperBlock {
	sb := SuperBlock{
		BlockSize:        DefaultBlockSize,
		TotalBlocks:      DefaultTotalBlocks,
		InodeTableStart:  1,
		InodeTableBlocks: DefaultInodeTableBlocks,
		FreeBitmapBlocks: DefaultFreeBitmapBlocks,
		RootInodeID:      0,
	}
	sb.InodeCount = (sb.BlockSize / uint32(InodeSize)) * sb.InodeTableBlocks
	sb.FreeBitmapStart = sb.InodeTableStart + sb.InodeTableBlocks
	sb.DataBlockStart = sb.FreeBitmapStart + sb.FreeBitmapBlocks
	sb.DataBlockCount = sb.TotalBlocks - sb.DataBlockStart
	sb.Sign()
	return sb
}

func (s *SuperBlock) Checksum() uint64 {
	data := fmt.Sprintf("%x_%d_%d_%d_%d_%d_%d_%d_%d_%d_%d",
		s.Magic,
		s.BlockSize,
		s.TotalBlocks,
		s.InodeTableStart,
		s.InodeTableBlocks,
		s.InodeCount,
		s.FreeBitmapStart,
		s.FreeBitmapBlocks,
		s.DataBlockStart,
		s.DataBlockCount,
		s.RootInodeID)
	crcTable := crc64.MakeTable(crc64.ECMA)
	return crc64.Checksum([]byte(data), crcTable)
}

func (s *SuperBlock) Sign() {
	s.Magic = SuperBlockMagic
	s.Crc = s.Checksum()
}

// Verify rejects superblocks that are not ours or whose layout is
// inconsistent. A failed Verify at mount time triggers a reformat.
func (s *SuperBlock) Verify() error {
	if s.Magic != SuperBlockMagic {
		return errors.New("bad magic")
	}
	if s.Crc != s.Checksum() {
		return errors.New("bad crc")
	}
	if s.BlockSize == 0 || s.BlockSize%512 != 0 {
		return errors.New("invalid block size")
	}
	if s.InodeTableStart != 1 {
		return errors.New("inode table must start at block 1")
	}
	if s.FreeBitmapStart != s.InodeTableStart+s.InodeTableBlocks {
		return errors.New("free bitmap does not follow inode table")
	}
	if s.DataBlockStart != s.FreeBitmapStart+s.FreeBitmapBlocks {
		return errors.New("data region does not follow free bitmap")
	}
	if s.DataBlockStart+s.DataBlockCount != s.TotalBlocks {
		return errors.New("data region does not end at total blocks")
	}
	if s.InodeCount != (s.BlockSize/uint32(InodeSize))*s.InodeTableBlocks {
		return errors.New("inode count does not match table size")
	}
	if s.FreeBitmapBlocks*s.BlockSize*8 < s.DataBlockCount {
		return errors.New("free bitmap too small for data region")
	}
	if s.RootInodeID != 0 {
		return errors.New("root inode must be 0")
	}
	return nil
}

func (s *SuperBlock) InodesPerBlock() uint32 {
	return s.BlockSize / uint32(InodeSize)
}

// Encode marshals the superblock into a full zero-padded block.
func (s *SuperBlock) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, s); err != nil {
		return nil, err
	}
	if buf.Len() != SuperBlockSize {
		return nil, fmt.Errorf("encoded superblock size %d, want %d", buf.Len(), SuperBlockSize)
	}
	block := make([]byte, s.BlockSize)
	copy(block, buf.Bytes())
	return block, nil
}

// DecodeSuperBlock unmarshals a superblock from the first bytes of a block.
func DecodeSuperBlock(block []byte) (SuperBlock, error) {
	var sb SuperBlock
	if len(block) < SuperBlockSize {
		return sb, fmt.Errorf("superblock buffer too small: %d", len(block))
	}
	if err := binary.Read(bytes.NewReader(block[:SuperBlockSize]), binary.LittleEndian, &sb); err != nil {
		return sb, err
	}
	return sb, nil
}
