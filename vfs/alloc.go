/*
 alloc.go

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
	"math/bits"
)

// AllocPolicy picks a free bit in one free-space bitmap block. The scan is
// a pure function of the bitmap snapshot; limit caps the number of valid
// bits in this block (the last bitmap block may cover a partial range).
type AllocPolicy interface {
	Name() string
	FindFree(bitmap []byte, limit uint32) (uint32, bool)
}

// FirstFit returns the lowest clear bit.
type FirstFit struct{}

func (FirstFit) Name() string { return "first-fit" }

func (FirstFit) FindFree(bitmap []byte, limit uint32) (uint32, bool) {
	for pos := 0; pos < len(bitmap); pos++ {
		of := bits.TrailingZeros8(^bitmap[pos])
		if of == 8 {
			continue
		}
		idx := uint32(pos*8 + of)
		if idx >= limit {
			return 0, false
		}
		return idx, true
	}
	return 0, false
}

func testBit(bitmap []byte, idx uint32) bool {
	return bitmap[idx/8]&(1<<(idx%8)) != 0
}

func setBit(bitmap []byte, idx uint32) {
	bitmap[idx/8] |= 1 << (idx % 8)
}

func clearBit(bitmap []byte, idx uint32) {
	bitmap[idx/8] &^= 1 << (idx % 8)
}

// countSetBits counts used bits among the first limit bits.
func countSetBits(bitmap []byte, limit uint32) uint32 {
	var count uint32
	full := int(limit / 8)
	for i := 0; i < full && i < len(bitmap); i++ {
		count += uint32(bits.OnesCount8(bitmap[i]))
	}
	for idx := uint32(full * 8); idx < limit && int(idx/8) < len(bitmap); idx++ {
		if testBit(bitmap, idx) {
			count++
		}
	}
	return count
}
