/*
 heatmap.go

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
	"fmt"
	"math/bits"
)

const (
	DefaultHMWidth = 128
)

// MakeHeatMap renders bitmap occupancy as a colored terminal graph. calc
// maps a cell's bytes to a 0..1 fill ratio; nil uses the set-bit ratio.
func MakeHeatMap(bitmap []uint8, height int, calc func(bitmap []uint8) float32) *HeatMap {
	defCalc := func(bitmap []uint8) float32 {
		if len(bitmap) == 0 {
			return 0
		}
		ret := 0
		for _, i := range bitmap {
			ret += bits.OnesCount8(i)
		}
		return float32(ret) / (float32(len(bitmap)) * 8.0)
	}
	if height < 1 {
		height = 1
	}
	m := HeatMap{
		bitmap: bitmap,
		height: height,
		width:  DefaultHMWidth,
		calc:   defCalc,
	}
	if calc != nil {
		m.calc = calc
	}
	return &m
}

type HeatMap struct {
	bitmap []uint8
	width  int
	height int
	calc   func(bitmap []uint8) float32
}

func (h *HeatMap) Draw() {
	cellSize := len(h.bitmap) / (h.width * h.height)
	if cellSize < 1 {
		cellSize = 1
	}
	cells := len(h.bitmap) / cellSize
	width := h.width
	if cells < width {
		width = cells
	}
	for i := 0; i < h.height; i++ {
		for j := 0; j < width; j++ {
			cell := (i*width + j) * cellSize
			if cell >= len(h.bitmap) {
				break
			}
			v := h.calc(h.bitmap[cell : cell+cellSize])
			if v < 0.0001 {
				fmt.Printf("█")
			} else if v < 0.2 { //green
				fmt.Printf("\033[92m█\033[0m")
			} else if v < 0.6 { //yellow
				fmt.Printf("\033[38;5;226m█\033[0m")
			} else if v < 0.85 { //orange
				fmt.Printf("\033[38;5;214m█\033[0m")
			} else { //red
				fmt.Printf("\033[31m█\033[0m")
			}
		}
		fmt.Println("")
	}
}
