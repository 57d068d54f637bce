/*
 config.go

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
	"github.com/kelseyhightower/envconfig"
)

// Config is read from PAPERFS_* environment variables; the CLI overrides
// individual fields with flags.
type Config struct {
	BackingFile   string `split_words:"true" default:"./data/paperfs.img"`
	CacheCapacity int    `split_words:"true" default:"64"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("paperfs", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
