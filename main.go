/*
 main.go

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

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ospkit/paperfs/fsstore"
	"github.com/ospkit/paperfs/vfs"
)

func openStore(c *cli.Context) (*fsstore.Store, error) {
	cfg, err := fsstore.LoadConfig()
	if err != nil {
		return nil, err
	}
	if c.IsSet("file") {
		cfg.BackingFile = c.String("file")
	}
	if c.IsSet("cache") {
		cfg.CacheCapacity = c.Int("cache")
	}
	return fsstore.Open(cfg)
}

func needArg(c *cli.Context, name string) (string, error) {
	arg := c.Args().First()
	if arg == "" {
		return "", fmt.Errorf("missing <%s> argument", name)
	}
	return arg, nil
}

func main() {
	app := &cli.App{
		Name:  "paperfs",
		Usage: "inspect and manage a paperfs backing file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "backing file path"},
			&cli.IntFlag{Name: "cache", Aliases: []string{"c"}, Usage: "block cache capacity"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "verbose logging for developer"},
		},
		Before: func(c *cli.Context) error {
			logrus.SetFormatter(&logrus.TextFormatter{
				DisableColors:   false,
				FullTimestamp:   true,
				TimestampFormat: "15:04:05",
			})
			if c.Bool("verbose") {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "format",
				Usage: "discard the backing file and lay out a fresh filesystem",
				Action: func(c *cli.Context) error {
					cfg, err := fsstore.LoadConfig()
					if err != nil {
						return err
					}
					if c.IsSet("file") {
						cfg.BackingFile = c.String("file")
					}
					if err := os.Remove(cfg.BackingFile); err != nil && !errors.Is(err, os.ErrNotExist) {
						return err
					}
					store, err := fsstore.Open(cfg)
					if err != nil {
						return err
					}
					defer store.Close()
					return printStatus(store, false)
				},
			},
			{
				Name:      "mkdir",
				Usage:     "create a directory",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					path, err := needArg(c, "path")
					if err != nil {
						return err
					}
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					return store.CreateDirectory(path)
				},
			},
			{
				Name:      "write",
				Usage:     "write a whole file from the remaining arguments",
				ArgsUsage: "<path> <content>...",
				Action: func(c *cli.Context) error {
					path, err := needArg(c, "path")
					if err != nil {
						return err
					}
					content := strings.Join(c.Args().Tail(), " ")
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					return store.WriteFile(path, []byte(content))
				},
			},
			{
				Name:      "cat",
				Usage:     "print a file's content",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					path, err := needArg(c, "path")
					if err != nil {
						return err
					}
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					data, err := store.ReadFile(path)
					if err != nil {
						return err
					}
					fmt.Printf("%s\n", data)
					return nil
				},
			},
			{
				Name:      "ls",
				Usage:     "list a directory (defaults to /)",
				ArgsUsage: "[path]",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						path = "/"
					}
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					listing, err := store.ListDirectory(path)
					if err != nil {
						return err
					}
					if listing != "" {
						fmt.Println(listing)
					}
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "remove a file",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					path, err := needArg(c, "path")
					if err != nil {
						return err
					}
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					return store.RemoveFile(path)
				},
			},
			{
				Name:      "rmdir",
				Usage:     "remove an empty directory",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					path, err := needArg(c, "path")
					if err != nil {
						return err
					}
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					return store.RemoveDirectory(path)
				},
			},
			{
				Name:  "status",
				Usage: "show filesystem geometry and cache counters",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "graph", Aliases: []string{"g"}, Usage: "draw the free-bitmap heat map"},
				},
				Action: func(c *cli.Context) error {
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					return printStatus(store, c.Bool("graph"))
				},
			},
			{
				Name:      "backup",
				Usage:     "copy the backing file to a snapshot",
				ArgsUsage: "<dst>",
				Action: func(c *cli.Context) error {
					dst, err := needArg(c, "dst")
					if err != nil {
						return err
					}
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					return store.Backup(dst)
				},
			},
			{
				Name:      "restore",
				Usage:     "overwrite the backing file from a snapshot",
				ArgsUsage: "<src>",
				Action: func(c *cli.Context) error {
					src, err := needArg(c, "src")
					if err != nil {
						return err
					}
					store, err := openStore(c)
					if err != nil {
						return err
					}
					defer store.Close()
					return store.Restore(src)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Errorf("%s", err)
		os.Exit(1)
	}
}

func printStatus(store *fsstore.Store, graph bool) error {
	st, err := store.Status()
	if err != nil {
		return err
	}
	fmt.Printf("backing file : %s\n", st.BackingFile)
	fmt.Printf("geometry     : %d blocks x %s\n", st.TotalBlocks, formatBytes(int64(st.BlockSize)))
	fmt.Printf("inodes       : %d\n", st.InodeCount)
	fmt.Printf("data blocks  : %d free / %d total (%s usable)\n",
		st.FreeDataBlocks, st.DataBlocks, formatBytes(int64(st.DataBlocks)*int64(st.BlockSize)))
	fmt.Printf("block cache  : cap:%d entries:%d hits:%d misses:%d evictions:%d\n",
		st.Cache.Capacity, st.Cache.Entries, st.Cache.Hits, st.Cache.Misses, st.Cache.Evictions)
	if graph {
		bitmap, err := store.FreeBitmap()
		if err != nil {
			return err
		}
		vfs.MakeHeatMap(bitmap, 1, nil).Draw()
	}
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
