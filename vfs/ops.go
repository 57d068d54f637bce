/*
 ops.go

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
	"strings"

	"github.com/sirupsen/logrus"
)

// splitPath drops empty components, so "//a//b/" resolves like "/a/b".
func splitPath(path string) []string {
	var comps []string
	for _, c := range strings.Split(path, "/") {
		if c != "" {
			comps = append(comps, c)
		}
	}
	return comps
}

// walk follows directory entries from the root through the given
// components and returns the final inode id.
func (v *Vfs) walk(comps []string) (uint32, error) {
	currentID := v.sb.RootInodeID
	for _, name := range comps {
		current, err := v.loadInode(currentID)
		if err != nil {
			return 0, err
		}
		if !current.IsDirectory() {
			return 0, ErrNotDirectory
		}
		entries, err := v.readDirectory(&current)
		if err != nil {
			return 0, err
		}
		found := false
		for _, e := range entries {
			if e.Name == name {
				currentID = e.InodeID
				found = true
				break
			}
		}
		if !found {
			return 0, ErrNotFound
		}
	}
	return currentID, nil
}

// resolvePath maps an absolute path to an inode id. "" and "/" resolve to
// the root.
func (v *Vfs) resolvePath(path string) (uint32, error) {
	return v.walk(splitPath(path))
}

// resolveParentDirectory walks all but the last component and returns the
// parent inode id plus the final name. Root has no parent; names must fit
// a DirEntry.
func (v *Vfs) resolveParentDirectory(path string) (uint32, string, error) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return 0, "", ErrNotFound
	}
	name := comps[len(comps)-1]
	if len(name) >= DirNameLen {
		return 0, "", ErrNameTooLong
	}
	parentID, err := v.walk(comps[:len(comps)-1])
	if err != nil {
		return 0, "", err
	}
	return parentID, name, nil
}

// readDirectory unmarshals the live entries from the directory's single
// entry block. A directory with no block yet is empty.
func (v *Vfs) readDirectory(dir *Inode) ([]DirEntry, error) {
	if !dir.IsDirectory() {
		return nil, ErrNotDirectory
	}
	if dir.DirectBlocks[0] == 0 {
		return nil, nil
	}
	block, err := v.readBlock(dir.DirectBlocks[0])
	if err != nil {
		return nil, err
	}
	return unpackDirEntries(block), nil
}

// writeDirectory marshals the entries back into the entry block, allocating
// it lazily, and persists the directory inode. Entries beyond one block's
// capacity are silently dropped.
func (v *Vfs) writeDirectory(dir *Inode, entries []DirEntry) error {
	if !dir.IsDirectory() {
		return ErrNotDirectory
	}
	if dir.DirectBlocks[0] == 0 {
		blockID, err := v.allocDataBlock()
		if err != nil {
			return err
		}
		dir.DirectBlocks[0] = blockID
	}
	block, n := packDirEntries(entries, v.sb.BlockSize)
	if n < len(entries) {
		logrus.Warnf("directory inode %d full, dropped %d entries", dir.ID, len(entries)-n)
	}
	if err := v.writeBlock(dir.DirectBlocks[0], block); err != nil {
		return err
	}
	dir.Size = uint32(n * DirEntrySize)
	return v.storeInode(dir)
}

// linkEntry appends a child entry to the parent directory.
func (v *Vfs) linkEntry(parent *Inode, name string, inodeID uint32) error {
	entries, err := v.readDirectory(parent)
	if err != nil {
		return err
	}
	entries = append(entries, DirEntry{InodeID: inodeID, Name: name})
	return v.writeDirectory(parent, entries)
}

// unlinkEntry removes the first entry with the given name from the parent.
// A missing entry is an inconsistency: the child inode was already resolved
// through this very directory.
func (v *Vfs) unlinkEntry(parentID uint32, name string) error {
	parent, err := v.loadInode(parentID)
	if err != nil {
		return err
	}
	entries, err := v.readDirectory(&parent)
	if err != nil {
		return err
	}
	kept := entries[:0]
	erased := false
	for _, e := range entries {
		if !erased && e.Name == name {
			erased = true
			continue
		}
		kept = append(kept, e)
	}
	if !erased {
		logrus.Errorf("unlink: entry %q missing from directory inode %d", name, parentID)
		return ErrCorrupt
	}
	return v.writeDirectory(&parent, kept)
}

// CreateDirectory creates one directory; the parent must already exist and
// must not contain the name.
func (v *Vfs) CreateDirectory(path string) error {
	parentID, name, err := v.resolveParentDirectory(path)
	if err != nil {
		return err
	}
	parent, err := v.loadInode(parentID)
	if err != nil {
		return err
	}
	entries, err := v.readDirectory(&parent)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == name {
			return ErrExists
		}
	}

	inodeID, err := v.findFreeInode()
	if err != nil {
		return err
	}
	blockID, err := v.allocDataBlock()
	if err != nil {
		return err
	}
	dir := Inode{
		ID:    inodeID,
		Flags: FlagUsed | FlagDirectory,
	}
	dir.DirectBlocks[0] = blockID
	if err := v.storeInode(&dir); err != nil {
		return err
	}
	entries = append(entries, DirEntry{InodeID: inodeID, Name: name})
	if err := v.writeDirectory(&parent, entries); err != nil {
		return err
	}
	logrus.Debugf("mkdir %s [inode:%d, block:%d]", path, inodeID, blockID)
	return nil
}

// CreateFile creates a regular file, or returns the existing inode when
// the path already names a file. An existing directory under that name is
// an error.
func (v *Vfs) CreateFile(path string) (Inode, error) {
	parentID, name, err := v.resolveParentDirectory(path)
	if err != nil {
		return Inode{}, err
	}
	parent, err := v.loadInode(parentID)
	if err != nil {
		return Inode{}, err
	}
	entries, err := v.readDirectory(&parent)
	if err != nil {
		return Inode{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			existing, lerr := v.loadInode(e.InodeID)
			if lerr != nil {
				return Inode{}, lerr
			}
			if existing.IsDirectory() {
				return Inode{}, ErrIsDirectory
			}
			return existing, nil
		}
	}

	inodeID, err := v.findFreeInode()
	if err != nil {
		return Inode{}, err
	}
	blockID, err := v.allocDataBlock()
	if err != nil {
		return Inode{}, err
	}
	ino := Inode{
		ID:    inodeID,
		Flags: FlagUsed,
	}
	ino.DirectBlocks[0] = blockID
	if err := v.storeInode(&ino); err != nil {
		return Inode{}, err
	}
	entries = append(entries, DirEntry{InodeID: inodeID, Name: name})
	if err := v.writeDirectory(&parent, entries); err != nil {
		return Inode{}, err
	}
	logrus.Debugf("create file %s [inode:%d, block:%d]", path, inodeID, blockID)
	return ino, nil
}

// WriteFile overwrites the whole file with data, creating it if needed.
// Content larger than DirectBlocks*BlockSize is rejected before any old
// block is freed, so a failed write never destroys existing content.
func (v *Vfs) WriteFile(path string, data []byte) error {
	if len(data) > DirectBlocks*int(v.sb.BlockSize) {
		return ErrFileTooLarge
	}
	ino, err := v.CreateFile(path)
	if err != nil {
		return err
	}

	for i := 0; i < DirectBlocks; i++ {
		if ino.DirectBlocks[i] != 0 {
			if err := v.freeDataBlock(ino.DirectBlocks[i]); err != nil {
				return err
			}
			ino.DirectBlocks[i] = 0
		}
	}

	remaining := data
	for i := 0; len(remaining) > 0; i++ {
		blockID, aerr := v.allocDataBlock()
		if aerr != nil {
			return aerr
		}
		ino.DirectBlocks[i] = blockID

		block := make([]byte, v.sb.BlockSize)
		n := copy(block, remaining)
		if err := v.writeBlock(blockID, block); err != nil {
			return err
		}
		remaining = remaining[n:]
	}

	ino.Size = uint32(len(data))
	if err := v.storeInode(&ino); err != nil {
		return err
	}
	logrus.Debugf("write file %s [inode:%d, size:%d]", path, ino.ID, ino.Size)
	return nil
}

// ReadFile returns the whole file content. Recovering fewer bytes than the
// inode's size claims is a failure, not a partial result.
func (v *Vfs) ReadFile(path string) ([]byte, error) {
	inodeID, err := v.resolvePath(path)
	if err != nil {
		return nil, err
	}
	ino, err := v.loadInode(inodeID)
	if err != nil {
		return nil, err
	}
	if ino.IsDirectory() {
		return nil, ErrIsDirectory
	}

	result := make([]byte, 0, ino.Size)
	remaining := int(ino.Size)
	for i := 0; i < DirectBlocks && remaining > 0; i++ {
		if ino.DirectBlocks[i] == 0 {
			break
		}
		block, rerr := v.readBlock(ino.DirectBlocks[i])
		if rerr != nil {
			return nil, rerr
		}
		n := remaining
		if n > len(block) {
			n = len(block)
		}
		result = append(result, block[:n]...)
		remaining -= n
	}
	if remaining != 0 {
		logrus.Errorf("read file %s: %d bytes missing [inode:%d, size:%d]", path, remaining, ino.ID, ino.Size)
		return nil, ErrCorrupt
	}
	return result, nil
}

// RemoveFile frees the file's blocks, returns its inode slot to the free
// state and unlinks it from the parent directory.
func (v *Vfs) RemoveFile(path string) error {
	inodeID, err := v.resolvePath(path)
	if err != nil {
		return err
	}
	ino, err := v.loadInode(inodeID)
	if err != nil {
		return err
	}
	if ino.IsDirectory() {
		return ErrIsDirectory
	}

	for i := 0; i < DirectBlocks; i++ {
		if ino.DirectBlocks[i] != 0 {
			if err := v.freeDataBlock(ino.DirectBlocks[i]); err != nil {
				return err
			}
		}
	}
	freed := Inode{ID: inodeID}
	if err := v.storeInode(&freed); err != nil {
		return err
	}

	parentID, name, err := v.resolveParentDirectory(path)
	if err != nil {
		return err
	}
	logrus.Debugf("remove file %s [inode:%d]", path, inodeID)
	return v.unlinkEntry(parentID, name)
}

// RemoveDirectory removes an empty directory. The root can never be
// removed.
func (v *Vfs) RemoveDirectory(path string) error {
	if len(splitPath(path)) == 0 {
		return ErrRootForbidden
	}
	inodeID, err := v.resolvePath(path)
	if err != nil {
		return err
	}
	dir, err := v.loadInode(inodeID)
	if err != nil {
		return err
	}
	if !dir.IsDirectory() {
		return ErrNotDirectory
	}
	entries, err := v.readDirectory(&dir)
	if err != nil {
		return err
	}
	if len(entries) != 0 {
		return ErrNotEmpty
	}

	for i := 0; i < DirectBlocks; i++ {
		if dir.DirectBlocks[i] != 0 {
			if err := v.freeDataBlock(dir.DirectBlocks[i]); err != nil {
				return err
			}
		}
	}
	freed := Inode{ID: inodeID}
	if err := v.storeInode(&freed); err != nil {
		return err
	}

	parentID, name, err := v.resolveParentDirectory(path)
	if err != nil {
		return err
	}
	logrus.Debugf("remove directory %s [inode:%d]", path, inodeID)
	return v.unlinkEntry(parentID, name)
}

// ListDirectory returns the child names joined by newlines; directory names
// carry a trailing '/' so callers can tell them apart.
func (v *Vfs) ListDirectory(path string) (string, error) {
	inodeID, err := v.resolvePath(path)
	if err != nil {
		return "", err
	}
	dir, err := v.loadInode(inodeID)
	if err != nil {
		return "", err
	}
	if !dir.IsDirectory() {
		return "", ErrNotDirectory
	}
	entries, err := v.readDirectory(&dir)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		child, lerr := v.loadInode(e.InodeID)
		if lerr != nil {
			continue
		}
		if child.IsDirectory() {
			names = append(names, e.Name+"/")
		} else {
			names = append(names, e.Name)
		}
	}
	return strings.Join(names, "\n"), nil
}
