// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import "fmt"

// Tree is the in-memory directory index: extension -> path -> name -> entry.
// Insertion order is preserved at every level because the on-disk grammar is
// order-sensitive and serialization must round-trip byte-for-byte.
//
// A parsed Tree is immutable by convention and safe for concurrent readers.
// Mutation is not internally synchronized.
type Tree struct {
	byExt map[string]*extNode
	exts  []*extNode
	count int
}

// extNode is one extension level of the tree.
type extNode struct {
	name  string
	byDir map[string]*dirNode
	dirs  []*dirNode
}

// dirNode is one directory level of the tree.
type dirNode struct {
	name   string
	byName map[string]*fileNode
	files  []*fileNode
}

// fileNode is one leaf of the tree.
type fileNode struct {
	name  string
	entry *Entry
}

// NewTree returns an empty directory tree.
func NewTree() *Tree {
	return &Tree{byExt: make(map[string]*extNode)}
}

// Len returns the number of leaf entries in the tree.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}

	return t.count
}

// Insert adds or replaces the entry for a key triple. Replacement keeps the
// original position; new keys append at the end of their level.
func (t *Tree) Insert(ext, dir, name string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil entry for %q", ErrValidation, joinEntryPath(ext, dir, name))
	}
	if name == "" || ext == "" || dir == "" {
		return fmt.Errorf("%w: empty tree key in %q/%q/%q", ErrInvalidEntryPath, ext, dir, name)
	}

	en, ok := t.byExt[ext]
	if !ok {
		en = &extNode{name: ext, byDir: make(map[string]*dirNode)}
		t.byExt[ext] = en
		t.exts = append(t.exts, en)
	}

	dn, ok := en.byDir[dir]
	if !ok {
		dn = &dirNode{name: dir, byName: make(map[string]*fileNode)}
		en.byDir[dir] = dn
		en.dirs = append(en.dirs, dn)
	}

	fn, ok := dn.byName[name]
	if ok {
		fn.entry = entry
		return nil
	}

	dn.byName[name] = &fileNode{name: name, entry: entry}
	dn.files = append(dn.files, dn.byName[name])
	t.count++

	return nil
}

// InsertPath adds an entry keyed by its joined "path/name.ext" form.
func (t *Tree) InsertPath(fullPath string, entry *Entry) error {
	ext, dir, name, err := splitEntryPath(fullPath)
	if err != nil {
		return err
	}

	return t.Insert(ext, dir, name, entry)
}

// Lookup returns the entry for a key triple.
func (t *Tree) Lookup(ext, dir, name string) (*Entry, bool) {
	if t == nil {
		return nil, false
	}

	en, ok := t.byExt[ext]
	if !ok {
		return nil, false
	}

	dn, ok := en.byDir[dir]
	if !ok {
		return nil, false
	}

	fn, ok := dn.byName[name]
	if !ok {
		return nil, false
	}

	return fn.entry, true
}

// LookupPath returns the entry for a joined "path/name.ext" form.
func (t *Tree) LookupPath(fullPath string) (*Entry, bool) {
	ext, dir, name, err := splitEntryPath(fullPath)
	if err != nil {
		return nil, false
	}

	return t.Lookup(ext, dir, name)
}

// Walk visits every leaf in stored order until fn returns a non-nil error,
// which is propagated to the caller.
func (t *Tree) Walk(fn func(ref EntryRef) error) error {
	if t == nil {
		return nil
	}

	for _, en := range t.exts {
		for _, dn := range en.dirs {
			for _, leaf := range dn.files {
				ref := EntryRef{
					Extension: en.name,
					Path:      dn.name,
					Name:      leaf.name,
					Entry:     leaf.entry,
				}
				if err := fn(ref); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// Entries returns all leaves in stored order.
func (t *Tree) Entries() []EntryRef {
	if t == nil {
		return nil
	}

	out := make([]EntryRef, 0, t.count)
	_ = t.Walk(func(ref EntryRef) error {
		out = append(out, ref)
		return nil
	})

	return out
}

// equalStructure reports whether two trees hold the same keys in the same
// order with equal descriptors. Used by tests for the round-trip law.
func (t *Tree) equalStructure(other *Tree) bool {
	if t.Len() != other.Len() {
		return false
	}

	a := t.Entries()
	b := other.Entries()
	for i := range a {
		if a[i].Extension != b[i].Extension || a[i].Path != b[i].Path || a[i].Name != b[i].Name {
			return false
		}
		if !entriesEqual(a[i].Entry, b[i].Entry) {
			return false
		}
	}

	return true
}

// entriesEqual compares two descriptors including preload bytes and parts.
func entriesEqual(a, b *Entry) bool {
	if a.CRC != b.CRC || a.PreloadLength != b.PreloadLength ||
		a.ArchiveIndex != b.ArchiveIndex ||
		a.Offset != b.Offset || a.Length != b.Length {
		return false
	}
	if len(a.Preload) != len(b.Preload) || len(a.Parts) != len(b.Parts) {
		return false
	}
	for i := range a.Preload {
		if a.Preload[i] != b.Preload[i] {
			return false
		}
	}
	for i := range a.Parts {
		if a.Parts[i] != b.Parts[i] {
			return false
		}
	}

	return true
}
