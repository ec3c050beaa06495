// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"errors"
	"testing"
)

func TestTree_InsertOrderPreserved(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	paths := []string{
		"zeta/last.txt",
		"alpha/first.txt",
		"alpha/second.cfg",
		"zeta/middle.txt",
		"readme",
	}
	for _, p := range paths {
		if err := tree.InsertPath(p, &Entry{ArchiveIndex: IndexDir}); err != nil {
			t.Fatalf("InsertPath(%q): %v", p, err)
		}
	}

	if tree.Len() != len(paths) {
		t.Fatalf("Len = %d, want %d", tree.Len(), len(paths))
	}

	// Stored order groups by extension first, then directory, in first-seen
	// order at every level.
	want := []string{
		"zeta/last.txt",
		"zeta/middle.txt",
		"alpha/first.txt",
		"alpha/second.cfg",
		"readme",
	}
	refs := tree.Entries()
	if len(refs) != len(want) {
		t.Fatalf("len(entries) = %d, want %d", len(refs), len(want))
	}
	for i, ref := range refs {
		if ref.FullPath() != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, ref.FullPath(), want[i])
		}
	}
}

func TestTree_InsertReplacesInPlace(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	first := &Entry{CRC: 1, ArchiveIndex: IndexDir}
	second := &Entry{CRC: 2, ArchiveIndex: IndexDir}

	if err := tree.InsertPath("a/x.txt", first); err != nil {
		t.Fatal(err)
	}
	if err := tree.InsertPath("a/y.txt", &Entry{ArchiveIndex: IndexDir}); err != nil {
		t.Fatal(err)
	}
	if err := tree.InsertPath("a/x.txt", second); err != nil {
		t.Fatal(err)
	}

	if tree.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tree.Len())
	}

	refs := tree.Entries()
	if refs[0].FullPath() != "a/x.txt" || refs[0].Entry.CRC != 2 {
		t.Fatalf("entries[0] = %q CRC %d, want a/x.txt CRC 2", refs[0].FullPath(), refs[0].Entry.CRC)
	}
}

func TestTree_LookupMiss(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	if err := tree.InsertPath("a/x.txt", &Entry{ArchiveIndex: IndexDir}); err != nil {
		t.Fatal(err)
	}

	if _, ok := tree.LookupPath("a/x.cfg"); ok {
		t.Error("unexpected hit for wrong extension")
	}
	if _, ok := tree.LookupPath("b/x.txt"); ok {
		t.Error("unexpected hit for wrong directory")
	}
	if _, ok := tree.Lookup("txt", "a", "y"); ok {
		t.Error("unexpected hit for wrong name")
	}
}

func TestTree_InsertNilEntry(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	if err := tree.InsertPath("a/x.txt", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestTree_InsertEmptyPath(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	if err := tree.InsertPath("", &Entry{}); !errors.Is(err, ErrInvalidEntryPath) {
		t.Fatalf("err = %v, want ErrInvalidEntryPath", err)
	}
}

func TestTree_WalkStops(t *testing.T) {
	t.Parallel()

	tree := NewTree()
	for _, p := range []string{"a/x.txt", "a/y.txt", "a/z.txt"} {
		if err := tree.InsertPath(p, &Entry{ArchiveIndex: IndexDir}); err != nil {
			t.Fatal(err)
		}
	}

	stop := errors.New("stop")
	visited := 0
	err := tree.Walk(func(ref EntryRef) error {
		visited++
		if visited == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	if visited != 2 {
		t.Fatalf("visited = %d, want 2", visited)
	}
}
