// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"bytes"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDirectory_V1(t *testing.T) {
	t.Parallel()

	d := loadFixture(t, buildV1Fixture(t))

	if d.Dialect() != DialectV1 {
		t.Fatalf("dialect = %s, want %s", d.Dialect(), DialectV1)
	}
	if d.Tree().Len() != 1 {
		t.Fatalf("tree len = %d, want 1", d.Tree().Len())
	}

	refs := d.Entries()
	if len(refs) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(refs))
	}
	ref := refs[0]
	if ref.Extension != "txt" || ref.Path != "scripts" || ref.Name != "main" {
		t.Fatalf("key = %q/%q/%q", ref.Extension, ref.Path, ref.Name)
	}
	if ref.FullPath() != "scripts/main.txt" {
		t.Fatalf("FullPath = %q", ref.FullPath())
	}

	e := ref.Entry
	if e.ArchiveIndex != IndexDir {
		t.Errorf("ArchiveIndex = %#04x, want %#04x", e.ArchiveIndex, IndexDir)
	}
	if e.Offset != 0 || e.Length != 3 {
		t.Errorf("offset/length = %d/%d, want 0/3", e.Offset, e.Length)
	}
	if e.PreloadLength != 2 || !bytes.Equal(e.Preload, []byte("AB")) {
		t.Errorf("preload = %d/%q, want 2/AB", e.PreloadLength, e.Preload)
	}
	if !e.IsInline() {
		t.Error("IsInline = false, want true")
	}
}

func TestLoadDirectory_Respawn(t *testing.T) {
	t.Parallel()

	parts := []FilePart{
		{ArchiveIndex: 0, LoadFlags: 1, TextureFlags: 8, Offset: 100, Length: 50, UncompressedLength: 50},
		{ArchiveIndex: 2, LoadFlags: 1, TextureFlags: 8, Offset: 0, Length: 30, UncompressedLength: 90},
	}
	d := loadFixture(t, buildRespawnFixture(t, 0xDEADBEEF, parts))

	if d.Dialect() != DialectRespawn {
		t.Fatalf("dialect = %s, want %s", d.Dialect(), DialectRespawn)
	}

	entry, ok := d.Lookup("sound/fire.wav")
	if !ok {
		t.Fatal("entry not found")
	}
	if entry.CRC != 0xDEADBEEF {
		t.Errorf("CRC = %#08x", entry.CRC)
	}
	if len(entry.Parts) != 2 {
		t.Fatalf("len(parts) = %d, want 2", len(entry.Parts))
	}
	if entry.Parts[0] != parts[0] || entry.Parts[1] != parts[1] {
		t.Errorf("parts = %+v, want %+v", entry.Parts, parts)
	}
	if entry.Parts[0].IsCompressed() {
		t.Error("part 0 reported compressed")
	}
	if !entry.Parts[1].IsCompressed() {
		t.Error("part 1 reported uncompressed")
	}
	if entry.TotalSize() != 140 {
		t.Errorf("TotalSize = %d, want 140", entry.TotalSize())
	}
}

func TestLoadDirectory_BadSignature(t *testing.T) {
	t.Parallel()

	data := buildV1Fixture(t)
	data[0] ^= 0xFF

	_, err := LoadDirectory(NewBytesSource(data), LoadOptions{})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadDirectory_UnknownVersion(t *testing.T) {
	t.Parallel()

	var dir binWriter
	dir.u32(Signature)
	dir.u32(99)
	dir.u32(0)

	_, err := LoadDirectory(NewBytesSource(dir.Bytes()), LoadOptions{})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadDirectory_ShortInput(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 4, 7, 11} {
		_, err := LoadDirectory(NewBytesSource(buildV1Fixture(t)[:n]), LoadOptions{})
		if !errors.Is(err, ErrCorrupt) {
			t.Errorf("%d bytes: err = %v, want ErrCorrupt", n, err)
		}
	}
}

func TestLoadDirectory_NilSource(t *testing.T) {
	t.Parallel()

	_, err := LoadDirectory(nil, LoadOptions{})
	if !errors.Is(err, ErrNilSource) {
		t.Fatalf("err = %v, want ErrNilSource", err)
	}
}

func TestLoadDirectory_TreeSizeBeyondSource(t *testing.T) {
	t.Parallel()

	var dir binWriter
	dir.u32(Signature)
	dir.u32(VersionV1)
	dir.u32(1 << 20)
	dir.WriteByte(0)

	_, err := LoadDirectory(NewBytesSource(dir.Bytes()), LoadOptions{})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadDirectory_BadEntryTerminator(t *testing.T) {
	t.Parallel()

	data := buildV1Fixture(t)
	// The terminator is the last two descriptor bytes before the preload.
	term := headerSizeV1 + len("txt\x00scripts\x00main\x00") + classicEntrySize - 2
	data[term] = 0x00
	data[term+1] = 0x00

	_, err := LoadDirectory(NewBytesSource(data), LoadOptions{})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadDirectory_TruncatedDescriptor(t *testing.T) {
	t.Parallel()

	var tree binWriter
	tree.str("txt")
	tree.str("scripts")
	tree.str("main")
	tree.u32(0) // descriptor cut short

	var dir binWriter
	dir.u32(Signature)
	dir.u32(VersionV1)
	dir.u32(uint32(tree.Len()))
	dir.Write(tree.Bytes())

	_, err := LoadDirectory(NewBytesSource(dir.Bytes()), LoadOptions{})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadDirectory_TrailingTreeBytes(t *testing.T) {
	t.Parallel()

	data := buildV1Fixture(t)
	// Grow the declared tree size into the payload region: the parser must
	// reject a tree that terminates before its declared end.
	treeSize := uint32(len(data) - headerSizeV1)
	var size binWriter
	size.u32(treeSize)
	copy(data[8:12], size.Bytes())

	_, err := LoadDirectory(NewBytesSource(data), LoadOptions{})
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestLoadDirectory_FilterExtension(t *testing.T) {
	t.Parallel()

	payload := []byte("XYZ")
	var tree binWriter
	tree.str("txt")
	tree.str("scripts")
	tree.str("main")
	tree.classicEntry(crc32.ChecksumIEEE(payload), nil, IndexDir, 0, 3)
	tree.WriteByte(0)
	tree.WriteByte(0)
	tree.str("cfg")
	tree.str("scripts")
	tree.str("server")
	tree.classicEntry(0, []byte{1, 2}, 0, 0, 0)
	tree.WriteByte(0)
	tree.WriteByte(0)
	tree.WriteByte(0)

	var dir binWriter
	dir.u32(Signature)
	dir.u32(VersionV1)
	dir.u32(uint32(tree.Len()))
	dir.Write(tree.Bytes())
	dir.Write(payload)

	d, err := LoadDirectory(NewBytesSource(dir.Bytes()), LoadOptions{FilterExtension: "cfg"})
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if d.Tree().Len() != 1 {
		t.Fatalf("tree len = %d, want 1", d.Tree().Len())
	}
	if _, ok := d.Lookup("scripts/server.cfg"); !ok {
		t.Error("filtered entry not found")
	}
	if _, ok := d.Lookup("scripts/main.txt"); ok {
		t.Error("excluded extension still present")
	}
}

func TestLoadDirectory_NameTooLong(t *testing.T) {
	t.Parallel()

	var tree binWriter
	tree.str("txt")
	tree.str(string(bytes.Repeat([]byte{'a'}, 64)))
	tree.str("main")
	tree.classicEntry(0, nil, IndexDir, 0, 0)
	tree.WriteByte(0)
	tree.WriteByte(0)
	tree.WriteByte(0)

	var dir binWriter
	dir.u32(Signature)
	dir.u32(VersionV1)
	dir.u32(uint32(tree.Len()))
	dir.Write(tree.Bytes())

	_, err := LoadDirectory(NewBytesSource(dir.Bytes()), LoadOptions{MaxStringLen: 16})
	if !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("err = %v, want ErrNameTooLong", err)
	}
}

func TestOpen_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pak01_dir.vpk")
	if err := os.WriteFile(path, buildV1Fixture(t), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	data, err := d.ReadFile("scripts/main.txt", nil, ResolveOptions{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, []byte("ABXYZ")) {
		t.Fatalf("data = %q, want ABXYZ", data)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDirectory_DataStart(t *testing.T) {
	t.Parallel()

	data := buildV1Fixture(t)
	d := loadFixture(t, data)

	want := int64(len(data) - 3) // payload "XYZ" follows the tree
	if d.DataStart() != want {
		t.Fatalf("DataStart = %d, want %d", d.DataStart(), want)
	}
}

func BenchmarkLoadDirectory(b *testing.B) {
	payload := []byte("XYZ")
	var tree binWriter
	tree.str("txt")
	for i := 0; i < 64; i++ {
		tree.str(string(rune('a'+i%26)) + "dir" + string(rune('0'+i/26)))
		for j := 0; j < 16; j++ {
			tree.str("file" + string(rune('a'+j)))
			tree.classicEntry(crc32.ChecksumIEEE(payload), []byte{1, 2, 3, 4}, IndexDir, 0, 3)
		}
		tree.WriteByte(0)
	}
	tree.WriteByte(0)
	tree.WriteByte(0)

	var dir binWriter
	dir.u32(Signature)
	dir.u32(VersionV1)
	dir.u32(uint32(tree.Len()))
	dir.Write(tree.Bytes())
	dir.Write(payload)

	src := NewBytesSource(dir.Bytes())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := LoadDirectory(src, LoadOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
