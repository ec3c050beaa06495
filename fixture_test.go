// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

// binWriter builds little-endian binary fixtures byte for byte.
type binWriter struct {
	bytes.Buffer
}

func (w *binWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func (w *binWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func (w *binWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func (w *binWriter) str(s string) {
	w.WriteString(s)
	w.WriteByte(0)
}

// classicEntry writes one classic descriptor followed by its preload.
func (w *binWriter) classicEntry(crc uint32, preload []byte, index uint16, off, length uint32) {
	w.u32(crc)
	w.u16(uint16(len(preload)))
	w.u16(index)
	w.u32(off)
	w.u32(length)
	w.u16(entryTerminator)
	w.Write(preload)
}

// respawnPart writes one Respawn file part record.
func (w *binWriter) respawnPart(p FilePart) {
	w.u16(p.ArchiveIndex)
	w.u16(p.LoadFlags)
	w.u32(p.TextureFlags)
	w.u64(p.Offset)
	w.u64(p.Length)
	w.u64(p.UncompressedLength)
}

// buildV1Fixture builds a v1 directory image with one inline entry
// "scripts/main.txt": preload "AB", payload "XYZ" appended after the tree.
func buildV1Fixture(t *testing.T) []byte {
	t.Helper()

	payload := []byte("XYZ")
	preload := []byte("AB")

	var tree binWriter
	tree.str("txt")
	tree.str("scripts")
	tree.str("main")
	tree.classicEntry(crc32.ChecksumIEEE(payload), preload, IndexDir, 0, uint32(len(payload)))
	tree.WriteByte(0) // end of files in scripts
	tree.WriteByte(0) // end of dirs under txt
	tree.WriteByte(0) // end of extensions

	var dir binWriter
	dir.u32(Signature)
	dir.u32(VersionV1)
	dir.u32(uint32(tree.Len()))
	dir.Write(tree.Bytes())
	dir.Write(payload)

	return dir.Bytes()
}

// buildRespawnFixture builds a Respawn directory image with one entry
// "sound/fire.wav" whose parts live in archive 0. The caller supplies the
// part records; preload is empty.
func buildRespawnFixture(t *testing.T, crc uint32, parts []FilePart) []byte {
	t.Helper()

	var tree binWriter
	tree.str("wav")
	tree.str("sound")
	tree.str("fire")
	tree.u32(crc)
	tree.u16(0) // preload length
	for _, p := range parts {
		tree.respawnPart(p)
	}
	tree.u16(entryTerminator)
	tree.WriteByte(0)
	tree.WriteByte(0)
	tree.WriteByte(0)

	var dir binWriter
	dir.u32(Signature)
	dir.u32(VersionRespawn)
	dir.u32(uint32(tree.Len()))
	dir.u32(0)
	dir.Write(tree.Bytes())

	return dir.Bytes()
}

// loadFixture parses an in-memory directory image.
func loadFixture(t *testing.T, data []byte) *Directory {
	t.Helper()

	d, err := LoadDirectory(NewBytesSource(data), LoadOptions{})
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}

	return d
}
