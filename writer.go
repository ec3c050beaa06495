// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
)

// BuildOptions carries the non-tree sections of a serialized directory.
type BuildOptions struct {
	// FileData is the v2 inline file data section written after the tree.
	FileData []byte
	// ArchiveMD5 are the v2 archive range digests.
	ArchiveMD5 []ArchiveMD5Entry
	// Signature is the optional v2 signature block.
	Signature *SignatureSection
	// UnknownMD5 is carried verbatim into the v2 other-MD5 section.
	UnknownMD5 [16]byte
}

// BuildDirectory serializes a directory file for the dialect from a tree.
// Section sizes are recomputed from the actual serialized tree, never
// trusted from any input header. On validation failure zero bytes are
// produced.
func BuildDirectory(dialect Dialect, tree *Tree, opts BuildOptions) ([]byte, error) {
	if tree == nil {
		return nil, fmt.Errorf("%w: nil tree", ErrValidation)
	}
	if !Supports(dialect, OpWrite) {
		return nil, fmt.Errorf("%w: write %s", ErrUnsupported, dialect)
	}

	treeBytes, err := serializeTree(dialect, tree)
	if err != nil {
		return nil, err
	}
	treeSize, err := sectionSize("tree", int64(len(treeBytes)))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(int(dialect.headerSize()) + len(treeBytes) + len(opts.FileData))

	var word [4]byte
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(word[:], v)
		buf.Write(word[:])
	}

	putU32(Signature)
	putU32(dialect.version())
	putU32(treeSize)

	switch dialect {
	case DialectV1:
		buf.Write(treeBytes)

	case DialectRespawn:
		putU32(0) // data size, zero in every known file
		buf.Write(treeBytes)

	case DialectV2:
		archiveMD5 := appendArchiveMD5Section(nil, opts.ArchiveMD5)
		signature, err := appendSignatureSection(nil, opts.Signature)
		if err != nil {
			return nil, err
		}

		fileDataSize, err := sectionSize("file data", int64(len(opts.FileData)))
		if err != nil {
			return nil, err
		}

		putU32(fileDataSize)
		putU32(uint32(len(archiveMD5)))
		putU32(otherMD5SectionSize)
		putU32(uint32(len(signature)))
		buf.Write(treeBytes)
		buf.Write(opts.FileData)
		buf.Write(archiveMD5)

		treeMD5 := md5.Sum(treeBytes)
		sectionMD5 := md5.Sum(archiveMD5)
		buf.Write(treeMD5[:])
		buf.Write(sectionMD5[:])
		buf.Write(opts.UnknownMD5[:])
		buf.Write(signature)
	}

	return buf.Bytes(), nil
}

// Serialize writes the directory back out through w, recomputing section
// sizes. For v2 the inline file data section is copied from the directory
// source. Nothing is written when validation fails.
func (d *Directory) Serialize(w io.Writer) error {
	raw, err := d.Bytes()
	if err != nil {
		return err
	}

	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write directory: %w", err)
	}

	return nil
}

// Bytes serializes the directory file, recomputing section sizes.
func (d *Directory) Bytes() ([]byte, error) {
	opts := BuildOptions{}
	if d.header.Dialect == DialectV2 {
		if d.header.FileDataSectionSize > 0 {
			fileData, err := readRange(d.src, d.dataStart, int64(d.header.FileDataSectionSize))
			if err != nil {
				return nil, fmt.Errorf("read file data section: %w", err)
			}
			opts.FileData = fileData
		}
		if d.integrity != nil {
			opts.ArchiveMD5 = d.integrity.ArchiveMD5
			opts.Signature = d.integrity.Signature
			opts.UnknownMD5 = d.integrity.OtherMD5.Unknown
		}
	}

	return BuildDirectory(d.header.Dialect, d.tree, opts)
}

// sectionSize narrows a section length to the uint32 header field.
func sectionSize(what string, n int64) (uint32, error) {
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s section of %d bytes exceeds uint32", ErrValidation, what, n)
	}

	return uint32(n), nil
}

// serializeTree writes the three-level tree in stored order: nested
// NUL-terminated string lists, one descriptor plus preload per leaf.
func serializeTree(dialect Dialect, tree *Tree) ([]byte, error) {
	var buf bytes.Buffer

	for _, en := range tree.exts {
		if err := writeTreeString(&buf, en.name, "extension"); err != nil {
			return nil, err
		}

		for _, dn := range en.dirs {
			if err := writeTreeString(&buf, dn.name, "path"); err != nil {
				return nil, err
			}

			for _, leaf := range dn.files {
				if err := writeTreeString(&buf, leaf.name, "file name"); err != nil {
					return nil, err
				}

				key := joinEntryPath(en.name, dn.name, leaf.name)
				if err := writeEntry(&buf, dialect, key, leaf.entry); err != nil {
					return nil, err
				}
			}
			buf.WriteByte(0)
		}
		buf.WriteByte(0)
	}
	buf.WriteByte(0)

	return buf.Bytes(), nil
}

// writeTreeString writes one NUL-terminated tree string with limit checks.
func writeTreeString(buf *bytes.Buffer, s, what string) error {
	if s == "" {
		return fmt.Errorf("%w: empty %s", ErrValidation, what)
	}
	if len(s) > maxTreeString {
		return fmt.Errorf("%w: %s of %d bytes", ErrNameTooLong, what, len(s))
	}
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%w: %s contains NUL", ErrValidation, what)
	}

	buf.WriteString(s)
	buf.WriteByte(0)
	return nil
}

// writeEntry writes one dialect-specific descriptor plus preload bytes.
func writeEntry(buf *bytes.Buffer, dialect Dialect, key string, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry %q is nil", ErrValidation, key)
	}
	if int(entry.PreloadLength) != len(entry.Preload) {
		return fmt.Errorf("%w: entry %q declares %d preload bytes but holds %d",
			ErrValidation, key, entry.PreloadLength, len(entry.Preload))
	}

	if dialect == DialectRespawn {
		return writeRespawnEntry(buf, key, entry)
	}

	if len(entry.Parts) != 0 {
		return fmt.Errorf("%w: entry %q has file parts in a %s tree", ErrValidation, key, dialect)
	}

	var fields [classicEntrySize]byte
	binary.LittleEndian.PutUint32(fields[0:4], entry.CRC)
	binary.LittleEndian.PutUint16(fields[4:6], entry.PreloadLength)
	binary.LittleEndian.PutUint16(fields[6:8], entry.ArchiveIndex)
	binary.LittleEndian.PutUint32(fields[8:12], entry.Offset)
	binary.LittleEndian.PutUint32(fields[12:16], entry.Length)
	binary.LittleEndian.PutUint16(fields[16:18], entryTerminator)
	buf.Write(fields[:])
	buf.Write(entry.Preload)

	return nil
}

// writeRespawnEntry writes one Respawn descriptor with its part list.
func writeRespawnEntry(buf *bytes.Buffer, key string, entry *Entry) error {
	if len(entry.Parts) == 0 {
		return fmt.Errorf("%w: entry %q has no file parts", ErrValidation, key)
	}

	var head [6]byte
	binary.LittleEndian.PutUint32(head[0:4], entry.CRC)
	binary.LittleEndian.PutUint16(head[4:6], entry.PreloadLength)
	buf.Write(head[:])

	for i := range entry.Parts {
		part := &entry.Parts[i]
		if part.ArchiveIndex == entryTerminator {
			return fmt.Errorf("%w: entry %q part %d uses the terminator index",
				ErrValidation, key, i)
		}

		var rec [respawnPartSize]byte
		binary.LittleEndian.PutUint16(rec[0:2], part.ArchiveIndex)
		binary.LittleEndian.PutUint16(rec[2:4], part.LoadFlags)
		binary.LittleEndian.PutUint32(rec[4:8], part.TextureFlags)
		binary.LittleEndian.PutUint64(rec[8:16], part.Offset)
		binary.LittleEndian.PutUint64(rec[16:24], part.Length)
		binary.LittleEndian.PutUint64(rec[24:32], part.UncompressedLength)
		buf.Write(rec[:])
	}

	var term [2]byte
	binary.LittleEndian.PutUint16(term[:], entryTerminator)
	buf.Write(term[:])
	buf.Write(entry.Preload)

	return nil
}
