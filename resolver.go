// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"fmt"
	"hash/crc32"
	"math"

	"github.com/pg9182/tf2lzham"
)

// ReadFile resolves the full content of the entry at a joined
// "path/name.ext" form: preload bytes first, then the main payload.
func (d *Directory) ReadFile(fullPath string, reg *Registry, opts ResolveOptions) ([]byte, error) {
	entry, ok := d.Lookup(fullPath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, fullPath)
	}

	data, err := d.Resolve(entry, reg, opts)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", fullPath, err)
	}

	return data, nil
}

// maxEntrySize bounds a single resolved entry. Classic descriptors and CAM
// records carry 32-bit sizes; only Respawn part records are wider, and a
// part list declaring more than this is corrupt, not large.
const maxEntrySize = int64(1) << 32

// entryResolveSize computes the resolved size of an entry, rejecting part
// lists whose declared sizes overflow or exceed maxEntrySize. Size fields
// come straight from the directory file and are not trusted.
func entryResolveSize(entry *Entry) (int64, error) {
	size := int64(len(entry.Preload))
	if len(entry.Parts) == 0 {
		return size + int64(entry.Length), nil
	}

	for i := range entry.Parts {
		if err := checkPartSize(i, &entry.Parts[i]); err != nil {
			return 0, err
		}

		size += int64(entry.Parts[i].UncompressedLength)
		if size > maxEntrySize {
			return 0, fmt.Errorf("%w: part sizes sum past %d bytes", ErrCorrupt, maxEntrySize)
		}
	}

	return size, nil
}

// checkPartSize rejects a part whose declared uncompressed length cannot
// belong to a valid archive.
func checkPartSize(i int, part *FilePart) error {
	if part.UncompressedLength > uint64(maxEntrySize) {
		return fmt.Errorf("%w: part %d declares %d uncompressed bytes",
			ErrCorrupt, i, part.UncompressedLength)
	}

	return nil
}

// Resolve returns the entry's full byte content: the preload slice followed
// by the main payload read from the selected byte source. The result is
// always an owned buffer of exactly preload+payload bytes.
func (d *Directory) Resolve(entry *Entry, reg *Registry, opts ResolveOptions) ([]byte, error) {
	if entry == nil {
		return nil, ErrEntryNotFound
	}

	total, err := entryResolveSize(entry)
	if err != nil {
		return nil, err
	}
	if total > math.MaxInt32 && math.MaxInt == math.MaxInt32 {
		return nil, fmt.Errorf("%w: entry of %d bytes on 32-bit platform", ErrOutOfBounds, total)
	}

	out := make([]byte, 0, total)
	out = append(out, entry.Preload...)

	if len(entry.Parts) > 0 {
		out, err = d.resolveParts(out, entry, reg)
	} else {
		out, err = d.resolveClassic(out, entry, reg)
	}
	if err != nil {
		return nil, err
	}

	if opts.VerifyCRC {
		if err := verifyEntryCRC(entry, out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// resolveClassic appends the single classic payload region.
func (d *Directory) resolveClassic(out []byte, entry *Entry, reg *Registry) ([]byte, error) {
	if entry.Length == 0 {
		return out, nil
	}

	src, base, err := d.selectSource(entry.ArchiveIndex, reg)
	if err != nil {
		return nil, err
	}

	payload, err := readRange(src, base+int64(entry.Offset), int64(entry.Length))
	if err != nil {
		return nil, fmt.Errorf("payload at offset %d in archive %s: %w",
			entry.Offset, archiveName(entry.ArchiveIndex), err)
	}

	return append(out, payload...), nil
}

// resolveParts appends every Respawn file part, decompressing or copying
// each chunk per its stored mode.
func (d *Directory) resolveParts(out []byte, entry *Entry, reg *Registry) ([]byte, error) {
	for i := range entry.Parts {
		part := &entry.Parts[i]
		if part.UncompressedLength == 0 {
			continue
		}

		src, base, err := d.selectSource(part.ArchiveIndex, reg)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}

		raw, err := readRange(src, base+int64(part.Offset), int64(part.Length))
		if err != nil {
			return nil, fmt.Errorf("part %d at offset %d in archive %s: %w",
				i, part.Offset, archiveName(part.ArchiveIndex), err)
		}

		if !part.IsCompressed() {
			out = append(out, raw...)
			continue
		}

		chunk := make([]byte, part.UncompressedLength)
		n, _, _, err := tf2lzham.Decompress(chunk, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: part %d at offset %d: %v", ErrCodec, i, part.Offset, err)
		}
		if n != len(chunk) {
			return nil, fmt.Errorf("%w: part %d decompressed to %d bytes, want %d",
				ErrCodec, i, n, len(chunk))
		}

		out = append(out, chunk...)
	}

	return out, nil
}

// selectSource maps an archive index to a byte source and base offset.
// The sentinel selects the directory file's own source positioned after
// the tree and preload region; anything else hits the registry.
func (d *Directory) selectSource(index uint16, reg *Registry) (ByteSource, int64, error) {
	if index == IndexDir {
		if d.src == nil {
			return nil, 0, ErrNilSource
		}

		return d.src, d.dataStart, nil
	}

	src, ok := reg.Lookup(index)
	if !ok {
		return nil, 0, fmt.Errorf("%w: archive %03d", ErrMissingSource, index)
	}

	return src, 0, nil
}

// archiveName formats an archive index the way part files are named.
func archiveName(index uint16) string {
	if index == IndexDir {
		return "dir"
	}

	return fmt.Sprintf("%03d", index)
}

// VerifyEntry resolves the entry at fullPath and checks its stored CRC.
// A mismatch is reported as ErrIntegrity, leaving the trust decision to
// the caller.
func (d *Directory) VerifyEntry(fullPath string, reg *Registry) error {
	entry, ok := d.Lookup(fullPath)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, fullPath)
	}

	data, err := d.Resolve(entry, reg, ResolveOptions{})
	if err != nil {
		return fmt.Errorf("resolve %s: %w", fullPath, err)
	}

	if err := verifyEntryCRC(entry, data); err != nil {
		return fmt.Errorf("%s: %w", fullPath, err)
	}

	return nil
}

// verifyEntryCRC checks the stored CRC-32/ISO-HDLC over the non-preload
// payload bytes of resolved content.
func verifyEntryCRC(entry *Entry, resolved []byte) error {
	payload := resolved
	if n := len(entry.Preload); n <= len(resolved) {
		payload = resolved[n:]
	}

	if sum := crc32.ChecksumIEEE(payload); sum != entry.CRC {
		return fmt.Errorf("%w: CRC %08x, want %08x", ErrIntegrity, sum, entry.CRC)
	}

	return nil
}
