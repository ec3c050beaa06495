// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const (
	// treeReadBufferSize is the sequential read buffer for tree parsing.
	treeReadBufferSize = 64 * 1024
)

var (
	// treeReaderPool reuses buffered readers for sequential tree parsing.
	treeReaderPool = sync.Pool{
		New: func() any {
			return bufio.NewReaderSize(nil, treeReadBufferSize)
		},
	}
)

// Directory is a parsed VPK directory file: header, entry tree, and the
// position of the inline data region. It is immutable after parsing and
// safe to share across concurrent resolve calls.
type Directory struct {
	header Header
	tree   *Tree
	// integrity holds the v2 MD5/signature sections, nil for other dialects.
	integrity *Integrity
	// src is the directory file byte source used for inline payload reads.
	src ByteSource
	// dataStart is the absolute offset of the first inline payload byte,
	// computed once per parse as header size + tree size.
	dataStart int64
	// ownsSrc is set when the Directory opened src itself.
	ownsSrc bool
	mu      sync.Mutex
	closed  bool
}

// Open opens a directory file by path and parses it.
func Open(path string) (*Directory, error) {
	return OpenWithOptions(path, LoadOptions{})
}

// OpenWithOptions opens a directory file by path with explicit load options.
func OpenWithOptions(path string, opts LoadOptions) (*Directory, error) {
	src, err := OpenFile(path)
	if err != nil {
		return nil, err
	}

	d, err := LoadDirectory(src, opts)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	d.ownsSrc = true
	return d, nil
}

// LoadDirectory parses a directory file from a byte source. The source must
// stay open for the lifetime of the Directory: inline payload resolution
// reads from it.
func LoadDirectory(src ByteSource, opts LoadOptions) (*Directory, error) {
	if src == nil {
		return nil, ErrNilSource
	}

	opts.applyDefaults()

	header, err := parseHeader(src)
	if err != nil {
		return nil, err
	}

	d := &Directory{
		header:    header,
		src:       src,
		dataStart: header.size() + int64(header.TreeSize),
	}

	if d.dataStart > src.Len() {
		return nil, fmt.Errorf("%w: tree size %d exceeds source length %d",
			ErrCorrupt, header.TreeSize, src.Len())
	}

	tree, err := parseTree(src, header, opts)
	if err != nil {
		return nil, err
	}
	d.tree = tree

	if header.Dialect == DialectV2 {
		integrity, err := parseIntegrity(src, header)
		if err != nil {
			return nil, err
		}
		d.integrity = integrity
	}

	return d, nil
}

// Header returns the parsed dialect-tagged header.
func (d *Directory) Header() Header {
	return d.header
}

// Dialect returns the identified dialect.
func (d *Directory) Dialect() Dialect {
	return d.header.Dialect
}

// Tree returns the parsed directory tree.
func (d *Directory) Tree() *Tree {
	return d.tree
}

// Integrity returns the v2 MD5/signature sections, nil for other dialects.
func (d *Directory) Integrity() *Integrity {
	return d.integrity
}

// DataStart returns the absolute offset of the inline payload region.
func (d *Directory) DataStart() int64 {
	return d.dataStart
}

// Entries returns all entries in stored order.
func (d *Directory) Entries() []EntryRef {
	return d.tree.Entries()
}

// Walk visits entries lazily in stored order.
func (d *Directory) Walk(fn func(ref EntryRef) error) error {
	return d.tree.Walk(fn)
}

// Lookup returns the entry for a joined "path/name.ext" form.
func (d *Directory) Lookup(fullPath string) (*Entry, bool) {
	return d.tree.LookupPath(fullPath)
}

// Close closes the directory source if the Directory owns it.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}

	d.closed = true
	if d.ownsSrc && d.src != nil {
		return d.src.Close()
	}

	return nil
}

// parseHeader reads the fixed header and identifies the dialect.
func parseHeader(src ByteSource) (Header, error) {
	var h Header

	common, err := readRange(src, 0, 8)
	if err != nil {
		return h, fmt.Errorf("%w: short header: %v", ErrCorrupt, err)
	}

	dialect, err := identifyDialect(
		binary.LittleEndian.Uint32(common[0:4]),
		binary.LittleEndian.Uint32(common[4:8]),
	)
	if err != nil {
		return h, err
	}

	h.Dialect = dialect
	rest, err := readRange(src, 8, dialect.headerSize()-8)
	if err != nil {
		return h, fmt.Errorf("%w: truncated %s header: %v", ErrCorrupt, dialect, err)
	}

	h.TreeSize = binary.LittleEndian.Uint32(rest[0:4])
	switch dialect {
	case DialectV2:
		h.FileDataSectionSize = binary.LittleEndian.Uint32(rest[4:8])
		h.ArchiveMD5SectionSize = binary.LittleEndian.Uint32(rest[8:12])
		h.OtherMD5SectionSize = binary.LittleEndian.Uint32(rest[12:16])
		h.SignatureSectionSize = binary.LittleEndian.Uint32(rest[16:20])
	case DialectRespawn:
		h.DataSize = binary.LittleEndian.Uint32(rest[4:8])
	}

	if err := h.validate(); err != nil {
		return h, err
	}

	return h, nil
}

// treeParser tracks the buffered cursor and absolute offset during tree
// parsing so errors can name the failing offset.
type treeParser struct {
	br  *bufio.Reader
	src ByteSource
	// pos is the absolute offset of the next unread tree byte.
	pos int64
	// end is the absolute offset one past the tree region.
	end  int64
	opts LoadOptions
}

// parseTree streams the three-level tree with per-entry preload bytes.
func parseTree(src ByteSource, header Header, opts LoadOptions) (*Tree, error) {
	treeStart := header.size()
	sr := io.NewSectionReader(src, treeStart, int64(header.TreeSize))

	br := treeReaderPool.Get().(*bufio.Reader) //nolint:forcetypeassert // pool contains only *bufio.Reader
	br.Reset(sr)
	defer func() {
		br.Reset(nil)
		treeReaderPool.Put(br)
	}()

	p := &treeParser{
		br:   br,
		src:  src,
		pos:  treeStart,
		end:  treeStart + int64(header.TreeSize),
		opts: opts,
	}

	tree := NewTree()
	for {
		ext, err := p.readString("extension")
		if err != nil {
			return nil, err
		}
		if ext == "" {
			break
		}

		for {
			dir, err := p.readString("path")
			if err != nil {
				return nil, err
			}
			if dir == "" {
				break
			}

			for {
				name, err := p.readString("file name")
				if err != nil {
					return nil, err
				}
				if name == "" {
					break
				}

				entry, err := p.readEntry(header.Dialect)
				if err != nil {
					return nil, fmt.Errorf("entry %q: %w", joinEntryPath(ext, dir, name), err)
				}

				if opts.FilterExtension != "" && ext != opts.FilterExtension {
					continue
				}

				if err := tree.Insert(ext, dir, name, entry); err != nil {
					return nil, err
				}
			}
		}
	}

	if p.pos != p.end {
		return nil, fmt.Errorf("%w: tree terminated at offset %d, expected %d",
			ErrCorrupt, p.pos, p.end)
	}

	return tree, nil
}

// readString reads one NUL-terminated tree string.
func (p *treeParser) readString(what string) (string, error) {
	raw, err := p.br.ReadBytes(0)
	if err != nil {
		return "", fmt.Errorf("%w: truncated %s at offset %d", ErrCorrupt, what, p.pos)
	}

	p.pos += int64(len(raw))
	s := string(raw[:len(raw)-1])
	if len(s) > p.opts.MaxStringLen {
		return "", fmt.Errorf("%w: %s at offset %d", ErrNameTooLong, what, p.pos-int64(len(raw)))
	}

	return s, nil
}

// readFixed reads exactly n descriptor bytes into buf.
func (p *treeParser) readFixed(buf []byte, what string) error {
	if _, err := io.ReadFull(p.br, buf); err != nil {
		return fmt.Errorf("%w: truncated %s at offset %d", ErrCorrupt, what, p.pos)
	}

	p.pos += int64(len(buf))
	return nil
}

// readEntry reads one dialect-specific descriptor plus preload bytes.
func (p *treeParser) readEntry(dialect Dialect) (*Entry, error) {
	if dialect == DialectRespawn {
		return p.readRespawnEntry()
	}

	var fields [classicEntrySize]byte
	if err := p.readFixed(fields[:], "entry descriptor"); err != nil {
		return nil, err
	}

	entry := &Entry{
		CRC:           binary.LittleEndian.Uint32(fields[0:4]),
		PreloadLength: binary.LittleEndian.Uint16(fields[4:6]),
		ArchiveIndex:  binary.LittleEndian.Uint16(fields[6:8]),
		Offset:        binary.LittleEndian.Uint32(fields[8:12]),
		Length:        binary.LittleEndian.Uint32(fields[12:16]),
	}

	if terminator := binary.LittleEndian.Uint16(fields[16:18]); terminator != entryTerminator {
		return nil, fmt.Errorf("%w: entry terminator %#04x at offset %d, want %#04x",
			ErrCorrupt, terminator, p.pos-2, entryTerminator)
	}

	if err := p.readPreload(entry, int(entry.PreloadLength)); err != nil {
		return nil, err
	}

	return entry, nil
}

// readRespawnEntry reads one Respawn descriptor with its file part list.
func (p *treeParser) readRespawnEntry() (*Entry, error) {
	var head [6]byte
	if err := p.readFixed(head[:], "entry descriptor"); err != nil {
		return nil, err
	}

	entry := &Entry{
		CRC:           binary.LittleEndian.Uint32(head[0:4]),
		PreloadLength: binary.LittleEndian.Uint16(head[4:6]),
		ArchiveIndex:  IndexDir,
	}

	for {
		var idx [2]byte
		if err := p.readFixed(idx[:], "file part index"); err != nil {
			return nil, err
		}

		archiveIndex := binary.LittleEndian.Uint16(idx[:])
		if archiveIndex == entryTerminator {
			break
		}

		var rest [respawnPartSize - 2]byte
		if err := p.readFixed(rest[:], "file part"); err != nil {
			return nil, err
		}

		entry.Parts = append(entry.Parts, FilePart{
			ArchiveIndex:       archiveIndex,
			LoadFlags:          binary.LittleEndian.Uint16(rest[0:2]),
			TextureFlags:       binary.LittleEndian.Uint32(rest[2:6]),
			Offset:             binary.LittleEndian.Uint64(rest[6:14]),
			Length:             binary.LittleEndian.Uint64(rest[14:22]),
			UncompressedLength: binary.LittleEndian.Uint64(rest[22:30]),
		})
	}

	if err := p.readPreload(entry, int(entry.PreloadLength)); err != nil {
		return nil, err
	}

	return entry, nil
}

// readPreload attaches the preload blob following a descriptor. Mapped
// sources contribute borrowed slices; buffered sources copy.
func (p *treeParser) readPreload(entry *Entry, n int) error {
	if n == 0 {
		return nil
	}
	if p.pos+int64(n) > p.end {
		return fmt.Errorf("%w: preload of %d bytes at offset %d overruns tree region",
			ErrCorrupt, n, p.pos)
	}

	if s, ok := p.src.(slicer); ok {
		preload, err := s.Slice(p.pos, int64(n))
		if err != nil {
			return fmt.Errorf("%w: preload at offset %d: %v", ErrCorrupt, p.pos, err)
		}
		if _, err := p.br.Discard(n); err != nil {
			return fmt.Errorf("%w: truncated preload at offset %d", ErrCorrupt, p.pos)
		}

		entry.Preload = preload
		p.pos += int64(n)
		return nil
	}

	preload := make([]byte, n)
	if _, err := io.ReadFull(p.br, preload); err != nil {
		return fmt.Errorf("%w: truncated preload at offset %d", ErrCorrupt, p.pos)
	}

	entry.Preload = preload
	p.pos += int64(n)
	return nil
}
