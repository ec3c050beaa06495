// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	// Signature is the 4-byte magic shared by every VPK dialect.
	Signature uint32 = 0x55AA1234
	// VersionV1 is the header version of a classic v1 directory.
	VersionV1 uint32 = 1
	// VersionV2 is the header version of a classic v2 directory.
	VersionV2 uint32 = 2
	// VersionRespawn is the header version of a Respawn directory
	// (major 2, minor 3 packed little-endian).
	VersionRespawn uint32 = 0x00030002

	headerSizeV1      = 12
	headerSizeV2      = 28
	headerSizeRespawn = 16

	// classicEntrySize is the fixed classic descriptor size including terminator.
	classicEntrySize = 18
	// respawnPartSize is the fixed size of one Respawn file part record.
	respawnPartSize = 32

	// entryTerminator closes a classic descriptor and a Respawn part list.
	entryTerminator uint16 = 0xFFFF
	// archiveMD5EntrySize is the fixed v2 archive MD5 record size.
	archiveMD5EntrySize = 28
	// otherMD5SectionSize is the fixed v2 other-MD5 section size.
	otherMD5SectionSize = 48
	// signatureSectionSize is the only non-zero v2 signature section size seen.
	signatureSectionSize = 296

	maxTreeString = 512
)

// IndexDir is the archive index sentinel meaning the payload lives in the
// directory file itself, after the header and tree.
const IndexDir uint16 = 0x7FFF

// rootPathMark encodes an empty directory path or extension on disk.
const rootPathMark = " "

// Dialect identifies one of the supported VPK header/entry layouts.
type Dialect uint8

// Supported dialects. DialectUnknown is the pre-identification state; a
// directory stream that matches no (signature, version) pair is rejected,
// never guessed.
const (
	DialectUnknown Dialect = iota
	DialectV1
	DialectV2
	DialectRespawn
)

// String returns a human-readable dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectV1:
		return "VPK v1"
	case DialectV2:
		return "VPK v2"
	case DialectRespawn:
		return "Respawn VPK"
	default:
		return "unknown"
	}
}

// headerSize returns the fixed header byte length for the dialect.
func (d Dialect) headerSize() int64 {
	switch d {
	case DialectV1:
		return headerSizeV1
	case DialectV2:
		return headerSizeV2
	case DialectRespawn:
		return headerSizeRespawn
	default:
		return 0
	}
}

// version returns the header version constant for the dialect.
func (d Dialect) version() uint32 {
	switch d {
	case DialectV1:
		return VersionV1
	case DialectV2:
		return VersionV2
	case DialectRespawn:
		return VersionRespawn
	default:
		return 0
	}
}

// identifyDialect maps a (signature, version) pair to a dialect.
// Unknown combinations are rejected with ErrCorrupt.
func identifyDialect(signature, version uint32) (Dialect, error) {
	if signature != Signature {
		return DialectUnknown, fmt.Errorf("%w: signature %#08x, want %#08x", ErrCorrupt, signature, Signature)
	}

	switch version {
	case VersionV1:
		return DialectV1, nil
	case VersionV2:
		return DialectV2, nil
	case VersionRespawn:
		return DialectRespawn, nil
	default:
		return DialectUnknown, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
}

// Operation names one capability-gated engine operation.
type Operation uint8

// Capability-gated operations.
const (
	// OpRead is directory parsing and entry data resolution.
	OpRead Operation = iota
	// OpWrite is directory serialization.
	OpWrite
	// OpVerify is checksum verification (CRC for all dialects, MD5 sections for v2).
	OpVerify
	// OpAudio is Respawn audio decoding.
	OpAudio
)

// Supports reports whether the dialect implements the operation.
func Supports(d Dialect, op Operation) bool {
	switch d {
	case DialectV1, DialectV2:
		return op != OpAudio
	case DialectRespawn:
		return true
	default:
		return false
	}
}

// Header is the dialect-tagged fixed-layout directory header.
// Only the fields of the tagged dialect are meaningful.
type Header struct {
	// Dialect tags which field set below is in effect.
	Dialect Dialect
	// TreeSize is the serialized directory tree length in bytes.
	TreeSize uint32

	// FileDataSectionSize is the v2 inline file data section length.
	FileDataSectionSize uint32
	// ArchiveMD5SectionSize is the v2 archive MD5 section length (multiple of 28).
	ArchiveMD5SectionSize uint32
	// OtherMD5SectionSize is the v2 other-MD5 section length (always 48).
	OtherMD5SectionSize uint32
	// SignatureSectionSize is the v2 signature section length (0 or 296).
	SignatureSectionSize uint32

	// DataSize is the Respawn header trailing field, zero in every known file.
	DataSize uint32
}

// size returns the fixed header length for the tagged dialect.
func (h *Header) size() int64 {
	return h.Dialect.headerSize()
}

// validate checks dialect-specific header invariants.
func (h *Header) validate() error {
	switch h.Dialect {
	case DialectV1:
		return nil
	case DialectV2:
		if h.ArchiveMD5SectionSize%archiveMD5EntrySize != 0 {
			return fmt.Errorf("%w: archive MD5 section size %d is not a multiple of %d",
				ErrCorrupt, h.ArchiveMD5SectionSize, archiveMD5EntrySize)
		}
		if h.OtherMD5SectionSize != otherMD5SectionSize {
			return fmt.Errorf("%w: other MD5 section size %d, want %d",
				ErrCorrupt, h.OtherMD5SectionSize, otherMD5SectionSize)
		}
		if h.SignatureSectionSize != 0 && h.SignatureSectionSize != signatureSectionSize {
			return fmt.Errorf("%w: signature section size %d, want 0 or %d",
				ErrCorrupt, h.SignatureSectionSize, signatureSectionSize)
		}
		return nil
	case DialectRespawn:
		if h.DataSize != 0 {
			return fmt.Errorf("%w: respawn header data size %d, want 0", ErrCorrupt, h.DataSize)
		}
		return nil
	default:
		return fmt.Errorf("%w: unidentified dialect", ErrCorrupt)
	}
}

// FilePart is one payload chunk of a Respawn entry. A part whose Length
// differs from UncompressedLength is stored LZHAM-compressed.
type FilePart struct {
	// ArchiveIndex selects the archive part holding this chunk.
	ArchiveIndex uint16
	// LoadFlags are engine load flags, equal across all parts of one entry.
	LoadFlags uint16
	// TextureFlags are engine texture flags, equal across all parts of one entry.
	TextureFlags uint32
	// Offset is the absolute chunk offset within the archive part.
	Offset uint64
	// Length is the stored chunk length in bytes.
	Length uint64
	// UncompressedLength is the chunk length after decompression.
	UncompressedLength uint64
}

// IsCompressed reports whether this part is stored LZHAM-compressed.
func (p *FilePart) IsCompressed() bool {
	return p.Length != p.UncompressedLength
}

// Entry is the per-file descriptor plus its preload blob.
//
// Classic dialects use ArchiveIndex/Offset/Length; the Respawn dialect uses
// Parts instead. Preload bytes and main payload are logically concatenated,
// preload first, to form the file content.
type Entry struct {
	// CRC is the CRC-32/ISO-HDLC of the non-preload payload bytes.
	CRC uint32
	// PreloadLength is the declared preload byte count. The serializer
	// refuses to emit an entry whose Preload slice disagrees with it.
	PreloadLength uint16
	// ArchiveIndex selects the archive part, or IndexDir for inline payload.
	ArchiveIndex uint16
	// Offset is the payload offset: relative to the directory data region
	// when ArchiveIndex is IndexDir, absolute within the part otherwise.
	Offset uint32
	// Length is the non-preload payload length in bytes.
	Length uint32
	// Parts is the Respawn chunk list; nil for classic dialects.
	Parts []FilePart
	// Preload is the inline blob stored next to the descriptor.
	Preload []byte
}

// TotalSize returns the full logical file size: preload plus payload.
func (e *Entry) TotalSize() int64 {
	size := int64(len(e.Preload))
	if len(e.Parts) > 0 {
		for i := range e.Parts {
			size += int64(e.Parts[i].UncompressedLength)
		}
		return size
	}

	return size + int64(e.Length)
}

// IsInline reports whether the payload lives in the directory file itself.
func (e *Entry) IsInline() bool {
	return len(e.Parts) == 0 && e.ArchiveIndex == IndexDir
}

// EntryRef is one leaf of the directory tree with its key triple.
type EntryRef struct {
	// Extension is the stored extension key (" " for none).
	Extension string
	// Path is the stored directory key (" " for root).
	Path string
	// Name is the stored file name without extension.
	Name string
	// Entry is the leaf descriptor.
	Entry *Entry
}

// FullPath returns the joined "path/name.ext" form of the key triple.
func (r EntryRef) FullPath() string {
	return joinEntryPath(r.Extension, r.Path, r.Name)
}

// LoadOptions configures directory parsing.
type LoadOptions struct {
	// FilterExtension narrows the parsed tree to one extension; preload
	// bytes of skipped entries are discarded, not loaded.
	FilterExtension string
	// MaxStringLen bounds tree strings; zero means the default limit.
	MaxStringLen int
}

// applyDefaults fills zero-valued load options with defaults.
func (opts *LoadOptions) applyDefaults() {
	if opts.MaxStringLen <= 0 {
		opts.MaxStringLen = maxTreeString
	}
}

// ResolveOptions configures entry data resolution.
type ResolveOptions struct {
	// VerifyCRC checks resolved bytes against the stored CRC and reports
	// ErrIntegrity on mismatch. Off by default.
	VerifyCRC bool
}

// AudioOptions configures which Respawn entries receive audio decoding.
// Extension dispatch is engine convention, not a format invariant, so the
// rule set is caller-replaceable.
type AudioOptions struct {
	// Rules are ordered path rules selecting audio entries.
	Rules []pathrules.Rule
	// MatcherOptions control rule matching.
	MatcherOptions pathrules.MatcherOptions
}

// applyDefaults fills zero-valued audio options with defaults.
func (opts *AudioOptions) applyDefaults() {
	if len(opts.Rules) == 0 {
		opts.Rules = []pathrules.Rule{
			{Action: pathrules.ActionInclude, Pattern: "*.wav"},
		}
	}

	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.MatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.MatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}
