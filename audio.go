// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pg9182/tf2lzham"
	"github.com/woozymasta/pathrules"
)

const (
	// camEntryMagic marks a valid record in a CAM sidecar file.
	camEntryMagic uint32 = 0xC4DE1A00
	// camEntrySize is the fixed on-disk size of one CAM record.
	camEntrySize = 32

	// wavHeaderSize is the RIFF header length stored ahead of audio data.
	wavHeaderSize = 44
	// wavSampleDepth is the PCM bit depth of Respawn audio.
	wavSampleDepth = 16
	// wavPadByte pads the stored header up to the real sample data.
	wavPadByte = 0xCB

	defaultSampleRate = 44100
)

// CamEntry describes one audio file in a Respawn CAM sidecar. The record
// ties audio parameters to the archive offset of the file's first part.
type CamEntry struct {
	// OriginalSize is the full WAV size including its header.
	OriginalSize uint32
	// CompressedSize is the source OGG size before install-time conversion.
	CompressedSize uint32
	// SampleRate is stored as a 24-bit little-endian value.
	SampleRate uint32
	// Channels is the channel count.
	Channels uint8
	// SampleCount is the number of samples.
	SampleCount uint32
	// HeaderSize is the stored header length, 44 for RIFF WAV.
	HeaderSize uint32
	// ContentOffset is the archive offset of the file's first part.
	ContentOffset uint64
}

// defaultCamEntry derives audio parameters for an entry that has no CAM
// record, assuming 44.1 kHz mono PCM.
func defaultCamEntry(entry *Entry) *CamEntry {
	var original, compressed uint32
	for i := range entry.Parts {
		original += uint32(entry.Parts[i].UncompressedLength)
		compressed += uint32(entry.Parts[i].Length)
	}

	return &CamEntry{
		OriginalSize:   original,
		CompressedSize: compressed,
		SampleRate:     defaultSampleRate,
		Channels:       1,
		SampleCount:    (original - wavHeaderSize + 8) / 2,
		HeaderSize:     wavHeaderSize,
		ContentOffset:  entry.Parts[0].Offset,
	}
}

// Cam is a parsed CAM sidecar, keyed by first-part archive offset.
type Cam struct {
	entries map[uint64]*CamEntry
	order   []*CamEntry
}

// ParseCam parses a CAM sidecar file. Records with an unknown magic are
// skipped; a trailing partial record fails with ErrCorrupt.
func ParseCam(data []byte) (*Cam, error) {
	if len(data)%camEntrySize != 0 {
		return nil, fmt.Errorf("%w: CAM size %d is not a whole number of records",
			ErrCorrupt, len(data))
	}

	cam := &Cam{entries: make(map[uint64]*CamEntry, len(data)/camEntrySize)}
	for off := 0; off < len(data); off += camEntrySize {
		rec := data[off : off+camEntrySize]
		if binary.LittleEndian.Uint32(rec[0:4]) != camEntryMagic {
			continue
		}

		entry := &CamEntry{
			OriginalSize:   binary.LittleEndian.Uint32(rec[4:8]),
			CompressedSize: binary.LittleEndian.Uint32(rec[8:12]),
			SampleRate:     uint32(rec[12]) | uint32(rec[13])<<8 | uint32(rec[14])<<16,
			Channels:       rec[15],
			SampleCount:    binary.LittleEndian.Uint32(rec[16:20]),
			HeaderSize:     binary.LittleEndian.Uint32(rec[20:24]),
			ContentOffset:  binary.LittleEndian.Uint64(rec[24:32]),
		}

		cam.insert(entry)
	}

	return cam, nil
}

// NewCam returns an empty CAM sidecar.
func NewCam() *Cam {
	return &Cam{entries: make(map[uint64]*CamEntry)}
}

func (c *Cam) insert(entry *CamEntry) {
	if _, ok := c.entries[entry.ContentOffset]; !ok {
		c.order = append(c.order, entry)
	}

	c.entries[entry.ContentOffset] = entry
}

// Add stores a record, replacing an earlier one for the same offset.
func (c *Cam) Add(entry *CamEntry) {
	c.insert(entry)
}

// Find returns the record for a first-part archive offset.
func (c *Cam) Find(contentOffset uint64) (*CamEntry, bool) {
	entry, ok := c.entries[contentOffset]
	return entry, ok
}

// Len returns the number of records.
func (c *Cam) Len() int {
	return len(c.entries)
}

// Bytes serializes the sidecar back to its on-disk form in insertion
// order.
func (c *Cam) Bytes() []byte {
	out := make([]byte, 0, len(c.order)*camEntrySize)
	for _, entry := range c.order {
		var rec [camEntrySize]byte
		binary.LittleEndian.PutUint32(rec[0:4], camEntryMagic)
		binary.LittleEndian.PutUint32(rec[4:8], entry.OriginalSize)
		binary.LittleEndian.PutUint32(rec[8:12], entry.CompressedSize)
		rec[12] = byte(entry.SampleRate)
		rec[13] = byte(entry.SampleRate >> 8)
		rec[14] = byte(entry.SampleRate >> 16)
		rec[15] = entry.Channels
		binary.LittleEndian.PutUint32(rec[16:20], entry.SampleCount)
		binary.LittleEndian.PutUint32(rec[20:24], entry.HeaderSize)
		binary.LittleEndian.PutUint64(rec[24:32], entry.ContentOffset)
		out = append(out, rec[:]...)
	}

	return out
}

// wavHeader synthesizes a 44-byte RIFF header for 16-bit PCM audio.
func wavHeader(entry *CamEntry) []byte {
	header := make([]byte, wavHeaderSize)

	dataLen := 2 * entry.SampleCount * uint32(entry.Channels)
	bytesPerSec := entry.SampleRate * wavSampleDepth * uint32(entry.Channels) / 8
	blockAlign := uint16(wavSampleDepth * uint16(entry.Channels) / 8)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], dataLen-8+wavHeaderSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(entry.Channels))
	binary.LittleEndian.PutUint32(header[24:28], entry.SampleRate)
	binary.LittleEndian.PutUint32(header[28:32], bytesPerSec)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], wavSampleDepth)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)

	return header
}

// audioMatcher holds compiled rules selecting audio entries by path.
type audioMatcher struct {
	matcher *pathrules.Matcher
}

// newAudioMatcher compiles audio path rules.
func newAudioMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*audioMatcher, error) {
	rules = normalizeAudioRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile audio rules: %w", ErrValidation, err)
	}

	return &audioMatcher{matcher: matcher}, nil
}

// normalizeAudioRules normalizes rule patterns and drops empty patterns.
func normalizeAudioRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := NormalizePath(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether path is selected by at least one audio rule.
func (m *audioMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := NormalizePath(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// ReadAudio resolves the entry at fullPath and, when the audio rules
// select it, rebuilds a playable WAV from the Respawn audio layout: a
// synthesized RIFF header followed by sample data with the stored padded
// header stripped. Entries the rules do not select resolve as plain
// bytes. CAM sidecars are keyed by the archive index of the entry's
// first part; a missing sidecar or record falls back to derived
// parameters.
func (d *Directory) ReadAudio(fullPath string, reg *Registry, cams map[uint16]*Cam, opts AudioOptions) ([]byte, error) {
	if !Supports(d.Dialect(), OpAudio) {
		return nil, fmt.Errorf("%w: %s has no audio sub-format", ErrUnsupported, d.Dialect())
	}

	entry, ok := d.Lookup(fullPath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, fullPath)
	}

	opts.applyDefaults()
	matcher, err := newAudioMatcher(opts.Rules, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	if !matcher.Match(fullPath) {
		return d.Resolve(entry, reg, ResolveOptions{})
	}

	data, err := d.decodeAudio(entry, reg, cams)
	if err != nil {
		return nil, fmt.Errorf("decode audio %s: %w", fullPath, err)
	}

	return data, nil
}

// decodeAudio rebuilds the WAV byte stream for an audio entry.
func (d *Directory) decodeAudio(entry *Entry, reg *Registry, cams map[uint16]*Cam) ([]byte, error) {
	if len(entry.Parts) == 0 {
		return nil, fmt.Errorf("%w: entry has no file parts", ErrNoAudioInfo)
	}

	total, err := entryResolveSize(entry)
	if err != nil {
		return nil, err
	}
	if total+wavHeaderSize > math.MaxInt32 && math.MaxInt == math.MaxInt32 {
		return nil, fmt.Errorf("%w: entry of %d bytes on 32-bit platform", ErrOutOfBounds, total)
	}

	camEntry := lookupCamEntry(entry, cams)

	out := make([]byte, 0, total+wavHeaderSize)
	out = append(out, entry.Preload...)
	out = append(out, wavHeader(camEntry)...)

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

		// The first part carries the stored header plus 0xCB padding
		// ahead of the real sample data.
		if i == 0 {
			skip, err := storedHeaderLen(raw)
			if err != nil {
				return nil, fmt.Errorf("part %d: %w", i, err)
			}

			raw = raw[skip:]
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

	if camEntry.OriginalSize > 0 && uint64(len(out)) > uint64(camEntry.OriginalSize) {
		out = out[:camEntry.OriginalSize]
	}

	return out, nil
}

// lookupCamEntry finds the sidecar record for the entry's first part, or
// derives default parameters when none exists.
func lookupCamEntry(entry *Entry, cams map[uint16]*Cam) *CamEntry {
	first := &entry.Parts[0]
	if cam, ok := cams[first.ArchiveIndex]; ok && cam != nil {
		if rec, ok := cam.Find(first.Offset); ok {
			return rec
		}
	}

	return defaultCamEntry(entry)
}

// storedHeaderLen measures the stored WAV header including its padding:
// 44 header bytes, then every consecutive pad byte.
func storedHeaderLen(raw []byte) (int, error) {
	if len(raw) < wavHeaderSize {
		return 0, fmt.Errorf("%w: %d bytes is shorter than a stored audio header",
			ErrCodec, len(raw))
	}

	skip := wavHeaderSize
	for skip < len(raw) && raw[skip] == wavPadByte {
		skip++
	}

	return skip, nil
}
