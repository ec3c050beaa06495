// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
)

const (
	// v2PublicKeySize is the only public key length observed in the wild.
	v2PublicKeySize = 160
	// v2SignatureSize is the only signature length observed in the wild.
	v2SignatureSize = 128
)

// ArchiveMD5Entry is one v2 archive MD5 record: an expected digest over a
// byte range of one external archive part.
type ArchiveMD5Entry struct {
	// ArchiveIndex selects the archive part to check.
	ArchiveIndex uint32
	// StartingOffset is where the checked range begins.
	StartingOffset uint32
	// Count is the checked range length in bytes.
	Count uint32
	// MD5 is the expected digest of the range.
	MD5 [16]byte
}

// OtherMD5 is the fixed v2 other-MD5 section.
type OtherMD5 struct {
	// TreeMD5 is the digest of the serialized tree bytes.
	TreeMD5 [16]byte
	// ArchiveMD5SectionMD5 is the digest of the archive MD5 section bytes.
	ArchiveMD5SectionMD5 [16]byte
	// Unknown is carried verbatim; its meaning is not documented.
	Unknown [16]byte
}

// SignatureSection is the optional v2 public key + signature block.
type SignatureSection struct {
	// PublicKey is the embedded public key (160 bytes).
	PublicKey []byte
	// Signature is the embedded signature (128 bytes).
	Signature []byte
}

// Integrity holds the v2 trailing sections parsed from a directory file.
type Integrity struct {
	// ArchiveMD5 lists expected digests over external archive ranges.
	ArchiveMD5 []ArchiveMD5Entry
	// OtherMD5 is the fixed self-check section.
	OtherMD5 OtherMD5
	// Signature is nil when the signature section size is zero.
	Signature *SignatureSection
}

// parseIntegrity reads the v2 sections following the file data region.
func parseIntegrity(src ByteSource, header Header) (*Integrity, error) {
	pos := header.size() + int64(header.TreeSize) + int64(header.FileDataSectionSize)

	out := &Integrity{}
	if n := header.ArchiveMD5SectionSize; n > 0 {
		raw, err := readRange(src, pos, int64(n))
		if err != nil {
			return nil, fmt.Errorf("%w: truncated archive MD5 section at offset %d", ErrCorrupt, pos)
		}

		out.ArchiveMD5 = make([]ArchiveMD5Entry, 0, n/archiveMD5EntrySize)
		for off := 0; off < len(raw); off += archiveMD5EntrySize {
			rec := raw[off : off+archiveMD5EntrySize]
			e := ArchiveMD5Entry{
				ArchiveIndex:   binary.LittleEndian.Uint32(rec[0:4]),
				StartingOffset: binary.LittleEndian.Uint32(rec[4:8]),
				Count:          binary.LittleEndian.Uint32(rec[8:12]),
			}
			copy(e.MD5[:], rec[12:28])
			out.ArchiveMD5 = append(out.ArchiveMD5, e)
		}
		pos += int64(n)
	}

	raw, err := readRange(src, pos, otherMD5SectionSize)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated other MD5 section at offset %d", ErrCorrupt, pos)
	}
	copy(out.OtherMD5.TreeMD5[:], raw[0:16])
	copy(out.OtherMD5.ArchiveMD5SectionMD5[:], raw[16:32])
	copy(out.OtherMD5.Unknown[:], raw[32:48])
	pos += otherMD5SectionSize

	if header.SignatureSectionSize == signatureSectionSize {
		raw, err := readRange(src, pos, signatureSectionSize)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated signature section at offset %d", ErrCorrupt, pos)
		}

		if keySize := binary.LittleEndian.Uint32(raw[0:4]); keySize != v2PublicKeySize {
			return nil, fmt.Errorf("%w: public key size %d, want %d", ErrCorrupt, keySize, v2PublicKeySize)
		}
		if sigSize := binary.LittleEndian.Uint32(raw[4+v2PublicKeySize : 8+v2PublicKeySize]); sigSize != v2SignatureSize {
			return nil, fmt.Errorf("%w: signature size %d, want %d", ErrCorrupt, sigSize, v2SignatureSize)
		}

		out.Signature = &SignatureSection{
			PublicKey: append([]byte(nil), raw[4:4+v2PublicKeySize]...),
			Signature: append([]byte(nil), raw[8+v2PublicKeySize:8+v2PublicKeySize+v2SignatureSize]...),
		}
	}

	return out, nil
}

// appendArchiveMD5Section serializes archive MD5 records.
func appendArchiveMD5Section(dst []byte, entries []ArchiveMD5Entry) []byte {
	for i := range entries {
		var rec [archiveMD5EntrySize]byte
		binary.LittleEndian.PutUint32(rec[0:4], entries[i].ArchiveIndex)
		binary.LittleEndian.PutUint32(rec[4:8], entries[i].StartingOffset)
		binary.LittleEndian.PutUint32(rec[8:12], entries[i].Count)
		copy(rec[12:28], entries[i].MD5[:])
		dst = append(dst, rec[:]...)
	}

	return dst
}

// appendSignatureSection serializes the optional signature block.
func appendSignatureSection(dst []byte, sig *SignatureSection) ([]byte, error) {
	if sig == nil {
		return dst, nil
	}
	if len(sig.PublicKey) != v2PublicKeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes, want %d",
			ErrValidation, len(sig.PublicKey), v2PublicKeySize)
	}
	if len(sig.Signature) != v2SignatureSize {
		return nil, fmt.Errorf("%w: signature is %d bytes, want %d",
			ErrValidation, len(sig.Signature), v2SignatureSize)
	}

	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], v2PublicKeySize)
	dst = append(dst, size[:]...)
	dst = append(dst, sig.PublicKey...)
	binary.LittleEndian.PutUint32(size[:], v2SignatureSize)
	dst = append(dst, size[:]...)
	dst = append(dst, sig.Signature...)

	return dst, nil
}

// VerifyTreeMD5 checks the stored v2 tree digest against the directory
// source. Mismatch is reported as ErrIntegrity; the caller decides whether
// to trust the bytes.
func (d *Directory) VerifyTreeMD5() error {
	if d.header.Dialect != DialectV2 || d.integrity == nil {
		return fmt.Errorf("%w: %s has no MD5 sections", ErrUnsupported, d.header.Dialect)
	}

	raw, err := readRange(d.src, d.header.size(), int64(d.header.TreeSize))
	if err != nil {
		return fmt.Errorf("read tree bytes: %w", err)
	}

	if md5.Sum(raw) != d.integrity.OtherMD5.TreeMD5 {
		return fmt.Errorf("%w: tree MD5", ErrIntegrity)
	}

	return nil
}

// VerifyArchiveMD5 checks every stored archive range digest against the
// registered sources. Ranges for unregistered parts fail with
// ErrMissingSource; the first failure is returned.
func (d *Directory) VerifyArchiveMD5(reg *Registry) error {
	if d.header.Dialect != DialectV2 || d.integrity == nil {
		return fmt.Errorf("%w: %s has no MD5 sections", ErrUnsupported, d.header.Dialect)
	}

	for i := range d.integrity.ArchiveMD5 {
		rec := &d.integrity.ArchiveMD5[i]
		if rec.ArchiveIndex > uint32(IndexDir) {
			return fmt.Errorf("%w: archive MD5 record %d has index %d",
				ErrCorrupt, i, rec.ArchiveIndex)
		}

		src, ok := reg.Lookup(uint16(rec.ArchiveIndex))
		if !ok {
			return fmt.Errorf("%w: archive %03d for MD5 record %d", ErrMissingSource, rec.ArchiveIndex, i)
		}

		raw, err := readRange(src, int64(rec.StartingOffset), int64(rec.Count))
		if err != nil {
			return fmt.Errorf("archive %03d MD5 range: %w", rec.ArchiveIndex, err)
		}

		if md5.Sum(raw) != rec.MD5 {
			return fmt.Errorf("%w: archive %03d bytes %d..%d", ErrIntegrity,
				rec.ArchiveIndex, rec.StartingOffset, uint64(rec.StartingOffset)+uint64(rec.Count))
		}
	}

	return nil
}
