// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import "encoding/binary"

// Detect sniffs the dialect of a directory file from its first eight
// bytes. Short input, a wrong signature, or an unknown version all
// report DialectUnknown; Detect never fails.
func Detect(src ByteSource) Dialect {
	if src == nil {
		return DialectUnknown
	}

	var head [8]byte
	if _, err := src.ReadAt(head[:], 0); err != nil {
		return DialectUnknown
	}

	sig := binary.LittleEndian.Uint32(head[0:4])
	version := binary.LittleEndian.Uint32(head[4:8])

	dialect, err := identifyDialect(sig, version)
	if err != nil {
		return DialectUnknown
	}

	return dialect
}

// DetectBytes sniffs the dialect of an in-memory directory image.
func DetectBytes(data []byte) Dialect {
	if len(data) < 8 {
		return DialectUnknown
	}

	return Detect(NewBytesSource(data))
}
