// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import "errors"

// Sentinel errors for VPK operations. Use errors.Is in callers.
var (
	// ErrCorrupt means the directory stream violates the binary grammar:
	// bad magic/version, missing terminator, or truncated data.
	ErrCorrupt = errors.New("corrupt VPK directory")
	// ErrMissingSource means an entry references an archive index with no
	// registered byte source. Other entries remain resolvable.
	ErrMissingSource = errors.New("archive source not registered")
	// ErrIntegrity means a caller-invoked checksum verification failed.
	ErrIntegrity = errors.New("checksum mismatch")
	// ErrCodec means a Respawn compressed chunk failed to decode.
	ErrCodec = errors.New("chunk decode failed")
	// ErrValidation means the serializer was given inconsistent data and
	// refused to emit output.
	ErrValidation = errors.New("directory validation failed")
	// ErrEntryNotFound means the entry is not present in the tree.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNilSource means a required byte source is nil.
	ErrNilSource = errors.New("byte source is nil")
	// ErrClosed means the byte source or directory is already closed.
	ErrClosed = errors.New("source already closed")
	// ErrOutOfBounds means a read past the end of a byte source.
	ErrOutOfBounds = errors.New("read out of bounds")
	// ErrUnsupported means the operation is not supported for the dialect.
	ErrUnsupported = errors.New("operation not supported for dialect")
	// ErrNameTooLong means a tree string exceeds the dialect limit.
	ErrNameTooLong = errors.New("tree string exceeds maximum length")
	// ErrInvalidEntryPath means an entry path is empty or malformed.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrMmapUnsupported means memory mapping is unavailable on this platform.
	ErrMmapUnsupported = errors.New("memory mapping not supported on this platform")
	// ErrNoAudioInfo means no CAM record exists for an entry and no default
	// could be derived.
	ErrNoAudioInfo = errors.New("no audio metadata for entry")
)
