// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

//go:build !unix

package vpk

// OpenMmap is unavailable on this platform; callers fall back to OpenFile.
func OpenMmap(path string) (*MmapSource, error) {
	return nil, ErrMmapUnsupported
}

// MmapSource is a placeholder on platforms without mmap support.
type MmapSource struct{}

// ReadAt always fails on this platform.
func (s *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	return 0, ErrMmapUnsupported
}

// Len returns zero on this platform.
func (s *MmapSource) Len() int64 {
	return 0
}

// Close is a no-op on this platform.
func (s *MmapSource) Close() error {
	return nil
}
