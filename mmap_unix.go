// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

//go:build unix

package vpk

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// MmapSource is a read-only memory-mapped ByteSource. The mapping is shared
// and immutable, so one MmapSource is safe for concurrent readers, and Slice
// returns borrowed views with no copy.
type MmapSource struct {
	data   []byte
	mu     sync.Mutex
	closed bool
}

// OpenMmap maps a file path read-only as a ByteSource.
// An empty file maps to an empty source without a kernel mapping.
func OpenMmap(path string) (*MmapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	if fi.Size() == 0 {
		return &MmapSource{}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap archive: %w", err)
	}

	return &MmapSource{data: data}, nil
}

// ReadAt implements io.ReaderAt over the mapping.
func (s *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	if off < 0 || off > int64(len(s.data)) {
		return 0, fmt.Errorf("%w: offset %d", ErrOutOfBounds, off)
	}

	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// Len returns the mapped length in bytes.
func (s *MmapSource) Len() int64 {
	return int64(len(s.data))
}

// Slice returns a borrowed view into the mapping without copying.
// The view is invalidated by Close.
func (s *MmapSource) Slice(off, n int64) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off+n > int64(len(s.data)) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d", ErrOutOfBounds, n, off)
	}

	return s.data[off : off+n : off+n], nil
}

// Close unmaps the file. Safe to call twice.
func (s *MmapSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.data == nil {
		return nil
	}

	data := s.data
	s.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap archive: %w", err)
	}

	return nil
}

// isClosed reports whether Close was already called.
func (s *MmapSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}
