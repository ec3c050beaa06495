// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ByteSource is a random-access, length-known byte provider. Buffered and
// memory-mapped implementations are interchangeable: resolution logic only
// ever reads by absolute offset and length.
type ByteSource interface {
	io.ReaderAt
	// Len returns the total source length in bytes.
	Len() int64
	// Close releases the underlying resource.
	Close() error
}

// slicer is an optional ByteSource capability returning borrowed zero-copy
// slices. Slices stay valid until the source is closed.
type slicer interface {
	Slice(off, n int64) ([]byte, error)
}

// readRange reads exactly n bytes at off from src. Mapped sources return a
// borrowed slice; buffered sources copy into a fresh buffer.
func readRange(src ByteSource, off, n int64) ([]byte, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if n < 0 || off < 0 || off+n > src.Len() {
		return nil, fmt.Errorf("%w: %d bytes at offset %d in source of %d bytes",
			ErrOutOfBounds, n, off, src.Len())
	}
	if n == 0 {
		return nil, nil
	}

	if s, ok := src.(slicer); ok {
		return s.Slice(off, n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(io.NewSectionReader(src, off, n), buf); err != nil {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", n, off, err)
	}

	return buf, nil
}

// FileSource is a buffered-file ByteSource backed by an *os.File.
// ReadAt carries no cursor, so one FileSource may serve concurrent readers.
type FileSource struct {
	f      *os.File
	size   int64
	mu     sync.Mutex
	closed bool
}

// OpenFile opens a file path as a ByteSource.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return &FileSource{f: f, size: fi.Size()}, nil
}

// NewFileSource wraps an already opened file. The source takes ownership of
// the handle and closes it on Close.
func NewFileSource(f *os.File) (*FileSource, error) {
	if f == nil {
		return nil, ErrNilSource
	}

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	return &FileSource{f: f, size: fi.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (s *FileSource) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	return s.f.ReadAt(p, off)
}

// Len returns the file size in bytes.
func (s *FileSource) Len() int64 {
	return s.size
}

// Close closes the underlying file. Safe to call twice.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.f.Close()
}

// BytesSource is an in-memory ByteSource, mainly for serialization output
// and tests. It supports zero-copy slicing.
type BytesSource struct {
	data []byte
}

// NewBytesSource wraps a byte slice as a ByteSource.
func NewBytesSource(data []byte) *BytesSource {
	return &BytesSource{data: data}
}

// ReadAt implements io.ReaderAt.
func (s *BytesSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(s.data)) {
		return 0, fmt.Errorf("%w: offset %d", ErrOutOfBounds, off)
	}

	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// Len returns the slice length.
func (s *BytesSource) Len() int64 {
	return int64(len(s.data))
}

// Close is a no-op.
func (s *BytesSource) Close() error {
	return nil
}

// Slice returns a borrowed sub-slice without copying.
func (s *BytesSource) Slice(off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > int64(len(s.data)) {
		return nil, fmt.Errorf("%w: %d bytes at offset %d", ErrOutOfBounds, n, off)
	}

	return s.data[off : off+n : off+n], nil
}

// Registry maps archive indexes to opened byte sources. The caller owns the
// lifecycle: sources are registered as parts are opened and closed together
// on session teardown. Registration is not internally synchronized.
type Registry struct {
	sources map[uint16]ByteSource
}

// NewRegistry returns an empty archive source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[uint16]ByteSource)}
}

// Register binds an archive index to a source, replacing any previous one.
func (r *Registry) Register(index uint16, src ByteSource) {
	if r.sources == nil {
		r.sources = make(map[uint16]ByteSource)
	}

	r.sources[index] = src
}

// Lookup returns the source registered for an archive index.
func (r *Registry) Lookup(index uint16) (ByteSource, bool) {
	if r == nil {
		return nil, false
	}

	src, ok := r.sources[index]
	return src, ok
}

// Close closes every registered source and clears the registry.
// The first error is returned; remaining sources are still closed.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}

	var first error
	for idx, src := range r.sources {
		if err := src.Close(); err != nil && first == nil {
			first = fmt.Errorf("close archive %03d: %w", idx, err)
		}
	}
	r.sources = nil

	return first
}
