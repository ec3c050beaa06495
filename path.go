// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/vpk

package vpk

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath converts an input path to normalized slash-separated form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/",
// and cleans "." segments.
func NormalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, `\`, `/`)
	raw = strings.TrimPrefix(raw, "./")
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// splitEntryPath splits a joined "path/name.ext" form into the tree key
// triple. Missing directory and extension map to the on-disk root mark.
func splitEntryPath(fullPath string) (ext, dir, name string, err error) {
	normalized := NormalizePath(fullPath)
	if normalized == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidEntryPath, fullPath)
	}

	dir = rootPathMark
	base := normalized
	if idx := strings.LastIndexByte(normalized, '/'); idx >= 0 {
		dir = normalized[:idx]
		base = normalized[idx+1:]
	}

	ext = rootPathMark
	name = base
	if idx := strings.LastIndexByte(base, '.'); idx > 0 && idx < len(base)-1 {
		name = base[:idx]
		ext = base[idx+1:]
	}

	if name == "" {
		return "", "", "", fmt.Errorf("%w: %q has no file name", ErrInvalidEntryPath, fullPath)
	}

	return ext, dir, name, nil
}

// joinEntryPath joins a tree key triple back to "path/name.ext" form.
// Root marks for directory and extension are dropped.
func joinEntryPath(ext, dir, name string) string {
	full := name
	if ext != rootPathMark && ext != "" {
		full += "." + ext
	}
	if dir != rootPathMark && dir != "" {
		full = dir + "/" + full
	}

	return full
}
