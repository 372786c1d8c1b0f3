// Package naming fixes the file names every run writes so that downstream
// packaging can rely on a predictable layout.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forPelevin/takecut/internal/domain/timerange"
)

const defaultExt = ".mp4"

// Ext returns the source extension including the dot, ".mp4" when absent.
func Ext(source string) string {
	if ext := filepath.Ext(source); ext != "" {
		return ext
	}
	return defaultExt
}

// Stem is the base name without extension.
func Stem(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SegmentFile is segment_{ordinal:03d}_{start:.1f}s-{end:.1f}s{ext}.
func SegmentFile(ordinal int, r timerange.Range, ext string) string {
	return fmt.Sprintf("segment_%03d_%.1fs-%.1fs%s", ordinal, r.Start, r.End, ext)
}

// EditedPath places "<stem>_edited<ext>" next to the source.
func EditedPath(source string) string {
	return filepath.Join(filepath.Dir(source), Stem(source)+"_edited"+Ext(source))
}

// PartFile is {stem}_part_{n:02d}{ext}, n starting at 1.
func PartFile(stem string, n int, ext string) string {
	return fmt.Sprintf("%s_part_%02d%s", stem, n, ext)
}

// CutFile is {stem}_{int(start)}-{int(end)}{ext}; fractions are truncated.
func CutFile(stem string, r timerange.Range, ext string) string {
	return fmt.Sprintf("%s_%d-%d%s", stem, int(r.Start), int(r.End), ext)
}
