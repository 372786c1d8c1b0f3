// Package bundle packs a run's exports into one deflate zip.
package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Write zips every regular file under root, named by its slash path relative
// to root. Extras are stored at the archive root under their base names. The
// archive itself is skipped if it lives under root. Returns the entry names.
func Write(zipPath, root string, extras ...string) ([]string, error) {
	if err := os.MkdirAll(filepath.Dir(zipPath), 0o755); err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	absZip, err := filepath.Abs(zipPath)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}

	type entry struct{ name, path string }
	var entries []entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absZip {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{name: filepath.ToSlash(rel), path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bundle: walk %s: %w", root, err)
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.name] = true
	}
	for _, x := range extras {
		name := filepath.Base(x)
		if seen[name] {
			continue
		}
		seen[name] = true
		entries = append(entries, entry{name: name, path: x})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	f, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := addFile(zw, e.name, e.path); err != nil {
			zw.Close()
			return nil, fmt.Errorf("bundle: add %s: %w", e.name, err)
		}
		names = append(names, e.name)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	return names, f.Close()
}

func addFile(zw *zip.Writer, name, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
