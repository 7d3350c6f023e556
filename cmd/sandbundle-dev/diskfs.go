package main

import (
	"io/fs"
	"os"
	"path/filepath"

	"tractor.dev/sandbundle/vfs"
)

// loadDirIntoFS walks dir and writes every regular file's contents into
// fsys under its path relative to dir, the CLI-side counterpart to the
// browser main thread reading File objects into the project FS.
func loadDirIntoFS(fsys *vfs.FS, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return fsys.WriteFile(filepath.ToSlash(rel), string(data))
	})
}

// flushFSToDir writes every record under prefix back to dir on disk,
// creating parent directories as needed.
func flushFSToDir(fsys *vfs.FS, prefix, dir string) error {
	for p, rec := range fsys.Records() {
		if prefix != "" && len(p) < len(prefix) {
			continue
		}
		if prefix != "" && p[:len(prefix)] != prefix {
			continue
		}
		target := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(rec.Contents), 0644); err != nil {
			return err
		}
	}
	return nil
}
