package vfs

import (
	"archive/tar"
	"bytes"
	"io"
	"time"
)

// ExportTar archives every stored file into a tar stream. The vfs has no
// directory entities, so every header is a regular file.
func (fsys *FS) ExportTar(w io.Writer) error {
	tw := tar.NewWriter(w)
	for p, rec := range fsys.Records() {
		hdr := &tar.Header{
			Name:    p,
			Mode:    0644,
			Size:    int64(len(rec.Contents)),
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write([]byte(rec.Contents)); err != nil {
			return err
		}
	}
	return tw.Close()
}

// ImportTar populates the FS from a tar stream, decoding each entry as
// UTF-8 text before storing it.
func (fsys *FS) ImportTar(r io.Reader) error {
	tr := tar.NewReader(r)
	files := make(map[string]Record)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return err
		}
		files[hdr.Name] = Record{Path: hdr.Name, Contents: buf.String()}
	}
	return fsys.SetFiles(files)
}
