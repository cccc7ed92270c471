package core

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"time"
)

// ExportSummary counts what WriteZip archived.
type ExportSummary struct {
	Dirs  int
	Files int
	Bytes int64
}

// WriteZip archives the whole tree to w. Every directory gets an explicit
// "name/" entry so empty directories survive, and entries are written in
// name order. Archives written here can be imported again as a seed.
func (t *Tree) WriteZip(w io.Writer, modified time.Time) (ExportSummary, error) {
	var sum ExportSummary
	zw := zip.NewWriter(w)

	if err := compressDir(zw, t.root, "", modified, &sum); err != nil {
		zw.Close()
		return sum, err
	}

	if err := zw.Close(); err != nil {
		return sum, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return sum, nil
}

func compressDir(zw *zip.Writer, dir *Dir, basePath string, modified time.Time, sum *ExportSummary) error {
	children := dir.Children()
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

	for _, child := range children {
		archivePath := path.Join(basePath, child.Name())

		switch n := child.(type) {
		case *Dir:
			header := &zip.FileHeader{Name: archivePath + "/", Method: zip.Store, Modified: modified}
			header.SetMode(fs.ModeDir | 0755)
			if _, err := zw.CreateHeader(header); err != nil {
				return fmt.Errorf("failed to create zip entry %s: %w", archivePath, err)
			}
			sum.Dirs++
			if err := compressDir(zw, n, archivePath, modified, sum); err != nil {
				return err
			}
		case *File:
			if err := addFileToZip(zw, n, archivePath, modified); err != nil {
				return err
			}
			sum.Files++
			sum.Bytes += int64(len(n.content))
		}
	}
	return nil
}

func addFileToZip(zw *zip.Writer, f *File, archivePath string, modified time.Time) error {
	header := &zip.FileHeader{Name: archivePath, Method: zip.Deflate, Modified: modified}
	header.SetMode(0644)

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", archivePath, err)
	}

	if _, err := io.WriteString(writer, f.content); err != nil {
		return fmt.Errorf("failed to write %s to zip: %w", archivePath, err)
	}
	return nil
}

// TotalSize returns the combined size of every file content in the tree.
func (t *Tree) TotalSize() int64 {
	var total int64
	var walk func(d *Dir)
	walk = func(d *Dir) {
		for _, child := range d.children {
			switch n := child.(type) {
			case *File:
				total += int64(len(n.content))
			case *Dir:
				walk(n)
			}
		}
	}
	walk(t.root)
	return total
}
