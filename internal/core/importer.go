package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// ImportSummary counts what Import materialized.
type ImportSummary struct {
	Dirs   int
	Files  int
	Binary int
}

// Import copies the directory tree found at root in fsys under the current
// directory of t. Directories that already exist are merged, files are
// overwritten. Content that is not valid UTF-8 is replaced by a placeholder.
//
// Errors for single entries do not stop the walk; they are collected and
// returned together wrapped in ErrImportFailure.
func Import(t *Tree, fsys afero.Fs, root string) (ImportSummary, error) {
	var sum ImportSummary

	info, err := fsys.Stat(root)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrImportFailure, err)
	}
	if !info.IsDir() {
		return sum, fmt.Errorf("%w: %s: %w", ErrImportFailure, root, ErrNotADirectory)
	}

	var errs []error
	importDir(t, fsys, root, t.cwd, &sum, &errs)
	if len(errs) > 0 {
		return sum, fmt.Errorf("%w: %w", ErrImportFailure, errors.Join(errs...))
	}
	return sum, nil
}

func importDir(t *Tree, fsys afero.Fs, src string, dst *Dir, sum *ImportSummary, errs *[]error) {
	infos, err := afero.ReadDir(fsys, src)
	if err != nil {
		*errs = append(*errs, err)
		return
	}

	for _, info := range infos {
		childPath := filepath.Join(src, info.Name())

		if info.IsDir() {
			dir, err := t.MkdirAt(dst, info.Name())
			if err != nil {
				*errs = append(*errs, fmt.Errorf("%s: %w", childPath, err))
				continue
			}
			sum.Dirs++
			importDir(t, fsys, childPath, dir, sum, errs)
			continue
		}

		// symlinks, devices and sockets have no counterpart in the tree
		if !info.Mode().IsRegular() {
			continue
		}

		data, err := afero.ReadFile(fsys, childPath)
		if err != nil {
			*errs = append(*errs, err)
			continue
		}

		content := string(data)
		if !utf8.Valid(data) {
			content = BinaryPlaceholder(info.Name())
			sum.Binary++
		}
		if _, err := t.CreateFileAt(dst, info.Name(), content); err != nil {
			*errs = append(*errs, fmt.Errorf("%s: %w", childPath, err))
			continue
		}
		sum.Files++
	}
}

// BinaryPlaceholder is the content stored for a file that is not text.
func BinaryPlaceholder(name string) string {
	return fmt.Sprintf("[binary file: %s]", name)
}
