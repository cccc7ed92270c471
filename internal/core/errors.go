package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("no such file or directory")
	ErrNotADirectory = errors.New("not a directory")
	ErrIsADirectory  = errors.New("is a directory")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrInvalidParent = errors.New("parent is not a directory")
	ErrNameConflict  = errors.New("file exists")
	ErrInvalidName   = errors.New("invalid name")
	ErrBusy          = errors.New("device or resource busy")
	ErrImportFailure = errors.New("import failed")
	errDanglingCwd   = errors.New("current directory is detached from the root")
)

// PathError records the tree operation and the operand that failed.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

func pathErr(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}
