package core

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DirSize is the size reported for every directory in long listings.
const DirSize = 4096

// Tree is an in-memory directory hierarchy with a current directory.
// It is not safe for concurrent use; callers sharing a Tree must serialize
// access themselves.
type Tree struct {
	root *Dir
	cwd  *Dir
}

// Entry describes one listed child.
type Entry struct {
	Name  string
	IsDir bool
	// Size is only filled in for long listings.
	Size int64
}

// Display returns the name with a trailing "/" for directories.
func (e Entry) Display() string {
	if e.IsDir {
		return e.Name + Separator
	}
	return e.Name
}

// TypeFlag is 'd' for directories and '-' for files.
func (e Entry) TypeFlag() byte {
	if e.IsDir {
		return 'd'
	}
	return '-'
}

// ListOptions control List.
type ListOptions struct {
	ShowHidden bool
	Long       bool
}

// Stats are the counts reported for a file.
type Stats struct {
	Lines int
	Words int
	Chars int
	Bytes int
}

// NewTree returns a tree holding only the root directory.
func NewTree() *Tree {
	root := newDir("", nil)
	return &Tree{root: root, cwd: root}
}

// NewDefaultTree returns a tree populated with DefaultSeed. The current
// directory is left at the root.
func NewDefaultTree() *Tree {
	t := NewTree()
	// DefaultSeed is static and conflict free.
	if err := t.Seed(DefaultSeed); err != nil {
		panic(err)
	}
	return t
}

// Root returns the root directory.
func (t *Tree) Root() *Dir {
	return t.root
}

// Cwd returns the current directory.
func (t *Tree) Cwd() *Dir {
	return t.cwd
}

func asDir(parent Node) (*Dir, bool) {
	d, ok := parent.(*Dir)
	return d, ok && d != nil
}

// Mkdir creates name under the current directory.
func (t *Tree) Mkdir(name string) (*Dir, error) {
	return t.MkdirAt(t.cwd, name)
}

// MkdirAt creates a directory under parent, or returns the existing one of
// the same name unchanged.
func (t *Tree) MkdirAt(parent Node, name string) (*Dir, error) {
	dir, ok := asDir(parent)
	if !ok {
		return nil, pathErr("mkdir", name, ErrInvalidParent)
	}
	if !validName(name) {
		return nil, pathErr("mkdir", name, ErrInvalidName)
	}

	switch existing := dir.children[name].(type) {
	case *Dir:
		return existing, nil
	case *File:
		return nil, pathErr("mkdir", name, ErrNameConflict)
	}

	child := newDir(name, dir)
	dir.attach(child)
	return child, nil
}

// CreateFile creates or overwrites name under the current directory.
func (t *Tree) CreateFile(name, content string) (*File, error) {
	return t.CreateFileAt(t.cwd, name, content)
}

// CreateFileAt creates a file under parent, or replaces the content of the
// existing file of the same name.
func (t *Tree) CreateFileAt(parent Node, name, content string) (*File, error) {
	dir, ok := asDir(parent)
	if !ok {
		return nil, pathErr("create", name, ErrInvalidParent)
	}
	if !validName(name) {
		return nil, pathErr("create", name, ErrInvalidName)
	}

	switch existing := dir.children[name].(type) {
	case *File:
		existing.content = content
		return existing, nil
	case *Dir:
		return nil, pathErr("create", name, ErrIsADirectory)
	}

	f := &File{name: name, content: content}
	dir.attach(f)
	return f, nil
}

// Lookup returns the named child of parent.
func (t *Tree) Lookup(parent Node, name string) (Node, error) {
	dir, ok := asDir(parent)
	if !ok {
		return nil, pathErr("lookup", name, ErrInvalidParent)
	}
	child := dir.children[name]
	if child == nil {
		return nil, pathErr("lookup", name, ErrNotFound)
	}
	return child, nil
}

// RemoveDirectory removes the empty directory name from the current
// directory.
func (t *Tree) RemoveDirectory(name string) error {
	return t.RemoveDirectoryAt(t.cwd, name)
}

// RemoveDirectoryAt removes an empty child directory of parent. The current
// directory and its ancestors can never be removed.
func (t *Tree) RemoveDirectoryAt(parent Node, name string) error {
	dir, ok := asDir(parent)
	if !ok {
		return pathErr("rmdir", name, ErrInvalidParent)
	}

	child, ok := dir.children[name]
	if !ok {
		return pathErr("rmdir", name, ErrNotFound)
	}
	target, ok := child.(*Dir)
	if !ok {
		return pathErr("rmdir", name, ErrNotADirectory)
	}
	if len(target.children) > 0 {
		return pathErr("rmdir", name, ErrNotEmpty)
	}
	if target.isAncestorOf(t.cwd) {
		return pathErr("rmdir", name, ErrBusy)
	}

	delete(dir.children, name)
	target.parent = nil
	return nil
}

// CopyFile duplicates src into dst, both in the current directory.
func (t *Tree) CopyFile(src, dst string) error {
	return t.CopyFileAt(t.cwd, src, t.cwd, dst)
}

// CopyFileAt copies the content of srcParent/src into dstParent/dst,
// creating or overwriting the target file.
func (t *Tree) CopyFileAt(srcParent Node, src string, dstParent Node, dst string) error {
	from, ok := asDir(srcParent)
	if !ok {
		return pathErr("cp", src, ErrInvalidParent)
	}
	to, ok := asDir(dstParent)
	if !ok {
		return pathErr("cp", dst, ErrInvalidParent)
	}

	var source *File
	switch n := from.children[src].(type) {
	case nil:
		return pathErr("cp", src, ErrNotFound)
	case *Dir:
		return pathErr("cp", src, ErrIsADirectory)
	case *File:
		source = n
	}

	if !validName(dst) {
		return pathErr("cp", dst, ErrInvalidName)
	}
	if _, isDir := to.children[dst].(*Dir); isDir {
		return pathErr("cp", dst, ErrIsADirectory)
	}

	_, err := t.CreateFileAt(to, dst, source.content)
	return err
}

// ChangeDirectory moves the current directory to path. On failure the
// current directory is unchanged.
func (t *Tree) ChangeDirectory(path string) error {
	dir, err := t.Resolve(path)
	if err != nil {
		return pathErr("cd", path, ErrNotFound)
	}
	t.cwd = dir
	return nil
}

// CurrentPath returns the absolute path of the current directory.
func (t *Tree) CurrentPath() string {
	t.checkCwd()
	return PathOf(t.cwd)
}

func (t *Tree) checkCwd() {
	cur := t.cwd
	for cur.parent != nil {
		cur = cur.parent
	}
	if cur != t.root {
		panic(errDanglingCwd)
	}
}

// List returns the sorted entries of the directory at path, or of the
// current directory when path is empty.
func (t *Tree) List(path string, opts ListOptions) ([]Entry, error) {
	dir := t.cwd
	if path != "" {
		d, err := t.Resolve(path)
		if err != nil {
			return nil, pathErr("ls", path, ErrNotFound)
		}
		dir = d
	}

	entries := make([]Entry, 0, len(dir.children))
	for name, child := range dir.children {
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		e := Entry{Name: name, IsDir: child.IsDir()}
		if opts.Long {
			e.Size = sizeOf(child)
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

func sizeOf(n Node) int64 {
	if f, ok := n.(*File); ok {
		return int64(len(f.content))
	}
	return DirSize
}

// StatFile counts the file name in the current directory.
func (t *Tree) StatFile(name string) (Stats, error) {
	return t.StatFileAt(t.cwd, name)
}

// StatFileAt counts the content of parent/name. Directories are reported
// as not found.
func (t *Tree) StatFileAt(parent Node, name string) (Stats, error) {
	dir, ok := asDir(parent)
	if !ok {
		return Stats{}, pathErr("stat", name, ErrInvalidParent)
	}
	f, ok := dir.children[name].(*File)
	if !ok {
		return Stats{}, pathErr("stat", name, ErrNotFound)
	}
	return Count(f.content), nil
}

// Count computes the statistics of a text.
func Count(content string) Stats {
	s := Stats{
		Words: len(strings.Fields(content)),
		Chars: utf8.RuneCountInString(content),
		Bytes: len(content),
	}
	if content != "" {
		s.Lines = strings.Count(content, "\n") + 1
	}
	return s
}

// Motd returns the content of /motd when it exists.
func (t *Tree) Motd() (string, bool) {
	f, ok := t.root.children["motd"].(*File)
	if !ok {
		return "", false
	}
	return f.content, true
}
