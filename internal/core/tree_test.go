package core

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helpers

func assertInvariants(t *testing.T, d *Dir) {
	t.Helper()
	for name, child := range d.children {
		assert.Equal(t, name, child.Name(), "child key and name differ")
		assert.Same(t, d, child.Parent(), "parent link of %s", name)
		if sub, ok := child.(*Dir); ok {
			require.NotNil(t, sub.children)
			assertInvariants(t, sub)
		}
	}
}

func entryNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func mustCd(t *testing.T, tree *Tree, path string) {
	t.Helper()
	require.NoError(t, tree.ChangeDirectory(path))
}

// Tests

func TestNewTree(t *testing.T) {
	tree := NewTree()

	assert.Equal(t, "", tree.Root().Name())
	assert.Nil(t, tree.Root().Parent())
	assert.True(t, tree.Root().IsDir())
	assert.Same(t, tree.Root(), tree.Cwd())
	assert.Equal(t, "/", tree.CurrentPath())
}

func TestDefaultTree(t *testing.T) {
	tree := NewDefaultTree()
	assertInvariants(t, tree.Root())

	t.Run("starts at root", func(t *testing.T) {
		assert.Equal(t, "/", tree.CurrentPath())
	})

	t.Run("system directories exist", func(t *testing.T) {
		for _, p := range []string{"/etc", "/var", "/tmp", "/home/user", "/home/user/documents"} {
			_, err := tree.Resolve(p)
			assert.NoError(t, err, p)
		}
	})

	t.Run("home holds an empty file", func(t *testing.T) {
		home, err := tree.Resolve(HomePath)
		require.NoError(t, err)
		f, ok := home.Child("empty.txt").(*File)
		require.True(t, ok)
		assert.Equal(t, "", f.Content())
	})

	t.Run("motd", func(t *testing.T) {
		motd, ok := tree.Motd()
		assert.True(t, ok)
		assert.Contains(t, motd, "Welcome")
	})
}

func TestMkdir(t *testing.T) {
	t.Run("creates a child", func(t *testing.T) {
		tree := NewTree()
		dir, err := tree.Mkdir("docs")
		require.NoError(t, err)

		assert.Equal(t, "docs", dir.Name())
		assert.Same(t, tree.Root(), dir.Parent())
		assert.Equal(t, 0, dir.Len())
		assertInvariants(t, tree.Root())
	})

	t.Run("returns existing directory unchanged", func(t *testing.T) {
		tree := NewTree()
		first, err := tree.Mkdir("docs")
		require.NoError(t, err)
		_, err = tree.CreateFileAt(first, "a.txt", "a")
		require.NoError(t, err)

		second, err := tree.Mkdir("docs")
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, second.Len())
	})

	t.Run("existing file is a conflict", func(t *testing.T) {
		tree := NewTree()
		_, err := tree.CreateFile("docs", "")
		require.NoError(t, err)

		_, err = tree.Mkdir("docs")
		assert.ErrorIs(t, err, ErrNameConflict)
	})

	t.Run("file parent is invalid", func(t *testing.T) {
		tree := NewTree()
		f, err := tree.CreateFile("a.txt", "")
		require.NoError(t, err)

		_, err = tree.MkdirAt(f, "sub")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("rejects names with separators", func(t *testing.T) {
		tree := NewTree()
		for _, name := range []string{"", ".", "..", "a/b"} {
			_, err := tree.Mkdir(name)
			assert.ErrorIs(t, err, ErrInvalidName, name)
		}
		assert.Equal(t, 0, tree.Root().Len())
	})
}

func TestCreateFile(t *testing.T) {
	t.Run("creates with content", func(t *testing.T) {
		tree := NewTree()
		f, err := tree.CreateFile("a.txt", "hello")
		require.NoError(t, err)
		assert.Equal(t, "hello", f.Content())
		assert.False(t, f.IsDir())
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		tree := NewTree()
		_, err := tree.CreateFile("a.txt", "old")
		require.NoError(t, err)
		f, err := tree.CreateFile("a.txt", "new")
		require.NoError(t, err)

		assert.Equal(t, "new", f.Content())
		assert.Equal(t, 1, tree.Root().Len())
	})

	t.Run("does not replace a directory", func(t *testing.T) {
		tree := NewTree()
		_, err := tree.Mkdir("docs")
		require.NoError(t, err)

		_, err = tree.CreateFile("docs", "x")
		assert.ErrorIs(t, err, ErrIsADirectory)
		assert.True(t, tree.Root().Child("docs").IsDir())
	})

	t.Run("file parent is invalid", func(t *testing.T) {
		tree := NewTree()
		f, err := tree.CreateFile("a.txt", "")
		require.NoError(t, err)

		_, err = tree.CreateFileAt(f, "b.txt", "")
		assert.ErrorIs(t, err, ErrInvalidParent)
	})
}

func TestRemoveDirectory(t *testing.T) {
	t.Run("removes empty directory", func(t *testing.T) {
		tree := NewDefaultTree()
		mustCd(t, tree, HomePath)
		_, err := tree.Mkdir("scratch")
		require.NoError(t, err)

		require.NoError(t, tree.RemoveDirectory("scratch"))
		assert.Nil(t, tree.Cwd().Child("scratch"))
	})

	t.Run("non-empty directory is refused", func(t *testing.T) {
		tree := NewDefaultTree()
		mustCd(t, tree, HomePath)

		err := tree.RemoveDirectory("dir_with_files")
		assert.ErrorIs(t, err, ErrNotEmpty)
		assert.NotNil(t, tree.Cwd().Child("dir_with_files"))
	})

	t.Run("every directory with entries is refused", func(t *testing.T) {
		tree := NewDefaultTree()
		var walk func(d *Dir)
		walk = func(d *Dir) {
			for _, child := range d.Children() {
				sub, ok := child.(*Dir)
				if !ok {
					continue
				}
				err := tree.RemoveDirectoryAt(d, sub.Name())
				if sub.Len() > 0 {
					assert.ErrorIs(t, err, ErrNotEmpty, PathOf(sub))
					walk(sub)
				} else {
					assert.NoError(t, err, PathOf(sub))
				}
			}
		}
		walk(tree.Root())
	})

	t.Run("missing", func(t *testing.T) {
		tree := NewTree()
		assert.ErrorIs(t, tree.RemoveDirectory("nope"), ErrNotFound)
	})

	t.Run("file is not a directory", func(t *testing.T) {
		tree := NewTree()
		_, err := tree.CreateFile("a.txt", "")
		require.NoError(t, err)
		assert.ErrorIs(t, tree.RemoveDirectory("a.txt"), ErrNotADirectory)
	})

	t.Run("current directory is busy", func(t *testing.T) {
		tree := NewTree()
		_, err := tree.Mkdir("work")
		require.NoError(t, err)
		mustCd(t, tree, "/work")

		err = tree.RemoveDirectoryAt(tree.Root(), "work")
		assert.ErrorIs(t, err, ErrBusy)
		assert.Equal(t, "/work", tree.CurrentPath())
	})
}

func TestCopyFile(t *testing.T) {
	t.Run("copies content", func(t *testing.T) {
		tree := NewDefaultTree()
		mustCd(t, tree, HomePath)

		require.NoError(t, tree.CopyFile("readme.txt", "readme2.txt"))
		orig := tree.Cwd().Child("readme.txt").(*File)
		cp := tree.Cwd().Child("readme2.txt").(*File)
		assert.Equal(t, orig.Content(), cp.Content())
	})

	t.Run("copy is not an alias", func(t *testing.T) {
		tree := NewTree()
		src, err := tree.CreateFile("a", "first")
		require.NoError(t, err)
		require.NoError(t, tree.CopyFile("a", "b"))

		src.SetContent("changed")
		_, err = tree.CreateFile("a", "changed again")
		require.NoError(t, err)

		assert.Equal(t, "first", tree.Root().Child("b").(*File).Content())
	})

	t.Run("between directories", func(t *testing.T) {
		tree := NewTree()
		docs, err := tree.Mkdir("docs")
		require.NoError(t, err)
		_, err = tree.CreateFile("a", "x")
		require.NoError(t, err)

		require.NoError(t, tree.CopyFileAt(tree.Root(), "a", docs, "a"))
		assert.Equal(t, "x", docs.Child("a").(*File).Content())
	})

	t.Run("missing source", func(t *testing.T) {
		tree := NewTree()
		assert.ErrorIs(t, tree.CopyFile("nope", "b"), ErrNotFound)
		assert.Equal(t, 0, tree.Root().Len())
	})

	t.Run("directory source", func(t *testing.T) {
		tree := NewTree()
		_, err := tree.Mkdir("docs")
		require.NoError(t, err)
		assert.ErrorIs(t, tree.CopyFile("docs", "docs2"), ErrIsADirectory)
	})

	t.Run("directory target", func(t *testing.T) {
		tree := NewTree()
		_, err := tree.Mkdir("docs")
		require.NoError(t, err)
		_, err = tree.CreateFile("a", "x")
		require.NoError(t, err)
		assert.ErrorIs(t, tree.CopyFile("a", "docs"), ErrIsADirectory)
	})
}

func TestChangeDirectory(t *testing.T) {
	t.Run("scenario home", func(t *testing.T) {
		tree := NewDefaultTree()
		mustCd(t, tree, "/home/user")
		assert.Equal(t, "/home/user", tree.CurrentPath())
	})

	t.Run("failure leaves current directory", func(t *testing.T) {
		tree := NewDefaultTree()
		mustCd(t, tree, "/home/user/documents")
		before := tree.Cwd()

		for _, p := range []string{"/nonexistent", "nope", "../nope/..", "/home/user/readme.txt", "report.txt"} {
			err := tree.ChangeDirectory(p)
			assert.ErrorIs(t, err, ErrNotFound, p)
			assert.Same(t, before, tree.Cwd(), p)
		}
		assert.Equal(t, "/home/user/documents", tree.CurrentPath())
	})

	t.Run("every directory round trips", func(t *testing.T) {
		tree := NewDefaultTree()
		var paths []string
		var collect func(d *Dir)
		collect = func(d *Dir) {
			paths = append(paths, PathOf(d))
			for _, c := range d.Children() {
				if sub, ok := c.(*Dir); ok {
					collect(sub)
				}
			}
		}
		collect(tree.Root())
		sort.Strings(paths)

		for _, p := range paths {
			mustCd(t, tree, "/tmp")
			mustCd(t, tree, p)
			assert.Equal(t, p, tree.CurrentPath())

			noisy := strings.ReplaceAll(p, "/", "//./")
			mustCd(t, tree, "/")
			mustCd(t, tree, noisy)
			assert.Equal(t, p, tree.CurrentPath(), noisy)
		}
	})
}

func TestList(t *testing.T) {
	tree := NewDefaultTree()
	mustCd(t, tree, HomePath)

	t.Run("sorted without hidden", func(t *testing.T) {
		entries, err := tree.List("", ListOptions{})
		require.NoError(t, err)
		names := entryNames(entries)
		assert.True(t, sort.StringsAreSorted(names))
		assert.NotContains(t, names, ".profile")
		assert.Contains(t, names, "documents")
	})

	t.Run("hidden on request", func(t *testing.T) {
		entries, err := tree.List("", ListOptions{ShowHidden: true})
		require.NoError(t, err)
		names := entryNames(entries)
		assert.Equal(t, ".profile", names[0])
		assert.True(t, sort.StringsAreSorted(names))
	})

	t.Run("path does not move cwd", func(t *testing.T) {
		entries, err := tree.List("/etc", ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"config.conf", "hostname"}, entryNames(entries))
		assert.Equal(t, HomePath, tree.CurrentPath())
	})

	t.Run("long format sizes", func(t *testing.T) {
		entries, err := tree.List("", ListOptions{Long: true})
		require.NoError(t, err)
		for _, e := range entries {
			switch e.Name {
			case "documents":
				assert.Equal(t, int64(DirSize), e.Size)
				assert.Equal(t, byte('d'), e.TypeFlag())
				assert.Equal(t, "documents/", e.Display())
			case "empty.txt":
				assert.Equal(t, int64(0), e.Size)
				assert.Equal(t, byte('-'), e.TypeFlag())
			}
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		_, err := tree.List("/missing", ListOptions{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStatFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Stats
	}{
		{"empty", "", Stats{}},
		{"one line", "hello world", Stats{Lines: 1, Words: 2, Chars: 11, Bytes: 11}},
		{"trailing newline", "a b\n", Stats{Lines: 2, Words: 2, Chars: 4, Bytes: 4}},
		{"multibyte", "héllo\nwörld", Stats{Lines: 2, Words: 2, Chars: 11, Bytes: 13}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree()
			_, err := tree.CreateFile("f", tt.content)
			require.NoError(t, err)

			got, err := tree.StatFile("f")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len([]byte(tt.content)), got.Bytes)
		})
	}

	t.Run("directory is not found", func(t *testing.T) {
		tree := NewTree()
		_, err := tree.Mkdir("d")
		require.NoError(t, err)
		_, err = tree.StatFile("d")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMotdAbsent(t *testing.T) {
	_, ok := NewTree().Motd()
	assert.False(t, ok)
}

func TestPathError(t *testing.T) {
	err := NewTree().RemoveDirectory("x")

	var pe *PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "rmdir", pe.Op)
	assert.Equal(t, "x", pe.Path)
	assert.Equal(t, "rmdir x: no such file or directory", err.Error())
}
