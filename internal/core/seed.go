package core

import (
	"fmt"
	"strings"
)

// SeedEntry is one directory or file to create, addressed by its absolute
// path. Missing parent directories are created on the way.
type SeedEntry struct {
	Path    string
	Dir     bool
	Content string
}

// DefaultSeed is the structure every tree starts with when no external
// directory is given.
var DefaultSeed = []SeedEntry{
	{Path: "/motd", Content: "Welcome to vshell!\nType 'help' to list the available commands.\n"},

	{Path: "/home/user", Dir: true},
	{Path: "/home/user/readme.txt", Content: "This is the readme file in your home directory.\n"},
	{Path: "/home/user/notes.txt", Content: "shopping list\n  milk\n  bread\n  coffee beans"},
	{Path: "/home/user/empty.txt", Content: ""},
	{Path: "/home/user/.profile", Content: "export PATH=$PATH:/home/user/bin\n"},
	{Path: "/home/user/documents/report.txt", Content: "Quarterly report\nline 1\nline 2\n"},
	{Path: "/home/user/documents/todo.md", Content: "# TODO\n- review report\n- clean up tmp\n"},
	{Path: "/home/user/dir_with_files/data.csv", Content: "id,name\n1,alpha\n2,beta\n"},
	{Path: "/home/user/dir_with_files/log.txt", Content: "started\nstopped\n"},
	{Path: "/home/user/empty_dir", Dir: true},

	{Path: "/etc/hostname", Content: "vshell\n"},
	{Path: "/etc/config.conf", Content: "# configuration\nsetting1=value1\nsetting2=value2\n"},
	{Path: "/var/log/syslog", Content: "2024-01-01 10:00:00 INFO: System started\n2024-01-01 10:01:00 INFO: Services loaded\n"},
	{Path: "/tmp", Dir: true},
}

// Seed creates every entry of seed relative to the root. It stops at the
// first conflicting entry.
func (t *Tree) Seed(seed []SeedEntry) error {
	for _, e := range seed {
		dirPath, name := SplitPath(e.Path)
		parent, err := t.mkdirAll(dirPath)
		if err != nil {
			return fmt.Errorf("seed %s: %w", e.Path, err)
		}
		if name == "" {
			continue
		}

		if e.Dir {
			_, err = t.MkdirAt(parent, name)
		} else {
			_, err = t.CreateFileAt(parent, name, e.Content)
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", e.Path, err)
		}
	}
	return nil
}

// mkdirAll creates every directory along the absolute path.
func (t *Tree) mkdirAll(path string) (*Dir, error) {
	cur := t.root
	for _, seg := range strings.Split(path, Separator) {
		if seg == "" {
			continue
		}
		next, err := t.MkdirAt(cur, seg)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
