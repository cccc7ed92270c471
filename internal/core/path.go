package core

import "strings"

const (
	// Separator delimits path segments.
	Separator = "/"
	// HomePath is the directory "~" resolves to.
	HomePath = "/home/user"
)

// Resolve walks path from the current directory and returns the directory
// it names. Every segment has to be an existing directory; on failure
// nothing is retained and ErrNotFound is returned.
func (t *Tree) Resolve(path string) (*Dir, error) {
	return t.resolveFrom(t.cwd, path, true)
}

func (t *Tree) resolveFrom(start *Dir, path string, allowHome bool) (*Dir, error) {
	if path == Separator {
		return t.root, nil
	}

	cur := start
	if strings.HasPrefix(path, Separator) {
		cur = t.root
	}

	for _, seg := range strings.Split(path, Separator) {
		switch seg {
		case "", ".":
			continue
		case "..":
			if cur.parent != nil {
				cur = cur.parent
			}
		case "~":
			if !allowHome {
				return nil, pathErr("resolve", path, ErrNotFound)
			}
			home, err := t.resolveFrom(t.root, HomePath, false)
			if err != nil {
				return nil, pathErr("resolve", path, ErrNotFound)
			}
			cur = home
		default:
			next, ok := cur.children[seg].(*Dir)
			if !ok {
				return nil, pathErr("resolve", path, ErrNotFound)
			}
			cur = next
		}
	}

	return cur, nil
}

// PathOf returns the absolute path of d. The root is "/".
func PathOf(d *Dir) string {
	var parts []string
	for cur := d; cur != nil && cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	if len(parts) == 0 {
		return Separator
	}

	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString(Separator)
		b.WriteString(parts[i])
	}
	return b.String()
}

// SplitPath separates a path operand into its directory part and final
// name. "a/b/c" yields ("a/b", "c"), "/c" yields ("/", "c") and "c" yields
// ("", "c").
func SplitPath(path string) (dir, name string) {
	trimmed := strings.TrimRight(path, Separator)
	i := strings.LastIndex(trimmed, Separator)
	if i < 0 {
		return "", trimmed
	}
	if i == 0 {
		return Separator, trimmed[1:]
	}
	return trimmed[:i], trimmed[i+1:]
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && name != "~" &&
		!strings.Contains(name, Separator)
}
