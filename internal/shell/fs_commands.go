package shell

import (
	"fmt"
	"path"
	"strings"

	"vshell/internal/core"
)

// placeholderTime stands in for modification times, which are not tracked.
const placeholderTime = "Jan  1 00:00"

// LsCommand lists a directory.
type LsCommand struct {
	All  bool
	Long bool
	Path string
}

func parseLs(args []string) (Command, error) {
	c := &LsCommand{}
	var operands []string
	for _, arg := range args {
		if !isFlag(arg) {
			operands = append(operands, arg)
			continue
		}
		for _, r := range arg[1:] {
			switch r {
			case 'a':
				c.All = true
			case 'l':
				c.Long = true
			default:
				return nil, argErr(VerbLs, "invalid option -- '%c'", r)
			}
		}
	}

	switch len(operands) {
	case 0:
	case 1:
		c.Path = operands[0]
	default:
		return nil, argErr(VerbLs, "too many arguments")
	}
	return c, nil
}

func (c *LsCommand) Verb() Verb { return VerbLs }

func (c *LsCommand) run(in *Interpreter, out *output) error {
	entries, err := in.tree.List(c.Path, core.ListOptions{ShowHidden: c.All, Long: c.Long})
	if err != nil {
		return out.fail(VerbLs, c.Path, err)
	}

	if !c.Long {
		if len(entries) == 0 {
			return nil
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Display()
		}
		out.print(strings.Join(names, "  "))
		return nil
	}

	for _, e := range entries {
		mode := "rw-r--r--"
		if e.IsDir {
			mode = "rwxr-xr-x"
		}
		out.print(fmt.Sprintf("%c%s 1 %s %s %6d %s %s",
			e.TypeFlag(), mode, in.session.Username, in.session.Username,
			e.Size, placeholderTime, e.Display()))
	}
	return nil
}

// CdCommand changes the current directory.
type CdCommand struct {
	Path string
}

func parseCd(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return &CdCommand{Path: "~"}, nil
	case 1:
		return &CdCommand{Path: args[0]}, nil
	default:
		return nil, argErr(VerbCd, "too many arguments")
	}
}

func (c *CdCommand) Verb() Verb { return VerbCd }

func (c *CdCommand) run(in *Interpreter, out *output) error {
	if err := in.tree.ChangeDirectory(c.Path); err != nil {
		return out.fail(VerbCd, c.Path, err)
	}
	return nil
}

// PwdCommand prints the current directory.
type PwdCommand struct{}

func parsePwd(args []string) (Command, error) {
	if len(args) > 0 {
		return nil, argErr(VerbPwd, "too many arguments")
	}
	return &PwdCommand{}, nil
}

func (c *PwdCommand) Verb() Verb { return VerbPwd }

func (c *PwdCommand) run(in *Interpreter, out *output) error {
	out.print(in.tree.CurrentPath())
	return nil
}

// CatCommand prints files of the current directory.
type CatCommand struct {
	Names []string
}

func parseCat(args []string) (Command, error) {
	if len(args) == 0 {
		return nil, argErr(VerbCat, "missing operand")
	}
	return &CatCommand{Names: args}, nil
}

func (c *CatCommand) Verb() Verb { return VerbCat }

// run resolves each name in the current directory only and keeps going
// after a failure; the last failure is returned.
func (c *CatCommand) run(in *Interpreter, out *output) error {
	var last error
	for _, name := range c.Names {
		node, err := in.tree.Lookup(in.tree.Cwd(), name)
		if err != nil {
			last = out.fail(VerbCat, name, err)
			continue
		}
		f, ok := node.(*core.File)
		if !ok {
			last = out.fail(VerbCat, name, core.ErrIsADirectory)
			continue
		}
		for _, line := range splitLines(f.Content()) {
			out.print(line)
		}
	}
	return last
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

type wcMode int

const (
	wcDefault wcMode = iota
	wcLines
	wcWords
	wcChars
	wcBytes
)

// WcCommand counts files of the current directory.
type WcCommand struct {
	Mode  wcMode
	Names []string
}

// parseWc lets the last flag character win when several are given.
func parseWc(args []string) (Command, error) {
	c := &WcCommand{}
	for _, arg := range args {
		if !isFlag(arg) {
			c.Names = append(c.Names, arg)
			continue
		}
		for _, r := range arg[1:] {
			switch r {
			case 'l':
				c.Mode = wcLines
			case 'w':
				c.Mode = wcWords
			case 'm':
				c.Mode = wcChars
			case 'c':
				c.Mode = wcBytes
			default:
				return nil, argErr(VerbWc, "invalid option -- '%c'", r)
			}
		}
	}
	if len(c.Names) == 0 {
		return nil, argErr(VerbWc, "missing operand")
	}
	return c, nil
}

func (c *WcCommand) Verb() Verb { return VerbWc }

func (c *WcCommand) run(in *Interpreter, out *output) error {
	var (
		total core.Stats
		last  error
	)
	for _, name := range c.Names {
		stats, err := in.tree.StatFile(name)
		if err != nil {
			last = out.fail(VerbWc, name, err)
			continue
		}
		total.Lines += stats.Lines
		total.Words += stats.Words
		total.Chars += stats.Chars
		total.Bytes += stats.Bytes
		out.print(c.row(stats, name))
	}
	if len(c.Names) > 1 {
		out.print(c.row(total, "total"))
	}
	return last
}

func (c *WcCommand) row(s core.Stats, label string) string {
	switch c.Mode {
	case wcLines:
		return fmt.Sprintf("%7d %s", s.Lines, label)
	case wcWords:
		return fmt.Sprintf("%7d %s", s.Words, label)
	case wcChars:
		return fmt.Sprintf("%7d %s", s.Chars, label)
	case wcBytes:
		return fmt.Sprintf("%7d %s", s.Bytes, label)
	default:
		return fmt.Sprintf("%7d %7d %7d %s", s.Lines, s.Words, s.Chars, label)
	}
}

// RmdirCommand removes one empty directory.
type RmdirCommand struct {
	Path string
}

func parseRmdir(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return nil, argErr(VerbRmdir, "missing operand")
	case 1:
		return &RmdirCommand{Path: args[0]}, nil
	default:
		return nil, argErr(VerbRmdir, "too many arguments")
	}
}

func (c *RmdirCommand) Verb() Verb { return VerbRmdir }

func (c *RmdirCommand) run(in *Interpreter, out *output) error {
	parent, name, err := in.split(c.Path)
	if err != nil {
		return out.fail(VerbRmdir, c.Path, err)
	}
	if err := in.tree.RemoveDirectoryAt(parent, name); err != nil {
		return out.fail(VerbRmdir, c.Path, err)
	}
	return nil
}

// CpCommand copies one file. A destination naming an existing directory
// receives the file under its source name.
type CpCommand struct {
	Source string
	Dest   string
}

func parseCp(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return nil, argErr(VerbCp, "missing file operand")
	case 1:
		return nil, argErr(VerbCp, "missing destination file operand after '%s'", args[0])
	case 2:
		return &CpCommand{Source: args[0], Dest: args[1]}, nil
	default:
		return nil, argErr(VerbCp, "too many arguments")
	}
}

func (c *CpCommand) Verb() Verb { return VerbCp }

func (c *CpCommand) run(in *Interpreter, out *output) error {
	srcDir, srcName, err := in.split(c.Source)
	if err != nil {
		return out.fail(VerbCp, c.Source, err)
	}
	// settle the source first; any later failure is the destination's
	src, err := in.tree.Lookup(srcDir, srcName)
	if err != nil {
		return out.fail(VerbCp, c.Source, err)
	}
	if src.IsDir() {
		return out.fail(VerbCp, c.Source, core.ErrIsADirectory)
	}

	dstDir, dstName, target := (*core.Dir)(nil), srcName, c.Dest
	if dir, rerr := in.tree.Resolve(c.Dest); rerr == nil {
		dstDir, target = dir, path.Join(c.Dest, srcName)
	} else if dstDir, dstName, err = in.split(c.Dest); err != nil {
		return out.fail(VerbCp, c.Dest, err)
	}

	if err := in.tree.CopyFileAt(srcDir, srcName, dstDir, dstName); err != nil {
		return out.fail(VerbCp, target, err)
	}
	return nil
}

// MkdirCommand creates directories, keeping existing ones.
type MkdirCommand struct {
	Paths []string
}

func parseMkdir(args []string) (Command, error) {
	if len(args) == 0 {
		return nil, argErr(VerbMkdir, "missing operand")
	}
	return &MkdirCommand{Paths: args}, nil
}

func (c *MkdirCommand) Verb() Verb { return VerbMkdir }

func (c *MkdirCommand) run(in *Interpreter, out *output) error {
	var last error
	for _, p := range c.Paths {
		parent, name, err := in.split(p)
		if err == nil {
			_, err = in.tree.MkdirAt(parent, name)
		}
		if err != nil {
			last = out.fail(VerbMkdir, p, err)
		}
	}
	return last
}

// TouchCommand creates empty files; existing entries are left alone.
type TouchCommand struct {
	Paths []string
}

func parseTouch(args []string) (Command, error) {
	if len(args) == 0 {
		return nil, argErr(VerbTouch, "missing file operand")
	}
	return &TouchCommand{Paths: args}, nil
}

func (c *TouchCommand) Verb() Verb { return VerbTouch }

func (c *TouchCommand) run(in *Interpreter, out *output) error {
	var last error
	for _, p := range c.Paths {
		parent, name, err := in.split(p)
		if err != nil {
			last = out.fail(VerbTouch, p, err)
			continue
		}
		if parent.Child(name) != nil {
			continue
		}
		if _, err := in.tree.CreateFileAt(parent, name, ""); err != nil {
			last = out.fail(VerbTouch, p, err)
		}
	}
	return last
}
