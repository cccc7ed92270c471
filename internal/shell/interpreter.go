// Package shell turns command lines into operations on a core.Tree.
//
// The interpreter performs no I/O: every call to Execute returns the output
// lines, an optional structured error and an Event describing the call,
// and the caller decides how to render or record them.
package shell

import (
	"strings"
	"time"

	"vshell/internal/core"
)

// Interpreter executes command lines against one tree. Like the tree it is
// not safe for concurrent use.
type Interpreter struct {
	tree    *core.Tree
	session Session
	now     func() time.Time
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithClock replaces the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) {
		in.now = now
	}
}

// New creates an interpreter for tree.
func New(tree *core.Tree, session Session, opts ...Option) *Interpreter {
	in := &Interpreter{
		tree:    tree,
		session: session,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Tree returns the tree commands operate on.
func (in *Interpreter) Tree() *core.Tree {
	return in.tree
}

// Session returns the session identity.
func (in *Interpreter) Session() Session {
	return in.session
}

// Prompt renders the prompt for the current directory.
func (in *Interpreter) Prompt() string {
	return in.session.Prompt(in.tree.CurrentPath())
}

// Execute parses and runs one command line. Blank lines are a no-op.
func (in *Interpreter) Execute(line string) Outcome {
	cmd, err := Parse(line)
	if cmd == nil && err == nil {
		return Outcome{}
	}

	verb := Verb(strings.Fields(line)[0])
	path := in.tree.CurrentPath()
	out := &output{}

	if err != nil {
		out.fail(verb, "", err)
	} else {
		err = cmd.run(in, out)
	}

	o := Outcome{
		Lines:    out.lines,
		Exit:     out.exit,
		ExitCode: out.exitCode,
		Event: Event{
			Time:    in.now().UTC(),
			Verb:    string(verb),
			Message: strings.TrimSpace(line),
			Path:    path,
		},
	}
	if err != nil {
		o.Err = &CommandError{
			Verb:    string(verb),
			Kind:    KindOf(err),
			Message: out.lastDiag,
			Path:    path,
		}
		o.Event.Error = out.lastDiag
		o.Event.Kind = o.Err.Kind
	}
	return o
}

// split resolves the directory part of a path operand and returns it with
// the final name.
func (in *Interpreter) split(operand string) (*core.Dir, string, error) {
	dirPath, name := core.SplitPath(operand)
	if name == "" || name == "." || name == ".." {
		return nil, "", core.ErrInvalidName
	}
	if dirPath == "" {
		return in.tree.Cwd(), name, nil
	}
	dir, err := in.tree.Resolve(dirPath)
	if err != nil {
		return nil, "", err
	}
	return dir, name, nil
}
