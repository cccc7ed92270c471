package shell

import (
	"strings"
	"time"
)

// Line is one line of command output. Err marks diagnostics.
type Line struct {
	Text string `json:"text"`
	Err  bool   `json:"err,omitempty"`
}

// CommandError is the structured form of a failed command.
type CommandError struct {
	Verb    string `json:"verb"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Event is the record of one executed command, ready to be forwarded to a
// log sink.
type Event struct {
	Time    time.Time `json:"time"`
	Verb    string    `json:"verb"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	Kind    string    `json:"kind,omitempty"`
	Path    string    `json:"path"`
}

// Outcome is everything Execute produced for one command line.
type Outcome struct {
	Lines    []Line        `json:"lines"`
	Err      *CommandError `json:"error,omitempty"`
	Exit     bool          `json:"exit,omitempty"`
	ExitCode int           `json:"exit_code,omitempty"`
	Event    Event         `json:"-"`
}

// Noop reports whether the line was empty and nothing ran.
func (o Outcome) Noop() bool {
	return o.Event.Verb == ""
}

// Text joins all output lines, diagnostics included.
func (o Outcome) Text() string {
	texts := make([]string, len(o.Lines))
	for i, l := range o.Lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}

// output collects the lines of a running command.
type output struct {
	lines    []Line
	lastDiag string
	exit     bool
	exitCode int
}

func (o *output) print(text string) {
	o.lines = append(o.lines, Line{Text: text})
}

// fail records a diagnostic line for err and returns err.
func (o *output) fail(verb Verb, operand string, err error) error {
	o.lastDiag = diagnostic(string(verb), operand, err)
	o.lines = append(o.lines, Line{Text: o.lastDiag, Err: true})
	return err
}
