// Package console drives an interpreter from a terminal or a script file.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"vshell/internal/eventlog"
	"vshell/internal/shell"
)

// CommentPrefix marks script lines that are skipped.
const CommentPrefix = "#"

// Result summarizes a run.
type Result struct {
	Executed int
	Failed   int
	Exited   bool
	ExitCode int
}

// Driver feeds lines to an interpreter, renders the outcomes and forwards
// the events to a sink. Output lines go to out, diagnostics to errOut.
type Driver struct {
	interp *shell.Interpreter
	sink   eventlog.Sink
	out    io.Writer
	errOut io.Writer
}

func NewDriver(interp *shell.Interpreter, sink eventlog.Sink, out, errOut io.Writer) *Driver {
	if sink == nil {
		sink = eventlog.Discard
	}
	return &Driver{
		interp: interp,
		sink:   sink,
		out:    out,
		errOut: errOut,
	}
}

// Greet prints the message of the day, if the tree has one.
func (d *Driver) Greet() {
	motd, ok := d.interp.Tree().Motd()
	if !ok || motd == "" {
		return
	}
	fmt.Fprint(d.out, motd)
	if !strings.HasSuffix(motd, "\n") {
		fmt.Fprintln(d.out)
	}
}

// Exec runs one line and renders its outcome. Sink failures are logged,
// never returned: a broken log must not stop the session.
func (d *Driver) Exec(ctx context.Context, line string) shell.Outcome {
	o := d.interp.Execute(line)
	if o.Noop() {
		return o
	}

	for _, l := range o.Lines {
		w := d.out
		if l.Err {
			w = d.errOut
		}
		fmt.Fprintln(w, l.Text)
	}

	if err := d.sink.Record(ctx, o.Event); err != nil {
		slog.Warn("failed to record event", "verb", o.Event.Verb, "error", err)
	}
	return o
}

// RunScript executes r line by line, echoing each line after the prompt
// like a transcript. Blank lines and comments are skipped. The script
// stops early on exit or when ctx is done.
func (d *Driver) RunScript(ctx context.Context, r io.Reader) (Result, error) {
	return d.run(ctx, r, true)
}

// RunInteractive prints a prompt before reading each line. It returns on
// exit, end of input or as soon as ctx is done, even while waiting for
// input. A line typed as ctx ends is not run.
func (d *Driver) RunInteractive(ctx context.Context, r io.Reader) (Result, error) {
	d.Greet()
	res, err := d.run(ctx, r, false)
	if !res.Exited {
		// end of input leaves the cursor after the prompt
		fmt.Fprintln(d.out)
	}
	return res, err
}

func (d *Driver) run(ctx context.Context, r io.Reader, script bool) (Result, error) {
	var res Result
	lines, readErr := readLines(ctx, r)

	for {
		if !script {
			fmt.Fprint(d.out, d.interp.Prompt())
		}

		var line string
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return res, err
				}
				return res, nil
			}
			line = l
		}
		// a line read just as ctx ended is dropped, not run
		if err := ctx.Err(); err != nil {
			return res, err
		}

		line = strings.TrimSpace(line)
		if script {
			if line == "" || strings.HasPrefix(line, CommentPrefix) {
				continue
			}
			fmt.Fprintf(d.out, "%s%s\n", d.interp.Prompt(), line)
		}

		o := d.Exec(ctx, line)
		if o.Noop() {
			continue
		}
		res.Executed++
		if o.Err != nil {
			res.Failed++
		}
		if o.Exit {
			res.Exited = true
			res.ExitCode = o.ExitCode
			return res, nil
		}
	}
}

// readLines scans r in its own goroutine so that a read blocked on a
// terminal never holds up cancellation. The error channel receives exactly
// one value before lines is closed. A read still blocked when ctx ends is
// abandoned; it returns when r does.
func readLines(ctx context.Context, r io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errc <- fmt.Errorf("failed to read input: %w", err)
			return
		}
		errc <- nil
	}()
	return lines, errc
}
