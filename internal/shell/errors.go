package shell

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"vshell/internal/core"
)

var (
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrUnknownCommand   = errors.New("command not found")
)

// ArgError reports a command line a verb cannot accept.
type ArgError struct {
	Verb  string
	Cause string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: %s", e.Verb, e.Cause)
}

func (e *ArgError) Unwrap() error {
	return ErrInvalidArguments
}

func argErr(verb Verb, format string, args ...any) error {
	return &ArgError{Verb: string(verb), Cause: fmt.Sprintf(format, args...)}
}

// UnknownCommandError carries the verb that matched no command.
type UnknownCommandError struct {
	Verb string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Verb, ErrUnknownCommand)
}

func (e *UnknownCommandError) Unwrap() error {
	return ErrUnknownCommand
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidArguments, "InvalidArguments"},
	{ErrUnknownCommand, "UnknownCommand"},
	{core.ErrNotFound, "NotFound"},
	{core.ErrNotADirectory, "NotADirectory"},
	{core.ErrIsADirectory, "IsADirectory"},
	{core.ErrNotEmpty, "NotEmpty"},
	{core.ErrInvalidParent, "InvalidParent"},
	{core.ErrNameConflict, "NameConflict"},
	{core.ErrInvalidName, "InvalidName"},
	{core.ErrBusy, "Busy"},
	{core.ErrImportFailure, "ImportFailure"},
}

// KindOf names the error kind of err, or "" for nil and unknown errors.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// diagnostic renders err as a single line prefixed by the verb.
func diagnostic(verb, operand string, err error) string {
	var ae *ArgError
	if errors.As(err, &ae) {
		return ae.Error()
	}
	var ue *UnknownCommandError
	if errors.As(err, &ue) {
		return ue.Error()
	}

	cause := err
	var pe *core.PathError
	if errors.As(err, &pe) {
		cause = pe.Err
		if operand == "" {
			operand = pe.Path
		}
	}

	msg := capitalize(cause.Error())
	if operand == "" {
		return fmt.Sprintf("%s: %s", verb, msg)
	}
	return fmt.Sprintf("%s: %s: %s", verb, operand, msg)
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.WriteRune(unicode.ToUpper(r))
	b.WriteString(s[n:])
	return b.String()
}
