package shell

import (
	"fmt"
	"strconv"
	"strings"
)

// EchoCommand prints its arguments.
type EchoCommand struct {
	Args []string
}

func parseEcho(args []string) (Command, error) {
	return &EchoCommand{Args: args}, nil
}

func (c *EchoCommand) Verb() Verb { return VerbEcho }

func (c *EchoCommand) run(in *Interpreter, out *output) error {
	out.print(strings.Join(c.Args, " "))
	return nil
}

// UnameCommand prints fields of the session's system identity.
type UnameCommand struct {
	System   bool
	Hostname bool
	Release  bool
	Machine  bool
}

func parseUname(args []string) (Command, error) {
	c := &UnameCommand{}
	for _, arg := range args {
		if !isFlag(arg) {
			return nil, argErr(VerbUname, "extra operand '%s'", arg)
		}
		for _, r := range arg[1:] {
			switch r {
			case 'a':
				c.System, c.Hostname, c.Release, c.Machine = true, true, true, true
			case 's':
				c.System = true
			case 'n':
				c.Hostname = true
			case 'r':
				c.Release = true
			case 'm':
				c.Machine = true
			default:
				return nil, argErr(VerbUname, "invalid option -- '%c'", r)
			}
		}
	}
	if !c.Hostname && !c.Release && !c.Machine {
		c.System = true
	}
	return c, nil
}

func (c *UnameCommand) Verb() Verb { return VerbUname }

func (c *UnameCommand) run(in *Interpreter, out *output) error {
	var fields []string
	if c.System {
		fields = append(fields, in.session.System)
	}
	if c.Hostname {
		fields = append(fields, in.session.Hostname)
	}
	if c.Release {
		fields = append(fields, in.session.Release)
	}
	if c.Machine {
		fields = append(fields, in.session.Machine)
	}
	out.print(strings.Join(fields, " "))
	return nil
}

// HelpCommand lists the commands, or describes one.
type HelpCommand struct {
	Topic Verb
}

func parseHelp(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return &HelpCommand{}, nil
	case 1:
		verb, ok := LookupVerb(args[0])
		if !ok {
			return nil, argErr(VerbHelp, "no help topics match '%s'", args[0])
		}
		return &HelpCommand{Topic: verb}, nil
	default:
		return nil, argErr(VerbHelp, "too many arguments")
	}
}

func (c *HelpCommand) Verb() Verb { return VerbHelp }

func (c *HelpCommand) run(in *Interpreter, out *output) error {
	if c.Topic != "" {
		spec := commandIndex[c.Topic]
		out.print(fmt.Sprintf("%s: %s", spec.usage, spec.help))
		return nil
	}

	out.print("Available commands:")
	for _, spec := range commands {
		out.print(fmt.Sprintf("  %-20s %s", spec.usage, spec.help))
	}
	return nil
}

// ExitCommand ends the session. The interpreter only reports it; the
// caller decides what ending means.
type ExitCommand struct {
	Code int
}

func parseExit(args []string) (Command, error) {
	switch len(args) {
	case 0:
		return &ExitCommand{}, nil
	case 1:
		code, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, argErr(VerbExit, "%s: numeric argument required", args[0])
		}
		return &ExitCommand{Code: code}, nil
	default:
		return nil, argErr(VerbExit, "too many arguments")
	}
}

func (c *ExitCommand) Verb() Verb { return VerbExit }

func (c *ExitCommand) run(in *Interpreter, out *output) error {
	out.exit = true
	out.exitCode = c.Code
	return nil
}
