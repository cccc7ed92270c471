package shell

import (
	"strings"
)

// Verb names a command. Only the verbs listed in the command table exist.
type Verb string

const (
	VerbLs    Verb = "ls"
	VerbCd    Verb = "cd"
	VerbPwd   Verb = "pwd"
	VerbCat   Verb = "cat"
	VerbEcho  Verb = "echo"
	VerbUname Verb = "uname"
	VerbWc    Verb = "wc"
	VerbRmdir Verb = "rmdir"
	VerbCp    Verb = "cp"
	VerbMkdir Verb = "mkdir"
	VerbTouch Verb = "touch"
	VerbHelp  Verb = "help"
	VerbExit  Verb = "exit"
)

// Command is a parsed command line with typed arguments.
type Command interface {
	Verb() Verb
	run(in *Interpreter, out *output) error
}

type verbSpec struct {
	verb  Verb
	usage string
	help  string
	parse func(args []string) (Command, error)
}

var (
	// commands is the complete command table in help order.
	commands     []verbSpec
	commandIndex map[Verb]*verbSpec
)

// The table is built in init because help reads it back.
func init() {
	commands = []verbSpec{
		{VerbLs, "ls [-al] [path]", "list directory contents", parseLs},
		{VerbCd, "cd [path]", "change the current directory (default ~)", parseCd},
		{VerbPwd, "pwd", "print the current directory", parsePwd},
		{VerbCat, "cat file...", "print file contents", parseCat},
		{VerbEcho, "echo [text...]", "print the arguments", parseEcho},
		{VerbUname, "uname [-asnrm]", "print system information", parseUname},
		{VerbWc, "wc [-lwmc] file...", "count lines, words and characters", parseWc},
		{VerbRmdir, "rmdir dir", "remove an empty directory", parseRmdir},
		{VerbCp, "cp source dest", "copy a file", parseCp},
		{VerbMkdir, "mkdir dir...", "create directories", parseMkdir},
		{VerbTouch, "touch file...", "create empty files", parseTouch},
		{VerbHelp, "help [command]", "show this help", parseHelp},
		{VerbExit, "exit [code]", "leave the shell", parseExit},
	}

	commandIndex = make(map[Verb]*verbSpec, len(commands))
	for i := range commands {
		commandIndex[commands[i].verb] = &commands[i]
	}
}

// LookupVerb reports whether name is a known verb.
func LookupVerb(name string) (Verb, bool) {
	spec, ok := commandIndex[Verb(name)]
	if !ok {
		return "", false
	}
	return spec.verb, true
}

// Verbs returns all known verbs in help order.
func Verbs() []Verb {
	verbs := make([]Verb, len(commands))
	for i, c := range commands {
		verbs[i] = c.verb
	}
	return verbs
}

// Parse splits line on whitespace and builds the typed command for its
// verb. An empty line yields a nil command and a nil error.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	spec, ok := commandIndex[Verb(fields[0])]
	if !ok {
		return nil, &UnknownCommandError{Verb: fields[0]}
	}
	return spec.parse(fields[1:])
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}
