// Package builtins implements the shell's native built-in commands:
// the dispatch tier the Execution Engine tries after alias resolution
// and before falling back to an external process.
//
// Grounded on core/shell_builtins.go's ShellBuiltin registry and
// commands/{pwd,echo,wc}.go's per-command structure, generalized from
// "write to an io.Writer, return an int exit code" to "return a
// value.Value", matching engine.Builtin's contract. Flag parsing keeps
// the teacher's github.com/pborman/getopt/v2 rather than switching to
// the stdlib flag package the way a couple of the teacher's own
// commands (pwd.go) do — getopt is the more consistently used option
// across commands/, so it is the one generalized here.
package builtins

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	getopt "github.com/pborman/getopt/v2"

	"github.com/nexusshell/nexus/internal/engine"
	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/value"
)

// Register adds every built-in this package implements to e.
func Register(e *engine.Engine) {
	e.RegisterBuiltin("pwd", Pwd{})
	e.RegisterBuiltin("cd", Cd{})
	e.RegisterBuiltin("echo", Echo{})
	e.RegisterBuiltin("ls", Ls{})
	e.RegisterBuiltin("env", Env{})
	e.RegisterBuiltin("wc", Wc{})
}

// parseFlags runs opts against ctx.Args, prefixing the built-in's own
// name so getopt's positional-argument skip (it assumes args[0] is the
// program name, per os.Args convention) lines up correctly, since
// engine.Context.Args holds only the arguments, not the command name.
func parseFlags(name string, args []string, opts *getopt.Set) error {
	helpOpt := opts.BoolLong("help", 'h', "show help and exit")
	if err := opts.Getopt(append([]string{name}, args...), nil); err != nil {
		return nexuserr.Wrap(nexuserr.KindInvalidArgument, err, "failed to parse "+name+" arguments")
	}
	if *helpOpt {
		var b strings.Builder
		fmt.Fprintf(&b, "usage: %s\n", name)
		opts.PrintOptions(&b)
		return nexuserr.New(nexuserr.KindInvalidArgument, b.String())
	}
	return nil
}

// Pwd implements the "pwd" built-in: print the current working
// directory. Grounded on commands/pwd.go.
type Pwd struct{}

func (Pwd) Run(ctx *engine.Context) (value.Value, error) {
	opts := getopt.New()
	if err := parseFlags("pwd", ctx.Args, opts); err != nil {
		return value.Null(), err
	}
	return value.String(ctx.Cwd), nil
}

// Cd implements the "cd" built-in: change the shared shell state's
// working directory, defaulting to $HOME with no argument. Grounded on
// core/shell_builtins.go's Cd.
type Cd struct{}

func (Cd) Run(ctx *engine.Context) (value.Value, error) {
	opts := getopt.New()
	if err := parseFlags("cd", ctx.Args, opts); err != nil {
		return value.Null(), err
	}

	args := opts.Args()
	target := ctx.Env["HOME"]
	switch len(args) {
	case 0:
	case 1:
		target = args[0]
	default:
		return value.Null(), nexuserr.New(nexuserr.KindInvalidArgument, "cd: too many arguments")
	}
	if target == "" {
		target = "/"
	}

	if err := ctx.Bridge.NativeChdir(target); err != nil {
		return value.Null(), nexuserr.Wrap(nexuserr.KindNotFound, err, "cd: "+target)
	}
	return value.Null(), nil
}

// Echo implements a limited "echo": join its arguments with single
// spaces, optionally interpreting backslash escapes with -e. Grounded
// on commands/echo.go.
type Echo struct{}

var echoEscapes = strings.NewReplacer(
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
	`\\`, `\`,
	`\b`, "\b",
	`\a`, "\a",
	`\f`, "\f",
	`\v`, "\v",
)

func (Echo) Run(ctx *engine.Context) (value.Value, error) {
	opts := getopt.New()
	escaped := opts.Bool('e', "interpret backslash escapes")
	if err := parseFlags("echo", ctx.Args, opts); err != nil {
		return value.Null(), err
	}

	args := opts.Args()
	if *escaped {
		for i, a := range args {
			args[i] = echoEscapes.Replace(a)
		}
	}
	return value.String(strings.Join(args, " ")), nil
}

// Ls implements "ls": list the given directory's entries (or the
// working directory's, with no argument) as a list of maps carrying
// name, size, and isDir, sorted by name. Grounded on the directory
// listing shape of bridge/fs.go's fsListDir, the native-Go twin of
// which is Bridge.NativeReadDir.
type Ls struct{}

func (Ls) Run(ctx *engine.Context) (value.Value, error) {
	opts := getopt.New()
	if err := parseFlags("ls", ctx.Args, opts); err != nil {
		return value.Null(), err
	}

	path := ctx.Cwd
	if args := opts.Args(); len(args) > 0 {
		path = args[0]
	}

	entries, err := ctx.Bridge.NativeReadDir(path)
	if err != nil {
		return value.Null(), err
	}

	names := make([]string, 0, len(entries))
	byName := make(map[string]value.Value, len(entries))
	for _, info := range entries {
		names = append(names, info.Name())
		byName[info.Name()] = value.Map(map[string]value.Value{
			"name":  value.String(info.Name()),
			"size":  value.Int(info.Size()),
			"isDir": value.Bool(info.IsDir()),
		})
	}
	sort.Strings(names)

	out := make([]value.Value, 0, len(names))
	for _, n := range names {
		out = append(out, byName[n])
	}
	return value.List(out), nil
}

// Env implements "env": print the process environment as a map (no
// arguments) or look up a single variable (one argument). Grounded on
// core/shell_builtins.go's environment-inspecting builtins.
type Env struct{}

func (Env) Run(ctx *engine.Context) (value.Value, error) {
	opts := getopt.New()
	if err := parseFlags("env", ctx.Args, opts); err != nil {
		return value.Null(), err
	}

	args := opts.Args()
	if len(args) == 1 {
		v, ok := ctx.Env[args[0]]
		if !ok {
			return value.Null(), nil
		}
		return value.String(v), nil
	}
	if len(args) > 1 {
		return value.Null(), nexuserr.New(nexuserr.KindInvalidArgument, "env: too many arguments")
	}

	out := make(map[string]value.Value, len(ctx.Env))
	for k, v := range ctx.Env {
		out[k] = value.String(v)
	}
	return value.Map(out), nil
}

// Wc implements "wc": count lines, words, characters and bytes of its
// pipeline input (or of a named file). Grounded on commands/wc.go's
// wcCount, restated to operate on a value.Value's payload rather than
// streaming from an io.Reader, since built-ins receive their input as
// a whole Value rather than a file descriptor.
type Wc struct{}

func (Wc) Run(ctx *engine.Context) (value.Value, error) {
	opts := getopt.New()
	linesOnly := opts.Bool('l', "print the newline counts")
	wordsOnly := opts.Bool('w', "print the word counts")
	charsOnly := opts.Bool('m', "print the character counts")
	bytesOnly := opts.Bool('c', "print the byte counts")
	if err := parseFlags("wc", ctx.Args, opts); err != nil {
		return value.Null(), err
	}

	var text string
	if args := opts.Args(); len(args) > 0 {
		data, err := ctx.Bridge.NativeReadFile(args[0])
		if err != nil {
			return value.Null(), err
		}
		text = string(data)
	} else if !ctx.PipelineInput.IsNull() {
		text = coerceToText(ctx.PipelineInput)
	}

	lines, words, chars, bytes := countText(text)

	switch {
	case *linesOnly:
		return value.Int(int64(lines)), nil
	case *wordsOnly:
		return value.Int(int64(words)), nil
	case *charsOnly:
		return value.Int(int64(chars)), nil
	case *bytesOnly:
		return value.Int(int64(bytes)), nil
	}

	return value.Map(map[string]value.Value{
		"lines": value.Int(int64(lines)),
		"words": value.Int(int64(words)),
		"chars": value.Int(int64(chars)),
		"bytes": value.Int(int64(bytes)),
	}), nil
}

func coerceToText(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return v.AsString()
	case value.KindBytes:
		return string(v.AsBytes())
	default:
		return ""
	}
}

func countText(s string) (lines, words, chars, bytes int) {
	bytes = len(s)
	inSpace := true
	for _, r := range s {
		chars++
		if r == '\n' {
			lines++
		}
		if unicode.IsSpace(r) {
			inSpace = true
		} else {
			if inSpace {
				words++
			}
			inSpace = false
		}
	}
	return
}
