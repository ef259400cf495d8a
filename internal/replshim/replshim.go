// Package replshim is a thin REPL front-end over the Kernel: it reads
// lines with github.com/chzyer/readline, hands each to Kernel.Execute,
// and prints the result or error. Line editing and history management
// are explicitly out of the core's scope, so this stays a thin
// collaborator rather than a component the core depends on.
//
// Grounded on reusee-tai/cmd/taigo/repl.go's readline.NewEx +
// Readline() loop around a single Exec(vm, line) call.
package replshim

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"

	"github.com/nexusshell/nexus/internal/nexuserr"
	"github.com/nexusshell/nexus/internal/value"
)

// Executor is the narrow surface the REPL needs from the Kernel.
// Defined here, rather than depending on internal/kernel directly, so
// replshim stays usable against anything that can run a line.
type Executor interface {
	Execute(ctx context.Context, line string) (value.Value, error)
}

// Options configures Run.
type Options struct {
	Prompt      string
	HistoryFile string
	Stdout      io.Writer
	Stderr      io.Writer
}

// DefaultHistoryFile returns "~/.nexus_history", or "" if the home
// directory can't be determined.
func DefaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nexus_history")
}

// Run drives an interactive read-eval-print loop against exec until
// the user sends Ctrl-D/Ctrl-C or ctx is cancelled. It returns nil on
// a clean exit (EOF/interrupt), or an error if the line editor itself
// failed to start.
func Run(ctx context.Context, exec Executor, opts Options) error {
	if opts.Prompt == "" {
		opts.Prompt = "nexus> "
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      opts.Prompt,
		HistoryFile: opts.HistoryFile,
		Stdout:      opts.Stdout,
		Stderr:      opts.Stderr,
	})
	if err != nil {
		return nexuserr.Wrap(nexuserr.KindInternal, err, "failed to start line editor")
	}
	defer rl.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil { // io.EOF (Ctrl-D) or readline.ErrInterrupt (Ctrl-C)
			return nil
		}
		if line == "" {
			continue
		}

		result, err := exec.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "error: %v\n", err)
			continue
		}
		if !result.IsNull() {
			fmt.Fprintln(opts.Stdout, formatValue(result))
		}
	}
}

// formatValue renders a Value for REPL display. Grounded on
// taigo/repl.go's "print the result unless it's nil" convention,
// extended to the richer Value variants the engine can return.
func formatValue(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return v.AsString()
	case value.KindBytes:
		return string(v.AsBytes())
	case value.KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.KindInt:
		return fmt.Sprintf("%d", v.AsInt())
	case value.KindFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case value.KindList:
		items := v.AsList()
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = formatValue(item)
		}
		return fmt.Sprintf("%v", out)
	case value.KindMap:
		return fmt.Sprintf("%v", mapToStrings(v.AsMap()))
	case value.KindHandle:
		return fmt.Sprintf("<handle %d>", v.AsHandle())
	default:
		return ""
	}
}

func mapToStrings(m map[string]value.Value) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = formatValue(v)
	}
	return out
}
