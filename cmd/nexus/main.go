// Command nexus is the shell's CLI entrypoint: cobra root/serve/init
// commands plus the NEXUS_* environment variable contract spec.md
// section 6 names.
//
// Grounded on cmd/root.go's "Execute() called once from main.main()"
// convention.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nexusshell/nexus/internal/config"
)

func main() {
	os.Exit(run())
}

// run executes the CLI and maps the result to spec.md section 6's
// exit code contract: 0 success, 1 failure, 130 interrupted (the
// POSIX 128+SIGINT convention).
func run() int {
	if err := Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			return 130
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

var errInterrupted = errors.New("interrupted")

// applyEnvOverrides layers spec.md section 6's NEXUS_* environment
// variables on top of a loaded Configuration, env taking precedence
// over the file (the usual "flags > env > file" precedence, with no
// flag-level equivalent for these four).
func applyEnvOverrides(cfg *config.Configuration) {
	if v := os.Getenv("NEXUS_DEBUG"); v != "" {
		cfg.Shell.EnableDebug = v == "1" || v == "true"
	}
	if v := os.Getenv("NEXUS_MAX_MEMORY"); v != "" {
		if n, err := config.ParseMaxMemoryEnv(v); err == nil {
			cfg.Shell.MaxMemory = n
		}
	}
	// NEXUS_PLUGIN_PATH and NEXUS_JS_PATH name search paths for the
	// (out-of-scope) plugin loader and script library resolver. Nothing
	// in this module consumes them: they are read and discarded, and
	// the configuration is left unchanged.
	_ = os.Getenv("NEXUS_PLUGIN_PATH")
	_ = os.Getenv("NEXUS_JS_PATH")
}
