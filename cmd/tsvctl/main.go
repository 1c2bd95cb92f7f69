// Command tsvctl creates, inspects, and interactively drives titanvolume
// backing files.
package main

import (
	"fmt"
	"log/slog"
	"os"
)

const usage = `Usage: tsvctl <command> [options]

Commands:
  create   Create a new volume and key file
  stat     Print a volume's geometry and recent corruption events
  shell    Open an interactive REPL against a volume

Run 'tsvctl <command> --help' for command-specific options.
`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var code int
	switch cmd {
	case "create":
		code = cmdCreate(args)
	case "stat":
		code = cmdStat(args)
	case "shell":
		code = cmdShell(args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		code = 0
	default:
		fmt.Fprintf(os.Stderr, "tsvctl: unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		code = 2
	}
	os.Exit(code)
}
