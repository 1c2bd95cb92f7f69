package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/fpgaminer/titanvolume"
	"github.com/fpgaminer/titanvolume/internal/keyfile"
)

const shellHelp = `Usage: tsvctl shell --path <file> --key-file <file>

Opens an interactive REPL against the volume. In the shell:

  read <offset> <length>     Print length bytes starting at offset, hex-encoded
  write <offset> <hex>       Write hex-decoded bytes starting at offset
  info                       Print sector geometry and corruption count
  help                       Show this help
  exit / quit                Leave the shell
`

func parseShellFlags(args []string) (path, keyFilePath string, code int) {
	flagSet := flag.NewFlagSet("shell", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	pathFlag := flagSet.String("path", "", "Backing file to open")
	keyFlag := flagSet.String("key-file", "", "Key file to read")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fmt.Fprint(os.Stderr, shellHelp)
			return "", "", 0
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return "", "", 2
	}

	if *pathFlag == "" || *keyFlag == "" {
		fmt.Fprintln(os.Stderr, "error: --path and --key-file are required")
		fmt.Fprint(os.Stderr, shellHelp)
		return "", "", 2
	}

	return *pathFlag, *keyFlag, -1
}

func cmdShell(args []string) int {
	path, keyFilePath, code := parseShellFlags(args)
	if code >= 0 {
		return code
	}

	keys, err := keyfile.Load(keyFilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	dev, err := titanvolume.NewFileBackingDevice(path, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer dev.Close()

	session, err := titanvolume.Open(dev, keys)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer session.Close()

	return runShell(session, path)
}

func runShell(session *titanvolume.Session, path string) int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Printf("tsvctl shell — %s (%d sectors of %d bytes). Type 'help' for commands.\n",
		path, session.Params().SectorCount, session.Params().SectorSize)

	for {
		input, err := line.Prompt("tsv> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return 0
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit":
			return 0
		case "help":
			fmt.Print(shellHelp)
		case "info":
			params := session.Params()
			fmt.Printf("sector size: %d  sector count: %d  corruption events: %d\n",
				params.SectorSize, params.SectorCount, session.CorruptionCount())
		case "read":
			shellRead(session, fields)
		case "write":
			shellWrite(session, fields)
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q — type 'help'\n", fields[0])
		}
	}
}

func shellRead(session *titanvolume.Session, fields []string) {
	if len(fields) != 3 {
		fmt.Fprintln(os.Stderr, "usage: read <offset> <length>")
		return
	}
	offset, err1 := strconv.ParseUint(fields[1], 10, 64)
	length, err2 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil {
		fmt.Fprintln(os.Stderr, "usage: read <offset> <length>")
		return
	}

	buf := make([]byte, length)
	if err := session.Read(offset, buf); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	fmt.Printf("%x\n", buf)
}

func shellWrite(session *titanvolume.Session, fields []string) {
	if len(fields) != 3 {
		fmt.Fprintln(os.Stderr, "usage: write <offset> <hex>")
		return
	}
	offset, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: write <offset> <hex>")
		return
	}

	buf, err := decodeHexArg(fields[2])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}

	if err := session.Write(offset, buf); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	fmt.Println("ok")
}

func decodeHexArg(s string) ([]byte, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return buf, nil
}
