package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/fpgaminer/titanvolume"
	"github.com/fpgaminer/titanvolume/internal/cliconfig"
	"github.com/fpgaminer/titanvolume/internal/keyfile"
)

const statHelp = `Usage: tsvctl stat --path <file> --key-file <file> [options]

  --path           Backing file to inspect (required unless set in --config)
  --key-file       Key file to read (required unless set in --config)
  --audit-db       Corruption audit database [default: none, or --config's value]
  --recent         Number of recent corruption events to print [default: 10]
  --config         YAML config file supplying defaults for the above
`

type statOptions struct {
	path        string
	keyFilePath string
	auditDBPath string
	recent      int
}

func parseStatFlags(args []string) (statOptions, int) {
	flagSet := flag.NewFlagSet("stat", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	path := flagSet.String("path", "", "Backing file to inspect")
	keyFilePath := flagSet.String("key-file", "", "Key file to read")
	auditDBPath := flagSet.String("audit-db", "", "Corruption audit database")
	recent := flagSet.Int("recent", 10, "Number of recent corruption events to print")
	configPath := flagSet.String("config", "", "YAML config file supplying defaults")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fmt.Fprint(os.Stderr, statHelp)
			return statOptions{}, 0
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return statOptions{}, 2
	}

	if *configPath != "" {
		cfg, err := cliconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return statOptions{}, 1
		}
		if !flagSet.Changed("path") && cfg.Volume.Path != "" {
			*path = cfg.Volume.Path
		}
		if !flagSet.Changed("key-file") && cfg.Volume.KeyFilePath != "" {
			*keyFilePath = cfg.Volume.KeyFilePath
		}
		if !flagSet.Changed("audit-db") && cfg.AuditDBPath != "" {
			*auditDBPath = cfg.AuditDBPath
		}
	}

	if *path == "" || *keyFilePath == "" {
		fmt.Fprintln(os.Stderr, "error: --path and --key-file are required")
		fmt.Fprint(os.Stderr, statHelp)
		return statOptions{}, 2
	}

	return statOptions{
		path:        *path,
		keyFilePath: *keyFilePath,
		auditDBPath: *auditDBPath,
		recent:      *recent,
	}, -1
}

func cmdStat(args []string) int {
	opts, code := parseStatFlags(args)
	if code >= 0 {
		return code
	}

	keys, err := keyfile.Load(opts.keyFilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	dev, err := titanvolume.NewFileBackingDevice(opts.path, 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer dev.Close()

	var sessionOpts []titanvolume.Option
	var audit titanvolume.AuditLog
	if opts.auditDBPath != "" {
		audit, err = titanvolume.NewSQLiteAuditLog(opts.auditDBPath, 1024)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		defer audit.Close()
		sessionOpts = append(sessionOpts, titanvolume.WithAuditLog(audit))
	}

	session, err := titanvolume.Open(dev, keys, sessionOpts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer session.Close()

	params := session.Params()
	fmt.Printf("path:           %s\n", opts.path)
	fmt.Printf("sector size:    %d bytes\n", params.SectorSize)
	fmt.Printf("sector count:   %d\n", params.SectorCount)
	fmt.Printf("volume size:    %s\n", humanize.Bytes(params.VolumeSize()))
	fmt.Printf("device size:    %s\n", humanize.Bytes(params.TotalDeviceSize()))
	fmt.Printf("corruption events this session: %d\n", session.CorruptionCount())

	if audit != nil {
		events, err := audit.Recent(opts.recent)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		fmt.Printf("recent corruption events (%d):\n", len(events))
		for _, ev := range events {
			fmt.Printf("  %s  sector=%d replica=%d at=%s  %s\n",
				ev.ID, ev.Sector, ev.Replica, ev.DetectedAt.Format("2006-01-02T15:04:05Z"), ev.Context)
		}
	}

	return 0
}
