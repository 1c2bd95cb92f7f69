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

const createHelp = `Usage: tsvctl create --path <file> --key-file <file> [options]

  --path           Backing file to create (required unless set in --config)
  --key-file       Key file to write (required unless set in --config)
  --sector-size    Sector size in bytes [default: 4096]
  --sector-count   Number of sectors [default: 1024]
  --config         YAML config file supplying defaults for the above
`

type createOptions struct {
	path        string
	keyFilePath string
	sectorSize  uint32
	sectorCount uint32
}

func parseCreateFlags(args []string) (createOptions, int) {
	flagSet := flag.NewFlagSet("create", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	path := flagSet.String("path", "", "Backing file to create")
	keyFilePath := flagSet.String("key-file", "", "Key file to write")
	sectorSize := flagSet.Uint32("sector-size", 4096, "Sector size in bytes")
	sectorCount := flagSet.Uint32("sector-count", 1024, "Number of sectors")
	configPath := flagSet.String("config", "", "YAML config file supplying defaults")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			fmt.Fprint(os.Stderr, createHelp)
			return createOptions{}, 0
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		return createOptions{}, 2
	}

	if *configPath != "" {
		cfg, err := cliconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return createOptions{}, 1
		}
		if !flagSet.Changed("path") && cfg.Volume.Path != "" {
			*path = cfg.Volume.Path
		}
		if !flagSet.Changed("key-file") && cfg.Volume.KeyFilePath != "" {
			*keyFilePath = cfg.Volume.KeyFilePath
		}
		if !flagSet.Changed("sector-size") && cfg.Volume.SectorSize != 0 {
			*sectorSize = cfg.Volume.SectorSize
		}
		if !flagSet.Changed("sector-count") && cfg.Volume.SectorCount != 0 {
			*sectorCount = cfg.Volume.SectorCount
		}
	}

	if *path == "" || *keyFilePath == "" {
		fmt.Fprintln(os.Stderr, "error: --path and --key-file are required")
		fmt.Fprint(os.Stderr, createHelp)
		return createOptions{}, 2
	}

	return createOptions{
		path:        *path,
		keyFilePath: *keyFilePath,
		sectorSize:  *sectorSize,
		sectorCount: *sectorCount,
	}, -1
}

func cmdCreate(args []string) int {
	opts, code := parseCreateFlags(args)
	if code >= 0 {
		return code
	}

	params := titanvolume.VolumeParams{SectorSize: opts.sectorSize, SectorCount: opts.sectorCount}

	keys, err := keyfile.Generate()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if err := keyfile.Save(opts.keyFilePath, keys); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	dev, err := titanvolume.NewFileBackingDevice(opts.path, int64(params.TotalDeviceSize()))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer dev.Close()

	session, err := titanvolume.Create(dev, keys, params)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer session.Close()

	fmt.Printf("created %s: %s usable, %s on disk\n",
		opts.path,
		humanize.Bytes(params.VolumeSize()),
		humanize.Bytes(params.TotalDeviceSize()),
	)
	return 0
}
