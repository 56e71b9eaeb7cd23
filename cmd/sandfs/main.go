package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/AnishMulay/sandfs/internal/config"
	"github.com/AnishMulay/sandfs/servers/mount"
	"github.com/AnishMulay/sandfs/servers/posix"
	"github.com/AnishMulay/sandfs/servers/wire"
	"go.uber.org/multierr"
)

const usage = `usage: sandfs <command> [flags]

commands:
  serve    serve the image over the configured transport
  mount    mount the image with FUSE
  format   create a fresh image
  stat     print superblock and usage of the image`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cmd, args := os.Args[1], os.Args[2:]
	flags := flag.NewFlagSet(cmd, flag.ExitOnError)
	var (
		configPath = flags.String("config", "sandfs.yaml", "Path to the YAML config (created if missing)")
		image      = flags.String("image", "", "Disk image path (overrides config)")
		listen     = flags.String("listen", "", "Listen address for serve (overrides config)")
		mountpoint = flags.String("mountpoint", "", "Mountpoint for mount (overrides config)")
		logLevel   = flags.String("log-level", "", "Minimum log level (overrides config)")
		force      = flags.Bool("force", false, "Let format replace an existing image")
	)
	_ = flags.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *image != "" {
		cfg.Image.Path = *image
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	switch cmd {
	case "serve":
		server, err := posix.Build(posix.Options{Config: cfg, ListenAddr: *listen})
		if err != nil {
			log.Fatalf("Failed to build server: %v", err)
		}
		if err := server.Run(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case "mount":
		server, err := mount.Build(mount.Options{Config: cfg, Mountpoint: *mountpoint})
		if err != nil {
			log.Fatalf("Failed to build mount: %v", err)
		}
		if err := server.Run(); err != nil {
			log.Fatalf("Mount failed: %v", err)
		}
	case "format":
		if err := format(cfg, *force); err != nil {
			log.Fatalf("Format failed: %v", err)
		}
	case "stat":
		if err := stat(cfg); err != nil {
			log.Fatalf("Stat failed: %v", err)
		}
	default:
		log.Fatalf("Unknown command: %s\n%s", cmd, usage)
	}
}

func format(cfg *config.Config, force bool) (err error) {
	if _, statErr := os.Stat(cfg.Image.Path); statErr == nil {
		if !force {
			return fmt.Errorf("%s already exists, pass -force to replace it", cfg.Image.Path)
		}
		if err := os.Remove(cfg.Image.Path); err != nil {
			return err
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return statErr
	}

	ls, closeLog, err := wire.Logger(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeLog()) }()

	fs, bs, err := wire.Storage(cfg, ls)
	if err != nil {
		return err
	}
	if err := fs.Start(); err != nil {
		return err
	}
	sb := bs.Superblock()
	fmt.Printf("formatted %s: fsid=%s blocks=%d block_size=%d\n", cfg.Image.Path, sb.FsID, sb.BlockCount, sb.BlockSize)
	return fs.Stop()
}

func stat(cfg *config.Config) (err error) {
	if _, err := os.Stat(cfg.Image.Path); err != nil {
		return err
	}

	ls, closeLog, err := wire.Logger(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeLog()) }()

	fs, bs, err := wire.Storage(cfg, ls)
	if err != nil {
		return err
	}
	if err := fs.Start(); err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, fs.Stop()) }()

	stats, err := fs.StatFs(context.Background())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(map[string]any{
		"image":      cfg.Image.Path,
		"superblock": bs.Superblock(),
		"usage":      stats,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
