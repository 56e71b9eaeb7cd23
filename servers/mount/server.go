package mount

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/AnishMulay/sandfs/internal/config"
	"github.com/AnishMulay/sandfs/internal/fuse_adapter"
	"github.com/AnishMulay/sandfs/internal/log_service"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
	"github.com/AnishMulay/sandfs/servers/wire"
	"go.uber.org/multierr"
)

var ErrNoMountpoint = errors.New("no mountpoint configured")

type Options struct {
	Config *config.Config
	// Mountpoint overrides the config mountpoint when set.
	Mountpoint string
}

type runnable interface {
	Run() error
}

type mountServer struct {
	mountpoint string
	storage    ss.StorageService
	ls         log_service.LogService
	closeLog   func() error
}

func (s *mountServer) Run() (err error) {
	if err := s.storage.Start(); err != nil {
		return multierr.Append(err, s.closeLog())
	}
	defer func() {
		err = multierr.Combine(err, s.storage.Stop(), s.closeLog())
	}()

	conn, err := fuse.Mount(s.mountpoint, fuse.FSName("sandfs"), fuse.Subtype("sandfs"))
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", s.mountpoint, err)
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	s.ls.Info(log_service.LogEvent{
		Message:  "sandfs mounted",
		Metadata: map[string]any{"mountpoint": s.mountpoint},
	})

	served := make(chan error, 1)
	go func() {
		served <- fs.Serve(conn, fuse_adapter.NewFS(s.storage, s.ls))
	}()

	// Wait for termination signal or for the kernel to drop the mount
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
		if err := fuse.Unmount(s.mountpoint); err != nil {
			return fmt.Errorf("failed to unmount %s: %w", s.mountpoint, err)
		}
		return <-served
	case err := <-served:
		return err
	}
}

func Build(opts Options) (runnable, error) {
	cfg := opts.Config
	mountpoint := cfg.Mount.Mountpoint
	if opts.Mountpoint != "" {
		mountpoint = opts.Mountpoint
	}
	if mountpoint == "" {
		return nil, ErrNoMountpoint
	}

	ls, closeLog, err := wire.Logger(cfg)
	if err != nil {
		return nil, err
	}

	storage, _, err := wire.Storage(cfg, ls)
	if err != nil {
		return nil, multierr.Append(err, closeLog())
	}

	return &mountServer{
		mountpoint: mountpoint,
		storage:    storage,
		ls:         ls,
		closeLog:   closeLog,
	}, nil
}
