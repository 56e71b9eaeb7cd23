package posix

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/AnishMulay/sandfs/internal/config"
	"github.com/AnishMulay/sandfs/internal/log_service"
	posixserver "github.com/AnishMulay/sandfs/internal/posix_server/simple"
	"github.com/AnishMulay/sandfs/servers/wire"
	"go.uber.org/multierr"
)

type Options struct {
	Config *config.Config
	// ListenAddr overrides the config listen address when set.
	ListenAddr string
}

type runnable interface {
	Run() error
}

type singleNodeServer struct {
	server   *posixserver.SimplePosixServer
	ls       log_service.LogService
	closeLog func() error
	stop     chan os.Signal
}

func (s *singleNodeServer) Run() error {
	if err := s.server.Start(); err != nil {
		return multierr.Append(err, s.closeLog())
	}
	s.ls.Info(log_service.LogEvent{
		Message:  "sandfs server listening",
		Metadata: map[string]any{"address": s.server.Address()},
	})

	// Wait for termination signal
	signal.Notify(s.stop, os.Interrupt, syscall.SIGTERM)
	<-s.stop
	signal.Stop(s.stop)

	return multierr.Combine(s.server.Stop(), s.closeLog())
}

func Build(opts Options) (runnable, error) {
	cfg := opts.Config
	listen := cfg.Server.Listen
	if opts.ListenAddr != "" {
		listen = opts.ListenAddr
	}

	// 1. Logging
	ls, closeLog, err := wire.Logger(cfg)
	if err != nil {
		return nil, err
	}

	// 2. Communication
	comm := wire.Communicator(cfg, listen, ls)

	// 3. Storage over the image file
	fs, _, err := wire.Storage(cfg, ls)
	if err != nil {
		return nil, multierr.Append(err, closeLog())
	}

	// 4. Server (The Gateway)
	srv := posixserver.NewSimplePosixServer(comm, fs, ls)

	return &singleNodeServer{
		server:   srv,
		ls:       ls,
		closeLog: closeLog,
		stop:     make(chan os.Signal, 1),
	}, nil
}
