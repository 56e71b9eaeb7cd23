// Package wire builds the service stack described by a config file. The
// server packages and the command line tools share it.
package wire

import (
	"fmt"

	"github.com/AnishMulay/sandfs/internal/block_service/localdisc"
	"github.com/AnishMulay/sandfs/internal/communication"
	grpccomm "github.com/AnishMulay/sandfs/internal/communication/grpc"
	httpcomm "github.com/AnishMulay/sandfs/internal/communication/http"
	"github.com/AnishMulay/sandfs/internal/config"
	dirsimple "github.com/AnishMulay/sandfs/internal/directory_service/simple"
	inodesimple "github.com/AnishMulay/sandfs/internal/inode_service/simple"
	"github.com/AnishMulay/sandfs/internal/log_service"
	locallog "github.com/AnishMulay/sandfs/internal/log_service/localdisc"
	"github.com/AnishMulay/sandfs/internal/log_service/zaplog"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
	storagesimple "github.com/AnishMulay/sandfs/internal/storage_service/simple"
)

// Logger returns the configured log backend and a function that flushes
// and releases it.
func Logger(cfg *config.Config) (log_service.LogService, func() error, error) {
	switch cfg.Log.Backend {
	case config.LogBackendZap:
		ls, err := zaplog.NewProductionZapLogService(cfg.Node.ID, cfg.Log.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
		}
		// Sync on a terminal stderr reports EINVAL; nothing is lost.
		return ls, func() error { _ = ls.Sync(); return nil }, nil
	default:
		ls, err := locallog.NewLocalDiscLogService(cfg.Log.Dir, cfg.Node.ID, cfg.Log.Level)
		if err != nil {
			return nil, nil, err
		}
		return ls, ls.Close, nil
	}
}

// Communicator builds the configured transport bound to addr.
func Communicator(cfg *config.Config, addr string, ls log_service.LogService) communication.Communicator {
	if cfg.Server.Transport == config.TransportHTTP {
		return httpcomm.NewHTTPCommunicator(addr, ls)
	}
	return grpccomm.NewGRPCCommunicator(addr, ls)
}

// Storage assembles the storage service over the image file. The service
// is not started.
func Storage(cfg *config.Config, ls log_service.LogService) (ss.StorageService, *localdisc.LocalDiscBlockService, error) {
	bs, err := localdisc.NewLocalDiscBlockService(cfg.Image.Path, cfg.Image.BlockSize, cfg.Image.BlockCount, ls)
	if err != nil {
		return nil, nil, err
	}
	inodes := inodesimple.NewSimpleInodeService(bs, ls)
	dirs := dirsimple.NewSimpleDirectoryService(bs, inodes, ls)
	return storagesimple.NewSimpleStorageService(bs, inodes, dirs, ls), bs, nil
}
