package localdisc

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/AnishMulay/sandfs/internal/block_service"
	"github.com/AnishMulay/sandfs/internal/log_service"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// LocalDiscBlockService maps a disk image file into memory. Writes land in
// the page cache and reach the file on Sync or Stop.
type LocalDiscBlockService struct {
	*block_service.Disk

	path   string
	layout block_service.Layout
	ls     log_service.LogService

	mu      sync.Mutex
	file    *os.File
	mapping []byte
}

func NewLocalDiscBlockService(path string, blockSize, blockCount int, ls log_service.LogService) (*LocalDiscBlockService, error) {
	layout, err := block_service.NewLayout(blockSize, blockCount)
	if err != nil {
		return nil, err
	}
	return &LocalDiscBlockService{
		path:   path,
		layout: layout,
		ls:     ls,
	}, nil
}

func (s *LocalDiscBlockService) Path() string {
	return s.path
}

func (s *LocalDiscBlockService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapping != nil {
		return nil
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Opening disk image",
		Metadata: map[string]any{"path": s.path, "bytes": s.layout.Size()},
	})

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("%w: %w", block_service.ErrImageOpenFailed, err)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to open disk image",
			Metadata: map[string]any{"path": s.path, "error": err.Error()},
		})
		return fmt.Errorf("%w: %w", block_service.ErrImageOpenFailed, err)
	}

	// 1. Size the image. A fresh file is extended, a larger file is left alone.
	info, err := file.Stat()
	if err != nil {
		return multierr.Append(fmt.Errorf("%w: %w", block_service.ErrImageOpenFailed, err), file.Close())
	}
	if info.Size() < int64(s.layout.Size()) {
		if err := file.Truncate(int64(s.layout.Size())); err != nil {
			return multierr.Append(fmt.Errorf("%w: %w", block_service.ErrImageOpenFailed, err), file.Close())
		}
	}

	// 2. Map it
	mapping, err := unix.Mmap(int(file.Fd()), 0, s.layout.Size(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to map disk image",
			Metadata: map[string]any{"path": s.path, "error": err.Error()},
		})
		return multierr.Append(fmt.Errorf("%w: %w", block_service.ErrImageOpenFailed, err), file.Close())
	}

	// 3. Mount or format
	disk, err := block_service.Mount(mapping, s.layout, s.ls)
	if err != nil {
		return multierr.Combine(err, unix.Munmap(mapping), file.Close())
	}

	s.file = file
	s.mapping = mapping
	s.Disk = disk
	return nil
}

func (s *LocalDiscBlockService) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked()
}

func (s *LocalDiscBlockService) syncLocked() error {
	if s.mapping == nil {
		return nil
	}
	if err := unix.Msync(s.mapping, unix.MS_SYNC); err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Failed to sync disk image",
			Metadata: map[string]any{"path": s.path, "error": err.Error()},
		})
		return fmt.Errorf("%w: %w", block_service.ErrImageSyncFailed, err)
	}
	return nil
}

func (s *LocalDiscBlockService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mapping == nil {
		return nil
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Closing disk image",
		Metadata: map[string]any{"path": s.path},
	})

	err := multierr.Combine(
		s.syncLocked(),
		unix.Munmap(s.mapping),
		s.file.Close(),
	)

	s.Disk = nil
	s.mapping = nil
	s.file = nil
	return err
}

var _ block_service.BlockService = (*LocalDiscBlockService)(nil)
