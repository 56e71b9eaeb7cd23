package inmemory

import (
	"github.com/AnishMulay/sandfs/internal/block_service"
	"github.com/AnishMulay/sandfs/internal/log_service"
)

// InMemoryBlockService keeps the whole device in a byte slice. Contents are
// lost on Stop.
type InMemoryBlockService struct {
	*block_service.Disk

	layout block_service.Layout
	ls     log_service.LogService
}

func NewInMemoryBlockService(blockSize, blockCount int, ls log_service.LogService) (*InMemoryBlockService, error) {
	layout, err := block_service.NewLayout(blockSize, blockCount)
	if err != nil {
		return nil, err
	}
	return &InMemoryBlockService{layout: layout, ls: ls}, nil
}

func (s *InMemoryBlockService) Start() error {
	if s.Disk != nil {
		return nil
	}
	s.ls.Info(log_service.LogEvent{
		Message:  "Starting in-memory block service",
		Metadata: map[string]any{"bytes": s.layout.Size()},
	})

	disk, err := block_service.Mount(make([]byte, s.layout.Size()), s.layout, s.ls)
	if err != nil {
		return err
	}
	s.Disk = disk
	return nil
}

func (s *InMemoryBlockService) Stop() error {
	s.ls.Info(log_service.LogEvent{Message: "Stopping in-memory block service"})
	s.Disk = nil
	return nil
}

func (s *InMemoryBlockService) Sync() error {
	return nil
}

var _ block_service.BlockService = (*InMemoryBlockService)(nil)
