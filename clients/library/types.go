package sandlib

import (
	"sync"

	"github.com/AnishMulay/sandfs/internal/communication"
)

// SandfsFD represents one open file entry in the client-side descriptor table.
//
// Mu protects all mutable per-file state (Offset, Buffer) so concurrent
// reads, writes, fsyncs and closes on the same descriptor run one at a time.
type SandfsFD struct {
	FD       uint64
	FilePath string
	Mode     int
	Offset   int64
	Buffer   []byte
	Mu       sync.Mutex
}

// SandfsClient holds client-wide state for one sandlib instance.
//
// TableMu protects OpenFiles. Per-file state is protected by each SandfsFD.Mu.
type SandfsClient struct {
	ServerAddr string
	Comm       communication.Communicator

	OpenFiles map[uint64]*SandfsFD
	TableMu   sync.RWMutex
}
