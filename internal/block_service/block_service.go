package block_service

import (
	"time"

	"github.com/AnishMulay/sandfs/internal/bitmap"
	"github.com/google/uuid"
)

const (
	DefaultBlockSize  = 4096
	DefaultBlockCount = 256

	// InodeSize is the width of one inode record in the inode table.
	InodeSize = 24
)

// BlockNum indexes a block in [0, BlockCount). Zero doubles as "unset" in
// pointer slots since block 0 is always reserved.
type BlockNum int32

type Superblock struct {
	Magic      uint32
	Version    uint32
	BlockSize  int
	BlockCount int
	FsID       uuid.UUID
	CreatedAt  time.Time
}

// BlockService owns the device: the block array, both allocation bitmaps
// and the inode table region.
type BlockService interface {
	Start() error
	Stop() error
	Sync() error

	BlockSize() int
	BlockCount() int
	ReservedBlocks() int
	Superblock() Superblock

	// Block returns a view of block b. It panics if b is outside the device.
	Block(b BlockNum) []byte
	// Alloc returns the lowest free block, zero filled.
	Alloc() (BlockNum, error)
	// Free returns b to the free pool. Freeing a reserved or already free
	// block panics.
	Free(b BlockNum)
	IsAllocated(b BlockNum) bool
	FreeBlocks() int

	InodeBitmap() bitmap.Bitmap
	InodeTable() []byte
}
