package inode_service

import (
	"encoding/binary"

	"github.com/AnishMulay/sandfs/internal/block_service"
)

// Inum addresses an inode record. The table holds one record per block.
type Inum int32

// RootInum is the namespace root. It is always the first inode allocated.
const RootInum Inum = 0

const (
	ModeTypeMask uint32 = 0170000
	ModeDir      uint32 = 0040000
	ModeRegular  uint32 = 0100000
	ModePermMask uint32 = 0007777
)

// DirectPointers is the number of block pointers stored inline.
const DirectPointers = 2

// Record offsets inside a block_service.InodeSize byte inode.
const (
	offRefs     = 0
	offMode     = 4
	offSize     = 8
	offIndirect = 12
	offPointers = 16
)

// InodeRef is a live view onto one inode record. Setters write through to
// the inode table.
type InodeRef struct {
	Inum Inum
	raw  []byte
}

func NewInodeRef(inum Inum, raw []byte) InodeRef {
	return InodeRef{Inum: inum, raw: raw[:block_service.InodeSize:block_service.InodeSize]}
}

func (n InodeRef) field(off int) int32 {
	return int32(binary.LittleEndian.Uint32(n.raw[off:]))
}

func (n InodeRef) setField(off int, v int32) {
	binary.LittleEndian.PutUint32(n.raw[off:], uint32(v))
}

func (n InodeRef) Refs() int32      { return n.field(offRefs) }
func (n InodeRef) SetRefs(v int32)  { n.setField(offRefs, v) }
func (n InodeRef) Mode() uint32     { return uint32(n.field(offMode)) }
func (n InodeRef) SetMode(m uint32) { n.setField(offMode, int32(m)) }
func (n InodeRef) Size() int64      { return int64(n.field(offSize)) }

// SetSize only updates the recorded length. Use Grow or Shrink to keep the
// backing blocks in step.
func (n InodeRef) SetSize(size int64) { n.setField(offSize, int32(size)) }

func (n InodeRef) Indirect() block_service.BlockNum {
	return block_service.BlockNum(n.field(offIndirect))
}

func (n InodeRef) SetIndirect(b block_service.BlockNum) {
	n.setField(offIndirect, int32(b))
}

func (n InodeRef) Pointer(i int) block_service.BlockNum {
	return block_service.BlockNum(n.field(offPointers + 4*i))
}

func (n InodeRef) SetPointer(i int, b block_service.BlockNum) {
	n.setField(offPointers+4*i, int32(b))
}

func (n InodeRef) IsDir() bool {
	return IsDir(n.Mode())
}

// Reset zeroes the whole record.
func (n InodeRef) Reset() {
	clear(n.raw)
}

func IsDir(mode uint32) bool {
	return mode&ModeTypeMask == ModeDir
}

type InodeService interface {
	// Get returns a view of inode inum. It does not check allocation.
	Get(inum Inum) (InodeRef, error)
	IsAllocated(inum Inum) bool

	// Allocate takes the lowest free inode, sets refs to 1 and reserves its
	// first data block.
	Allocate() (Inum, error)
	// Free releases every block of the inode and its slot. The inode must
	// have no references left.
	Free(inum Inum)

	Grow(ino InodeRef, size int64) error
	Shrink(ino InodeRef, size int64) error
	BlockForOffset(ino InodeRef, offset int64) (block_service.BlockNum, error)

	// BlocksUsed counts data blocks plus the indirect block, if any.
	BlocksUsed(ino InodeRef) int
	Count() int
	FreeInodes() int
	MaxFileSize() int64
}
