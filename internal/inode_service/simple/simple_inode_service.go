package simple

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/AnishMulay/sandfs/internal/block_service"
	"github.com/AnishMulay/sandfs/internal/inode_service"
	"github.com/AnishMulay/sandfs/internal/log_service"
)

// SimpleInodeService maps logical blocks 0 and 1 through the direct pointers
// and logical block i >= 2 through slot i-2 of a single indirect block.
//
// A file of n bytes is backed by max(1, ceil(n/BlockSize)) logical blocks.
// Growing to exactly one block size therefore needs no block beyond the one
// reserved at allocation, and growing to BlockSize+1 adds logical block 1.
type SimpleInodeService struct {
	bs block_service.BlockService
	ls log_service.LogService
}

func NewSimpleInodeService(bs block_service.BlockService, ls log_service.LogService) *SimpleInodeService {
	return &SimpleInodeService{bs: bs, ls: ls}
}

func (s *SimpleInodeService) Count() int {
	return s.bs.BlockCount()
}

func (s *SimpleInodeService) perIndirect() int {
	return s.bs.BlockSize() / 4
}

// MaxFileSize is the smaller of what the pointers can address and what the
// int32 size field can hold.
func (s *SimpleInodeService) MaxFileSize() int64 {
	addressable := int64(inode_service.DirectPointers+s.perIndirect()) * int64(s.bs.BlockSize())
	return min(addressable, math.MaxInt32)
}

func (s *SimpleInodeService) blocksFor(size int64) int {
	bsz := int64(s.bs.BlockSize())
	n := int((size + bsz - 1) / bsz)
	if n < 1 {
		return 1
	}
	return n
}

func (s *SimpleInodeService) Get(inum inode_service.Inum) (inode_service.InodeRef, error) {
	if inum < 0 || int(inum) >= s.Count() {
		return inode_service.InodeRef{}, fmt.Errorf("%w: %d", inode_service.ErrInvalidInum, inum)
	}
	off := int(inum) * block_service.InodeSize
	return inode_service.NewInodeRef(inum, s.bs.InodeTable()[off:]), nil
}

func (s *SimpleInodeService) IsAllocated(inum inode_service.Inum) bool {
	if inum < 0 || int(inum) >= s.Count() {
		return false
	}
	return s.bs.InodeBitmap().Get(int(inum))
}

func (s *SimpleInodeService) FreeInodes() int {
	return s.Count() - s.bs.InodeBitmap().Count(s.Count())
}

func (s *SimpleInodeService) Allocate() (inode_service.Inum, error) {
	bm := s.bs.InodeBitmap()
	i, ok := bm.FirstClear(s.Count())
	if !ok {
		s.ls.Warn(log_service.LogEvent{Message: "Inode table full"})
		return -1, inode_service.ErrNoFreeInodes
	}

	// Reserve the first data block before claiming the slot so a full
	// device leaves the bitmap untouched.
	first, err := s.bs.Alloc()
	if err != nil {
		return -1, fmt.Errorf("reserving first block: %w", err)
	}
	bm.Set(i, true)

	inum := inode_service.Inum(i)
	ino, _ := s.Get(inum)
	ino.Reset()
	ino.SetRefs(1)
	ino.SetPointer(0, first)

	s.ls.Debug(log_service.LogEvent{
		Message:  "Allocated inode",
		Metadata: map[string]any{"inum": inum, "block": first},
	})
	return inum, nil
}

func (s *SimpleInodeService) Free(inum inode_service.Inum) {
	ino, err := s.Get(inum)
	if err != nil {
		panic(err)
	}
	if refs := ino.Refs(); refs != 0 {
		panic(fmt.Sprintf("free of inode %d with %d references", inum, refs))
	}
	bm := s.bs.InodeBitmap()
	if !bm.Get(int(inum)) {
		panic(fmt.Sprintf("double free of inode %d", inum))
	}

	if err := s.Shrink(ino, 0); err != nil {
		panic(err)
	}
	s.bs.Free(ino.Pointer(0))
	ino.Reset()
	bm.Set(int(inum), false)

	s.ls.Debug(log_service.LogEvent{
		Message:  "Freed inode",
		Metadata: map[string]any{"inum": inum},
	})
}

func (s *SimpleInodeService) slot(ino inode_service.InodeRef, i int) block_service.BlockNum {
	if i < inode_service.DirectPointers {
		return ino.Pointer(i)
	}
	ind := ino.Indirect()
	if ind == 0 {
		return 0
	}
	raw := s.bs.Block(ind)[(i-inode_service.DirectPointers)*4:]
	return block_service.BlockNum(int32(binary.LittleEndian.Uint32(raw)))
}

func (s *SimpleInodeService) setSlot(ino inode_service.InodeRef, i int, b block_service.BlockNum) {
	if i < inode_service.DirectPointers {
		ino.SetPointer(i, b)
		return
	}
	raw := s.bs.Block(ino.Indirect())[(i-inode_service.DirectPointers)*4:]
	binary.LittleEndian.PutUint32(raw, uint32(int32(b)))
}

func (s *SimpleInodeService) Grow(ino inode_service.InodeRef, size int64) error {
	cur := ino.Size()
	if size < cur {
		return fmt.Errorf("%w: grow inode %d from %d to %d", inode_service.ErrInvalidSize, ino.Inum, cur, size)
	}
	if size > s.MaxFileSize() {
		return fmt.Errorf("%w: %d > %d", inode_service.ErrFileTooLarge, size, s.MaxFileSize())
	}

	have, need := s.blocksFor(cur), s.blocksFor(size)

	// 1. Make sure the whole grow fits before touching anything
	required := need - have
	if need > inode_service.DirectPointers && ino.Indirect() == 0 {
		required++
	}
	if required > s.bs.FreeBlocks() {
		s.ls.Warn(log_service.LogEvent{
			Message:  "Not enough free blocks to grow inode",
			Metadata: map[string]any{"inum": ino.Inum, "required": required, "free": s.bs.FreeBlocks()},
		})
		return fmt.Errorf("grow inode %d to %d bytes: %w", ino.Inum, size, block_service.ErrNoSpace)
	}

	// 2. Back every new logical block
	for i := have; i < need; i++ {
		if i >= inode_service.DirectPointers && ino.Indirect() == 0 {
			ind, err := s.bs.Alloc()
			if err != nil {
				return err
			}
			ino.SetIndirect(ind)
		}
		b, err := s.bs.Alloc()
		if err != nil {
			return err
		}
		s.setSlot(ino, i, b)
	}

	ino.SetSize(size)
	return nil
}

func (s *SimpleInodeService) Shrink(ino inode_service.InodeRef, size int64) error {
	cur := ino.Size()
	if size < 0 || size > cur {
		return fmt.Errorf("%w: shrink inode %d from %d to %d", inode_service.ErrInvalidSize, ino.Inum, cur, size)
	}

	have, keep := s.blocksFor(cur), s.blocksFor(size)

	for i := have - 1; i >= keep; i-- {
		s.bs.Free(s.slot(ino, i))
		s.setSlot(ino, i, 0)
	}
	if keep <= inode_service.DirectPointers && ino.Indirect() != 0 {
		s.bs.Free(ino.Indirect())
		ino.SetIndirect(0)
	}

	// Bytes past the new end read back as zero if the file grows again.
	if size < cur {
		tail := size - int64(keep-1)*int64(s.bs.BlockSize())
		clear(s.bs.Block(s.slot(ino, keep-1))[tail:])
	}

	ino.SetSize(size)
	return nil
}

func (s *SimpleInodeService) BlockForOffset(ino inode_service.InodeRef, offset int64) (block_service.BlockNum, error) {
	i := offset / int64(s.bs.BlockSize())
	if offset < 0 || i >= int64(s.blocksFor(ino.Size())) {
		return 0, fmt.Errorf("%w: inode %d offset %d size %d", inode_service.ErrOffsetOutOfRange, ino.Inum, offset, ino.Size())
	}
	return s.slot(ino, int(i)), nil
}

func (s *SimpleInodeService) BlocksUsed(ino inode_service.InodeRef) int {
	n := s.blocksFor(ino.Size())
	if ino.Indirect() != 0 {
		n++
	}
	return n
}

var _ inode_service.InodeService = (*SimpleInodeService)(nil)
