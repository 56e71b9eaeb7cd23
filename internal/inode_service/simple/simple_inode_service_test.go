package simple

import (
	"math"
	"testing"

	"github.com/AnishMulay/sandfs/internal/block_service"
	"github.com/AnishMulay/sandfs/internal/block_service/inmemory"
	"github.com/AnishMulay/sandfs/internal/inode_service"
	"github.com/AnishMulay/sandfs/internal/log_service/zaplog"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 512

func newTestInodeService(t *testing.T, blockCount int) (*SimpleInodeService, block_service.BlockService) {
	t.Helper()
	ls := zaplog.NewNopZapLogService()
	bs, err := inmemory.NewInMemoryBlockService(testBlockSize, blockCount, ls)
	require.NoError(t, err)
	require.NoError(t, bs.Start())
	return NewSimpleInodeService(bs, ls), bs
}

func TestSimpleInodeService_AllocateFirstFit(t *testing.T) {
	is, bs := newTestInodeService(t, 64)
	freeBefore := bs.FreeBlocks()

	var inums []inode_service.Inum
	for i := 0; i < 4; i++ {
		inum, err := is.Allocate()
		require.NoError(t, err)
		inums = append(inums, inum)
	}
	require.Equal(t, []inode_service.Inum{0, 1, 2, 3}, inums)
	require.Equal(t, freeBefore-4, bs.FreeBlocks(), "one eager block per inode")

	ino, err := is.Get(2)
	require.NoError(t, err)
	require.EqualValues(t, 1, ino.Refs())
	require.EqualValues(t, 0, ino.Mode())
	require.EqualValues(t, 0, ino.Size())
	require.NotZero(t, ino.Pointer(0))

	ino.SetRefs(0)
	is.Free(2)
	require.False(t, is.IsAllocated(2))

	again, err := is.Allocate()
	require.NoError(t, err)
	require.Equal(t, inode_service.Inum(2), again)

	next, err := is.Allocate()
	require.NoError(t, err)
	require.Equal(t, inode_service.Inum(4), next)
}

func TestSimpleInodeService_Exhaustion(t *testing.T) {
	is, _ := newTestInodeService(t, 8)

	var err error
	for err == nil {
		_, err = is.Allocate()
	}
	// Eight inode slots but only seven data blocks: the device fills first
	// and the failed allocation leaves the last slot free.
	require.ErrorIs(t, err, block_service.ErrNoSpace)
	require.Equal(t, 1, is.FreeInodes())

	is2, bs2 := newTestInodeService(t, 8)
	for i := 0; i < 8; i++ {
		bs2.InodeBitmap().Set(i, true)
	}
	_, err = is2.Allocate()
	require.ErrorIs(t, err, inode_service.ErrNoFreeInodes)
}

func TestSimpleInodeService_FreePanics(t *testing.T) {
	is, _ := newTestInodeService(t, 16)

	inum, err := is.Allocate()
	require.NoError(t, err)
	require.Panics(t, func() { is.Free(inum) }, "refs still 1")

	ino, _ := is.Get(inum)
	ino.SetRefs(0)
	is.Free(inum)
	require.Panics(t, func() { is.Free(inum) }, "double free")
}

func TestSimpleInodeService_GrowShrink(t *testing.T) {
	tests := []struct {
		name       string
		size       int64
		wantBlocks int
		wantInd    bool
	}{
		{name: "zero", size: 0, wantBlocks: 1},
		{name: "one byte", size: 1, wantBlocks: 1},
		{name: "exactly one block", size: testBlockSize, wantBlocks: 1},
		{name: "one block plus one", size: testBlockSize + 1, wantBlocks: 2},
		{name: "exactly two blocks", size: 2 * testBlockSize, wantBlocks: 2},
		{name: "first indirect block", size: 2*testBlockSize + 1, wantBlocks: 3, wantInd: true},
		{name: "five blocks", size: 5 * testBlockSize, wantBlocks: 5, wantInd: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is, bs := newTestInodeService(t, 64)
			inum, err := is.Allocate()
			require.NoError(t, err)
			ino, _ := is.Get(inum)

			before := bs.FreeBlocks()
			require.NoError(t, is.Grow(ino, tt.size))
			require.Equal(t, tt.size, ino.Size())

			extra := tt.wantBlocks - 1
			if tt.wantInd {
				extra++
				require.NotZero(t, ino.Indirect())
				require.True(t, bs.IsAllocated(ino.Indirect()))
			} else {
				require.Zero(t, ino.Indirect())
			}
			require.Equal(t, before-extra, bs.FreeBlocks())
			require.Equal(t, tt.wantBlocks+boolInt(tt.wantInd), is.BlocksUsed(ino))

			for off := int64(0); off < tt.size; off += testBlockSize {
				b, err := is.BlockForOffset(ino, off)
				require.NoError(t, err)
				require.True(t, bs.IsAllocated(b))
			}

			require.NoError(t, is.Shrink(ino, 0))
			require.Equal(t, before, bs.FreeBlocks())
			require.Zero(t, ino.Indirect())
			require.Zero(t, ino.Pointer(1))
			require.NotZero(t, ino.Pointer(0))
		})
	}
}

func TestSimpleInodeService_IndirectFreedOnShrink(t *testing.T) {
	is, bs := newTestInodeService(t, 64)
	inum, err := is.Allocate()
	require.NoError(t, err)
	ino, _ := is.Get(inum)

	require.NoError(t, is.Grow(ino, 4*testBlockSize))
	ind := ino.Indirect()
	require.True(t, bs.IsAllocated(ind))
	third, err := is.BlockForOffset(ino, 2*testBlockSize)
	require.NoError(t, err)

	require.NoError(t, is.Shrink(ino, 3*testBlockSize))
	require.True(t, bs.IsAllocated(ind), "indirect block still holds logical block 2")

	require.NoError(t, is.Shrink(ino, 2*testBlockSize))
	require.False(t, bs.IsAllocated(ind))
	require.False(t, bs.IsAllocated(third))
	require.Zero(t, ino.Indirect())
	require.EqualValues(t, 2*testBlockSize, ino.Size())
}

func TestSimpleInodeService_ShrinkZeroesTail(t *testing.T) {
	is, bs := newTestInodeService(t, 64)
	inum, err := is.Allocate()
	require.NoError(t, err)
	ino, _ := is.Get(inum)

	require.NoError(t, is.Grow(ino, 100))
	blk := bs.Block(ino.Pointer(0))
	for i := range blk[:100] {
		blk[i] = 0xaa
	}

	require.NoError(t, is.Shrink(ino, 10))
	require.NoError(t, is.Grow(ino, 100))
	require.Equal(t, byte(0xaa), blk[9])
	require.Equal(t, make([]byte, 90), blk[10:100])
}

func TestSimpleInodeService_Errors(t *testing.T) {
	is, _ := newTestInodeService(t, 16)
	inum, err := is.Allocate()
	require.NoError(t, err)
	ino, _ := is.Get(inum)

	require.NoError(t, is.Grow(ino, 10))
	require.ErrorIs(t, is.Grow(ino, 5), inode_service.ErrInvalidSize)
	require.ErrorIs(t, is.Shrink(ino, 20), inode_service.ErrInvalidSize)
	require.ErrorIs(t, is.Grow(ino, is.MaxFileSize()+1), inode_service.ErrFileTooLarge)

	// 16 blocks cannot hold a twenty block file.
	require.ErrorIs(t, is.Grow(ino, 20*testBlockSize), block_service.ErrNoSpace)
	require.EqualValues(t, 10, ino.Size(), "failed grow leaves the inode untouched")

	_, err = is.BlockForOffset(ino, testBlockSize)
	require.ErrorIs(t, err, inode_service.ErrOffsetOutOfRange)

	_, err = is.Get(16)
	require.ErrorIs(t, err, inode_service.ErrInvalidInum)
	_, err = is.Get(-1)
	require.ErrorIs(t, err, inode_service.ErrInvalidInum)
}

func TestSimpleInodeService_MaxFileSize(t *testing.T) {
	is, _ := newTestInodeService(t, 16)
	require.EqualValues(t, (2+testBlockSize/4)*testBlockSize, is.MaxFileSize())
}

func TestSimpleInodeService_MaxFileSizeFitsSizeField(t *testing.T) {
	ls := zaplog.NewNopZapLogService()
	bs, err := inmemory.NewInMemoryBlockService(131072, 4, ls)
	require.NoError(t, err)
	require.NoError(t, bs.Start())
	is := NewSimpleInodeService(bs, ls)

	// (2 + 32768) * 131072 is addressable but does not fit in int32.
	require.EqualValues(t, math.MaxInt32, is.MaxFileSize())

	inum, err := is.Allocate()
	require.NoError(t, err)
	ino, err := is.Get(inum)
	require.NoError(t, err)

	require.ErrorIs(t, is.Grow(ino, 1<<31), inode_service.ErrFileTooLarge)
	require.EqualValues(t, 0, ino.Size())
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
