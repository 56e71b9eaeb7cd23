package inmemory

import (
	"testing"

	"github.com/AnishMulay/sandfs/internal/block_service"
	"github.com/AnishMulay/sandfs/internal/log_service/zaplog"
	"github.com/stretchr/testify/require"
)

func newStarted(t *testing.T, blockSize, blockCount int) *InMemoryBlockService {
	t.Helper()
	bs, err := NewInMemoryBlockService(blockSize, blockCount, zaplog.NewNopZapLogService())
	require.NoError(t, err)
	require.NoError(t, bs.Start())
	t.Cleanup(func() { _ = bs.Stop() })
	return bs
}

func TestInMemoryBlockService_Layout(t *testing.T) {
	tests := []struct {
		name         string
		blockSize    int
		blockCount   int
		wantReserved int
		wantErr      bool
	}{
		{name: "default geometry", blockSize: 4096, blockCount: 256, wantReserved: 2},
		{name: "small blocks", blockSize: 512, blockCount: 64, wantReserved: 4},
		{name: "block size too small", blockSize: 32, blockCount: 64, wantErr: true},
		{name: "no room for data", blockSize: 64, blockCount: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs, err := NewInMemoryBlockService(tt.blockSize, tt.blockCount, zaplog.NewNopZapLogService())
			if tt.wantErr {
				require.ErrorIs(t, err, block_service.ErrInvalidGeometry)
				return
			}
			require.NoError(t, err)
			require.NoError(t, bs.Start())

			require.Equal(t, tt.wantReserved, bs.ReservedBlocks())
			require.Equal(t, tt.blockCount-tt.wantReserved, bs.FreeBlocks())
			for i := 0; i < tt.wantReserved; i++ {
				require.True(t, bs.IsAllocated(block_service.BlockNum(i)))
			}
			require.Len(t, bs.InodeTable(), tt.blockCount*block_service.InodeSize)
			require.Equal(t, block_service.Magic, bs.Superblock().Magic)
		})
	}
}

func TestInMemoryBlockService_AllocFree(t *testing.T) {
	bs := newStarted(t, 512, 16)
	reserved := bs.ReservedBlocks()

	b1, err := bs.Alloc()
	require.NoError(t, err)
	require.Equal(t, block_service.BlockNum(reserved), b1)

	copy(bs.Block(b1), []byte("dirty"))
	bs.Free(b1)
	require.False(t, bs.IsAllocated(b1))

	b2, err := bs.Alloc()
	require.NoError(t, err)
	require.Equal(t, b1, b2, "first fit reuses the freed block")
	require.Equal(t, make([]byte, 512), bs.Block(b2), "allocated blocks are zeroed")

	for bs.FreeBlocks() > 0 {
		_, err := bs.Alloc()
		require.NoError(t, err)
	}
	_, err = bs.Alloc()
	require.ErrorIs(t, err, block_service.ErrNoSpace)
}

func TestInMemoryBlockService_Panics(t *testing.T) {
	bs := newStarted(t, 512, 16)

	require.Panics(t, func() { bs.Block(16) })
	require.Panics(t, func() { bs.Block(-1) })
	require.Panics(t, func() { bs.Free(0) }, "reserved block")

	b, err := bs.Alloc()
	require.NoError(t, err)
	bs.Free(b)
	require.Panics(t, func() { bs.Free(b) }, "double free")
}
