package sandlib

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/AnishMulay/sandfs/internal/block_service/inmemory"
	grpccomm "github.com/AnishMulay/sandfs/internal/communication/grpc"
	dirsimple "github.com/AnishMulay/sandfs/internal/directory_service/simple"
	"github.com/AnishMulay/sandfs/internal/inode_service"
	inodesimple "github.com/AnishMulay/sandfs/internal/inode_service/simple"
	"github.com/AnishMulay/sandfs/internal/log_service/zaplog"
	posixsimple "github.com/AnishMulay/sandfs/internal/posix_server/simple"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
	storagesimple "github.com/AnishMulay/sandfs/internal/storage_service/simple"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *SandfsClient {
	t.Helper()
	ls := zaplog.NewNopZapLogService()
	bs, err := inmemory.NewInMemoryBlockService(4096, 256, ls)
	require.NoError(t, err)
	inodes := inodesimple.NewSimpleInodeService(bs, ls)
	dirs := dirsimple.NewSimpleDirectoryService(bs, inodes, ls)
	fs := storagesimple.NewSimpleStorageService(bs, inodes, dirs, ls)

	server := posixsimple.NewSimplePosixServer(grpccomm.NewGRPCCommunicator("127.0.0.1:0", ls), fs, ls)
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })

	comm := grpccomm.NewGRPCCommunicator("127.0.0.1:0", ls)
	t.Cleanup(func() { _ = comm.Stop() })
	return NewSandfsClient(server.Address(), comm)
}

func TestSandfsClient_PathOperations(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	attr, err := c.Create(ctx, "/file", 0644)
	require.NoError(t, err)
	require.Equal(t, inode_service.ModeRegular|0644, attr.Mode)

	n, err := c.WriteAt(ctx, "/file", 4090, []byte("0123456789"))
	require.NoError(t, err)
	require.EqualValues(t, 10, n)

	data, err := c.ReadAt(ctx, "/file", 4090, 10)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789"), data)

	_, err = c.Mkdir(ctx, "/dir", 0755)
	require.NoError(t, err)
	require.NoError(t, c.Link(ctx, "/file", "/dir/alias"))
	require.NoError(t, c.Rename(ctx, "/file", "/dir/file"))

	names, err := c.List(ctx, "/dir")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alias", "file"}, names)

	entries, err := c.ReadDir(ctx, "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "dir", entries[0].Name)

	inum, err := c.Resolve(ctx, "/dir/alias")
	require.NoError(t, err)
	require.Equal(t, attr.Inum, inum)

	require.NoError(t, c.Truncate(ctx, "/dir/file", 3))
	attr, err = c.Stat(ctx, "/dir/alias")
	require.NoError(t, err)
	require.EqualValues(t, 3, attr.Size)
	require.EqualValues(t, 2, attr.Refs)

	stats, err := c.StatFs(ctx)
	require.NoError(t, err)
	require.Equal(t, 4096, stats.BlockSize)
	require.Less(t, stats.FreeBlocks, stats.TotalBlocks)
}

func TestSandfsClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.Stat(ctx, "/missing")
	require.ErrorIs(t, err, ss.ErrNotFound)

	_, err = c.Create(ctx, "/missing/file", 0644)
	require.ErrorIs(t, err, ss.ErrParentNotFound)

	_, err = c.Create(ctx, "/x", 0644)
	require.NoError(t, err)
	_, err = c.Create(ctx, "/x", 0644)
	require.ErrorIs(t, err, ss.ErrAlreadyExists)

	_, err = c.ReadAt(ctx, "/", 0, 1)
	require.ErrorIs(t, err, ss.ErrIsDirectory)

	require.ErrorIs(t, c.Unlink(ctx, "/"), ss.ErrInvalidPath)

	empty := NewSandfsClient("", nil)
	_, err = empty.Stat(ctx, "/")
	require.Error(t, err)
}

func TestSandfsClient_FileDescriptors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.Open("/notes", os.O_RDWR)
	require.ErrorIs(t, err, ss.ErrNotFound)

	fd, err := c.Open("/notes", os.O_RDWR|os.O_CREATE)
	require.NoError(t, err)
	require.Equal(t, 3, fd)

	_, err = c.Write(fd, []byte("hello "))
	require.NoError(t, err)
	_, err = c.Write(fd, []byte("world"))
	require.NoError(t, err)

	// Buffered until fsync.
	attr, err := c.Stat(ctx, "/notes")
	require.NoError(t, err)
	require.EqualValues(t, 0, attr.Size)

	require.NoError(t, c.Fsync(fd))
	attr, err = c.Stat(ctx, "/notes")
	require.NoError(t, err)
	require.EqualValues(t, 11, attr.Size)
	require.NoError(t, c.Close(fd))
	require.Error(t, c.Close(fd))

	fd, err = c.Open("/notes", os.O_RDONLY)
	require.NoError(t, err)
	data, err := c.Read(fd, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
	data, err = c.Read(fd, 100)
	require.NoError(t, err)
	require.Equal(t, " world", string(data))
	_, err = c.Write(fd, []byte("x"))
	require.Error(t, err)
	require.NoError(t, c.Close(fd))

	fd, err = c.Open("/notes", os.O_WRONLY|os.O_APPEND)
	require.NoError(t, err)
	_, err = c.Write(fd, []byte("!"))
	require.NoError(t, err)
	require.NoError(t, c.Close(fd))

	data, err = c.ReadAt(ctx, "/notes", 0, 100)
	require.NoError(t, err)
	require.Equal(t, "hello world!", string(data))

	fd, err = c.Open("/notes", os.O_RDWR|os.O_TRUNC)
	require.NoError(t, err)
	_, err = c.Write(fd, []byte(strings.Repeat("z", 5000)))
	require.NoError(t, err)
	data, err = c.Read(fd, 10)
	require.NoError(t, err)
	require.Empty(t, data)
	require.NoError(t, c.Close(fd))

	attr, err = c.Stat(ctx, "/notes")
	require.NoError(t, err)
	require.EqualValues(t, 5000, attr.Size)

	_, err = c.Open("/", os.O_RDONLY)
	require.ErrorIs(t, err, ss.ErrIsDirectory)
}
