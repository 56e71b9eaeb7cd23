package main

import (
	"context"
	"testing"

	sandlib "github.com/AnishMulay/sandfs/clients/library"
	"github.com/AnishMulay/sandfs/internal/block_service/inmemory"
	grpccomm "github.com/AnishMulay/sandfs/internal/communication/grpc"
	dirsimple "github.com/AnishMulay/sandfs/internal/directory_service/simple"
	inodesimple "github.com/AnishMulay/sandfs/internal/inode_service/simple"
	"github.com/AnishMulay/sandfs/internal/log_service/zaplog"
	posixsimple "github.com/AnishMulay/sandfs/internal/posix_server/simple"
	storagesimple "github.com/AnishMulay/sandfs/internal/storage_service/simple"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *ServerRegistry {
	t.Helper()
	ls := zaplog.NewNopZapLogService()
	bs, err := inmemory.NewInMemoryBlockService(4096, 64, ls)
	require.NoError(t, err)
	inodes := inodesimple.NewSimpleInodeService(bs, ls)
	dirs := dirsimple.NewSimpleDirectoryService(bs, inodes, ls)
	fs := storagesimple.NewSimpleStorageService(bs, inodes, dirs, ls)

	srv := posixsimple.NewSimplePosixServer(grpccomm.NewGRPCCommunicator("127.0.0.1:0", ls), fs, ls)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })

	comm := grpccomm.NewGRPCCommunicator("127.0.0.1:0", ls)
	t.Cleanup(func() { _ = comm.Stop() })

	return &ServerRegistry{
		Clients:       map[string]*sandlib.SandfsClient{"local": sandlib.NewSandfsClient(srv.Address(), comm)},
		Addresses:     map[string]string{"local": srv.Address()},
		DefaultServer: "local",
		LogServer:     ls,
	}
}

func call(t *testing.T, r *ServerRegistry, name string, h toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := r.bind(name, h)(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestTools(t *testing.T) {
	r := newRegistry(t)

	res := call(t, r, "create", handleCreate, map[string]any{"path": "/docs", "directory": true})
	require.False(t, res.IsError, text(t, res))

	res = call(t, r, "write_file", handleWriteFile, map[string]any{"path": "/docs/a.txt", "content": "hello"})
	require.False(t, res.IsError, text(t, res))
	require.Equal(t, "Wrote 5 bytes to /docs/a.txt", text(t, res))

	res = call(t, r, "write_file", handleWriteFile, map[string]any{"path": "/docs/a.txt", "content": "!", "offset": float64(5)})
	require.False(t, res.IsError, text(t, res))

	res = call(t, r, "read_file", handleReadFile, map[string]any{"path": "/docs/a.txt"})
	require.Equal(t, "hello!", text(t, res))

	res = call(t, r, "read_file", handleReadFile, map[string]any{"path": "/docs/a.txt", "offset": float64(1), "length": float64(3)})
	require.Equal(t, "ell", text(t, res))

	res = call(t, r, "rename", handleRename, map[string]any{"from": "/docs/a.txt", "to": "/b.txt"})
	require.False(t, res.IsError, text(t, res))

	res = call(t, r, "list_directory", handleListDirectory, map[string]any{"path": "/"})
	require.Contains(t, text(t, res), `"b.txt"`)

	res = call(t, r, "stat", handleStat, map[string]any{"path": "/b.txt"})
	require.Contains(t, text(t, res), `"size": 6`)

	res = call(t, r, "unlink", handleUnlink, map[string]any{"path": "/b.txt"})
	require.False(t, res.IsError, text(t, res))

	res = call(t, r, "stat", handleStat, map[string]any{"path": "/b.txt"})
	require.True(t, res.IsError)

	res = call(t, r, "statfs", handleStatFs, map[string]any{})
	require.Contains(t, text(t, res), `"blockSize": 4096`)
}

func TestTools_Errors(t *testing.T) {
	r := newRegistry(t)

	res := call(t, r, "stat", handleStat, map[string]any{"path": "/", "server": "elsewhere"})
	require.True(t, res.IsError)
	require.Equal(t, "Server elsewhere not found", text(t, res))

	res = call(t, r, "stat", handleStat, map[string]any{})
	require.True(t, res.IsError)

	res = call(t, r, "unlink", handleUnlink, map[string]any{"path": "/"})
	require.True(t, res.IsError)

	require.Contains(t, listServers(r), "- local: ")
}
