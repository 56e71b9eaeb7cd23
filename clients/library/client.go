package sandlib

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AnishMulay/sandfs/internal/communication"
	"github.com/AnishMulay/sandfs/internal/inode_service"
	ps "github.com/AnishMulay/sandfs/internal/posix_server"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
)

func NewSandfsClient(serverAddr string, comm communication.Communicator) *SandfsClient {
	return &SandfsClient{
		ServerAddr: serverAddr,
		Comm:       comm,
		OpenFiles:  make(map[uint64]*SandfsFD),
	}
}

func (c *SandfsClient) check() error {
	if c == nil {
		return fmt.Errorf("sandfs client is nil")
	}
	if c.Comm == nil {
		return fmt.Errorf("sandfs communicator is nil")
	}
	if c.ServerAddr == "" {
		return fmt.Errorf("sandfs server address is empty")
	}
	return nil
}

// call sends one request and decodes a successful body into out when out is
// not nil.
func (c *SandfsClient) call(ctx context.Context, op string, path string, msgType string, payload any, out any) error {
	if err := c.check(); err != nil {
		return err
	}

	resp, err := c.Comm.Send(ctx, c.ServerAddr, communication.Message{
		From:    "sandlib",
		Type:    msgType,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("%s %q failed: %w", op, path, err)
	}
	if resp.Code != communication.CodeOK {
		return fmt.Errorf("%s %q: %w", op, path, ps.ErrorForResponse(resp))
	}

	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("failed to decode %s response for %q: %w", op, path, err)
		}
	}
	return nil
}

func (c *SandfsClient) Resolve(ctx context.Context, path string) (inode_service.Inum, error) {
	var resp ps.ResolveResponse
	if err := c.call(ctx, "resolve", path, ps.MsgResolve, ps.ResolveRequest{Path: path}, &resp); err != nil {
		return -1, err
	}
	return resp.Inum, nil
}

func (c *SandfsClient) Stat(ctx context.Context, path string) (*ss.Attributes, error) {
	var attr ss.Attributes
	if err := c.call(ctx, "stat", path, ps.MsgStat, ps.StatRequest{Path: path}, &attr); err != nil {
		return nil, err
	}
	return &attr, nil
}

func (c *SandfsClient) Create(ctx context.Context, path string, mode uint32) (*ss.Attributes, error) {
	var attr ss.Attributes
	if err := c.call(ctx, "create", path, ps.MsgCreate, ps.CreateRequest{Path: path, Mode: mode}, &attr); err != nil {
		return nil, err
	}
	return &attr, nil
}

func (c *SandfsClient) Mkdir(ctx context.Context, path string, perm uint32) (*ss.Attributes, error) {
	return c.Create(ctx, path, inode_service.ModeDir|(perm&inode_service.ModePermMask))
}

func (c *SandfsClient) Unlink(ctx context.Context, path string) error {
	return c.call(ctx, "unlink", path, ps.MsgUnlink, ps.UnlinkRequest{Path: path}, nil)
}

func (c *SandfsClient) Link(ctx context.Context, existing string, newPath string) error {
	return c.call(ctx, "link", newPath, ps.MsgLink, ps.LinkRequest{Existing: existing, NewPath: newPath}, nil)
}

func (c *SandfsClient) Rename(ctx context.Context, from string, to string) error {
	return c.call(ctx, "rename", from, ps.MsgRename, ps.RenameRequest{From: from, To: to}, nil)
}

func (c *SandfsClient) List(ctx context.Context, path string) ([]string, error) {
	var names []string
	if err := c.call(ctx, "list", path, ps.MsgList, ps.ListRequest{Path: path}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *SandfsClient) ReadDir(ctx context.Context, path string) ([]ss.DirEntry, error) {
	var entries []ss.DirEntry
	if err := c.call(ctx, "readdir", path, ps.MsgReadDir, ps.ReadDirRequest{Path: path}, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *SandfsClient) Truncate(ctx context.Context, path string, size int64) error {
	return c.call(ctx, "truncate", path, ps.MsgTruncate, ps.TruncateRequest{Path: path, Size: size}, nil)
}

func (c *SandfsClient) ReadAt(ctx context.Context, path string, offset int64, length int64) ([]byte, error) {
	data := []byte{}
	if err := c.call(ctx, "read", path, ps.MsgRead, ps.ReadRequest{Path: path, Offset: offset, Length: length}, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *SandfsClient) WriteAt(ctx context.Context, path string, offset int64, data []byte) (int64, error) {
	var resp ps.WriteResponse
	if err := c.call(ctx, "write", path, ps.MsgWrite, ps.WriteRequest{Path: path, Offset: offset, Data: data}, &resp); err != nil {
		return 0, err
	}
	return resp.Written, nil
}

func (c *SandfsClient) StatFs(ctx context.Context) (*ss.FileSystemStats, error) {
	var stats ss.FileSystemStats
	if err := c.call(ctx, "statfs", "/", ps.MsgStatFs, ps.StatFsRequest{}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
