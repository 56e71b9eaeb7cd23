package fuse_adapter

import (
	"context"
	"errors"
	"os"
	"path"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/AnishMulay/sandfs/internal/log_service"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
)

// FS exposes a storage service to the kernel. Nodes hold the path they were
// looked up by and re-resolve it on every call.
type FS struct {
	storage ss.StorageService
	ls      log_service.LogService
}

var (
	_ fs.FS                 = (*FS)(nil)
	_ fs.FSStatfser         = (*FS)(nil)
	_ fs.Node               = (*Dir)(nil)
	_ fs.NodeStringLookuper = (*Dir)(nil)
	_ fs.HandleReadDirAller = (*Dir)(nil)
	_ fs.NodeCreater        = (*Dir)(nil)
	_ fs.NodeMkdirer        = (*Dir)(nil)
	_ fs.NodeRemover        = (*Dir)(nil)
	_ fs.NodeLinker         = (*Dir)(nil)
	_ fs.NodeRenamer        = (*Dir)(nil)
	_ fs.Node               = (*File)(nil)
	_ fs.NodeSetattrer      = (*File)(nil)
	_ fs.NodeFsyncer        = (*File)(nil)
	_ fs.HandleReader       = (*File)(nil)
	_ fs.HandleWriter       = (*File)(nil)
)

func NewFS(storage ss.StorageService, ls log_service.LogService) *FS {
	return &FS{storage: storage, ls: ls}
}

func (f *FS) Root() (fs.Node, error) {
	return &Dir{node{fs: f, path: "/"}}, nil
}

func (f *FS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	stats, err := f.storage.StatFs(ctx)
	if err != nil {
		return f.fail("statfs", "/", err)
	}
	resp.Blocks = uint64(stats.TotalBlocks)
	resp.Bfree = uint64(stats.FreeBlocks)
	resp.Bavail = uint64(stats.FreeBlocks)
	resp.Files = uint64(stats.TotalInodes)
	resp.Ffree = uint64(stats.FreeInodes)
	resp.Bsize = uint32(stats.BlockSize)
	resp.Frsize = uint32(stats.BlockSize)
	resp.Namelen = uint32(stats.MaxNameLen)
	return nil
}

// fail converts err to an errno, logging the ones that are not plain
// caller mistakes.
func (f *FS) fail(op string, p string, err error) error {
	errno := Errno(err)
	if errors.Is(errno, fuse.Errno(syscall.EIO)) {
		f.ls.Error(log_service.LogEvent{
			Message:  "FUSE operation failed",
			Metadata: map[string]any{"op": op, "path": p, "error": err.Error()},
		})
	}
	return errno
}

type node struct {
	fs   *FS
	path string
}

func (n *node) child(name string) string {
	return path.Join(n.path, name)
}

func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	attr, err := n.fs.storage.Stat(ctx, n.path)
	if err != nil {
		return n.fs.fail("getattr", n.path, err)
	}
	fillAttr(attr, a)
	return nil
}

// nodeFor builds a Dir or File for p depending on what it is.
func (n *node) nodeFor(ctx context.Context, p string) (fs.Node, error) {
	attr, err := n.fs.storage.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	if attr.IsDir() {
		return &Dir{node{fs: n.fs, path: p}}, nil
	}
	return &File{node{fs: n.fs, path: p}}, nil
}

// --- Directories ---

type Dir struct {
	node
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	p := d.child(name)
	n, err := d.nodeFor(ctx, p)
	if err != nil {
		return nil, d.fs.fail("lookup", p, err)
	}
	return n, nil
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.storage.ReadDir(ctx, d.path)
	if err != nil {
		return nil, d.fs.fail("readdir", d.path, err)
	}
	out := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		out = append(out, fuse.Dirent{
			Inode: nodeID(e.Inum),
			Type:  direntType(e.Mode),
			Name:  e.Name,
		})
	}
	return out, nil
}

func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	p := d.child(req.Name)
	attr, err := d.fs.storage.Create(ctx, p, DiskMode(req.Mode))
	if err != nil {
		return nil, nil, d.fs.fail("create", p, err)
	}
	fillAttr(attr, &resp.Attr)
	f := &File{node{fs: d.fs, path: p}}
	return f, f, nil
}

func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	p := d.child(req.Name)
	if _, err := d.fs.storage.Create(ctx, p, DiskMode(req.Mode|os.ModeDir)); err != nil {
		return nil, d.fs.fail("mkdir", p, err)
	}
	return &Dir{node{fs: d.fs, path: p}}, nil
}

func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	p := d.child(req.Name)
	attr, err := d.fs.storage.Stat(ctx, p)
	if err != nil {
		return d.fs.fail("remove", p, err)
	}
	switch {
	case req.Dir && !attr.IsDir():
		return fuse.Errno(syscall.ENOTDIR)
	case !req.Dir && attr.IsDir():
		return fuse.Errno(syscall.EISDIR)
	}
	if err := d.fs.storage.Unlink(ctx, p); err != nil {
		return d.fs.fail("remove", p, err)
	}
	return nil
}

func (d *Dir) Link(ctx context.Context, req *fuse.LinkRequest, old fs.Node) (fs.Node, error) {
	src, ok := old.(*File)
	if !ok {
		return nil, fuse.Errno(syscall.EPERM)
	}
	p := d.child(req.NewName)
	if err := d.fs.storage.Link(ctx, src.path, p); err != nil {
		return nil, d.fs.fail("link", p, err)
	}
	return &File{node{fs: d.fs, path: p}}, nil
}

// Rename replaces an existing regular file at the target, as rename(2)
// does. The replacement is two storage operations. Only a regular file may
// replace a regular file: the unlink leaves a tombstone in the target
// directory, and the rename that follows reuses it without allocating, so
// once the unlink succeeds the rename has nothing left that can fail. The
// kernel holds both parent directories locked across the call.
func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	target, ok := newDir.(*Dir)
	if !ok {
		return fuse.Errno(syscall.ENOTDIR)
	}
	from := d.child(req.OldName)
	to := target.child(req.NewName)

	src, err := d.fs.storage.Stat(ctx, from)
	if err != nil {
		return d.fs.fail("rename", from, err)
	}
	if dst, err := d.fs.storage.Stat(ctx, to); err == nil && from != to {
		if dst.IsDir() || src.IsDir() {
			return fuse.Errno(syscall.EEXIST)
		}
		if err := d.fs.storage.Unlink(ctx, to); err != nil {
			return d.fs.fail("rename", to, err)
		}
	}

	if err := d.fs.storage.Rename(ctx, from, to); err != nil {
		return d.fs.fail("rename", from, err)
	}
	return nil
}

// --- Files ---

// File is both the node and its handle; there is no per-open state.
type File struct {
	node
}

func (f *File) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := f.fs.storage.Read(ctx, f.path, req.Offset, int64(req.Size))
	if err != nil {
		return f.fs.fail("read", f.path, err)
	}
	resp.Data = data
	return nil
}

func (f *File) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := f.fs.storage.Write(ctx, f.path, req.Offset, req.Data)
	if err != nil {
		return f.fs.fail("write", f.path, err)
	}
	resp.Size = int(n)
	return nil
}

func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		if err := f.fs.storage.Truncate(ctx, f.path, int64(req.Size)); err != nil {
			return f.fs.fail("truncate", f.path, err)
		}
	}
	return f.Attr(ctx, &resp.Attr)
}

// Fsync is a no-op; durability is the block store's concern.
func (f *File) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	return nil
}
