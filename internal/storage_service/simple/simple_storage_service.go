package simple

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AnishMulay/sandfs/internal/block_service"
	ds "github.com/AnishMulay/sandfs/internal/directory_service"
	"github.com/AnishMulay/sandfs/internal/inode_service"
	"github.com/AnishMulay/sandfs/internal/log_service"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
	"go.uber.org/multierr"
)

// SimpleStorageService serialises every call behind one mutex.
type SimpleStorageService struct {
	bs     block_service.BlockService
	inodes inode_service.InodeService
	dirs   ds.DirectoryService
	ls     log_service.LogService

	mu sync.Mutex
}

func NewSimpleStorageService(
	bs block_service.BlockService,
	inodes inode_service.InodeService,
	dirs ds.DirectoryService,
	ls log_service.LogService,
) *SimpleStorageService {
	return &SimpleStorageService{
		bs:     bs,
		inodes: inodes,
		dirs:   dirs,
		ls:     ls,
	}
}

// --- Lifecycle ---

func (s *SimpleStorageService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ls.Info(log_service.LogEvent{Message: "Starting Simple Storage Service"})

	// 1. Mount the device
	if err := s.bs.Start(); err != nil {
		return err
	}

	// 2. A fresh device gets its root directory
	if !s.inodes.IsAllocated(inode_service.RootInum) {
		if _, err := s.dirs.InitRoot(); err != nil {
			s.ls.Error(log_service.LogEvent{
				Message:  "Failed to initialize root directory",
				Metadata: map[string]any{"error": err.Error()},
			})
			return err
		}
	}

	root, err := s.inodes.Get(inode_service.RootInum)
	if err != nil {
		return err
	}
	if !root.IsDir() {
		return fmt.Errorf("%w: root inode has mode %o", ss.ErrNotDirectory, root.Mode())
	}

	s.ls.Info(log_service.LogEvent{
		Message: "Storage ready",
		Metadata: map[string]any{
			"freeBlocks": s.bs.FreeBlocks(),
			"freeInodes": s.inodes.FreeInodes(),
		},
	})
	return nil
}

func (s *SimpleStorageService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ls.Info(log_service.LogEvent{Message: "Stopping Simple Storage Service"})
	return s.bs.Stop()
}

// --- Helpers ---

// translate maps lower layer failures onto the storage error set. Both the
// storage error and the cause remain visible to errors.Is.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ds.ErrNotFound):
		return fmt.Errorf("%w: %w", ss.ErrNotFound, err)
	case errors.Is(err, ds.ErrNotDirectory):
		return fmt.Errorf("%w: %w", ss.ErrNotDirectory, err)
	case errors.Is(err, ds.ErrInvalidName), errors.Is(err, ds.ErrNameTooLong):
		return fmt.Errorf("%w: %w", ss.ErrInvalidPath, err)
	case errors.Is(err, inode_service.ErrNoFreeInodes),
		errors.Is(err, block_service.ErrNoSpace),
		errors.Is(err, ds.ErrDirectoryFull),
		errors.Is(err, inode_service.ErrFileTooLarge):
		return fmt.Errorf("%w: %w", ss.ErrExhausted, err)
	case errors.Is(err, inode_service.ErrInvalidSize):
		return fmt.Errorf("%w: %w", ss.ErrInvalidArgument, err)
	}
	return err
}

func (s *SimpleStorageService) resolve(path string) (inode_service.InodeRef, error) {
	cur, err := s.inodes.Get(inode_service.RootInum)
	if err != nil {
		return inode_service.InodeRef{}, err
	}

	for _, name := range ss.Components(path) {
		if !cur.IsDir() {
			return inode_service.InodeRef{}, fmt.Errorf("%w: %q", ss.ErrNotDirectory, path)
		}
		inum, err := s.dirs.Lookup(cur, name)
		if err != nil {
			if errors.Is(err, ds.ErrNotFound) {
				return inode_service.InodeRef{}, fmt.Errorf("%w: %q", ss.ErrNotFound, path)
			}
			return inode_service.InodeRef{}, translate(err)
		}
		if cur, err = s.inodes.Get(inum); err != nil {
			return inode_service.InodeRef{}, err
		}
	}
	return cur, nil
}

// resolveParent finds the directory that holds the last component of path.
func (s *SimpleStorageService) resolveParent(path string) (inode_service.InodeRef, string, error) {
	parentPath, name, err := ss.SplitPath(path)
	if err != nil {
		return inode_service.InodeRef{}, "", fmt.Errorf("%w: %q", err, path)
	}
	parent, err := s.resolve(parentPath)
	if err != nil {
		if errors.Is(err, ss.ErrNotFound) {
			return inode_service.InodeRef{}, "", fmt.Errorf("%w: %q", ss.ErrParentNotFound, parentPath)
		}
		return inode_service.InodeRef{}, "", err
	}
	if !parent.IsDir() {
		return inode_service.InodeRef{}, "", fmt.Errorf("%w: %q", ss.ErrNotDirectory, parentPath)
	}
	return parent, name, nil
}

func (s *SimpleStorageService) attributes(ino inode_service.InodeRef) *ss.Attributes {
	return &ss.Attributes{
		Inum:      ino.Inum,
		Refs:      ino.Refs(),
		Mode:      ino.Mode(),
		Size:      ino.Size(),
		Blocks:    s.inodes.BlocksUsed(ino),
		BlockSize: s.bs.BlockSize(),
	}
}

// --- Namespace ---

func (s *SimpleStorageService) Resolve(ctx context.Context, path string) (inode_service.Inum, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.resolve(path)
	if err != nil {
		return -1, err
	}
	return ino.Inum, nil
}

func (s *SimpleStorageService) Stat(ctx context.Context, path string) (*ss.Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return s.attributes(ino), nil
}

func (s *SimpleStorageService) Create(ctx context.Context, path string, mode uint32) (*ss.Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ls.Debug(log_service.LogEvent{
		Message:  "Create Request",
		Metadata: map[string]any{"path": path, "mode": fmt.Sprintf("%o", mode)},
	})

	// 1. Target must not exist
	if _, err := s.resolve(path); err == nil {
		return nil, fmt.Errorf("%w: %q", ss.ErrAlreadyExists, path)
	} else if !errors.Is(err, ss.ErrNotFound) {
		return nil, err
	}

	// 2. Parent must be a directory
	parent, name, err := s.resolveParent(path)
	if err != nil {
		return nil, err
	}
	if err := ds.ValidateName(name); err != nil {
		return nil, translate(err)
	}

	// 3. Allocate and link the new inode
	inum, err := s.inodes.Allocate()
	if err != nil {
		s.ls.Warn(log_service.LogEvent{
			Message:  "Inode allocation failed",
			Metadata: map[string]any{"path": path, "error": err.Error()},
		})
		return nil, translate(err)
	}
	ino, _ := s.inodes.Get(inum)
	if mode&inode_service.ModeTypeMask == 0 {
		mode |= inode_service.ModeRegular
	}
	ino.SetMode(mode)

	if err := s.dirs.Put(parent, name, inum); err != nil {
		// Roll back the orphan inode
		ino.SetRefs(0)
		s.inodes.Free(inum)
		return nil, translate(err)
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Created entry",
		Metadata: map[string]any{"path": path, "inum": inum},
	})
	return s.attributes(ino), nil
}

func (s *SimpleStorageService) Unlink(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.unlink(path)
}

func (s *SimpleStorageService) unlink(path string) error {
	parent, name, err := s.resolveParent(path)
	if err != nil {
		return err
	}

	inum, err := s.dirs.Lookup(parent, name)
	if err != nil {
		return translate(err)
	}
	ino, err := s.inodes.Get(inum)
	if err != nil {
		return err
	}
	if ino.IsDir() && ino.Refs() <= 1 {
		entries, err := s.dirs.Entries(ino)
		if err != nil {
			return translate(err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("%w: %q", ss.ErrNotEmpty, path)
		}
	}

	if err := s.dirs.Delete(parent, name); err != nil {
		return translate(err)
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Unlinked entry",
		Metadata: map[string]any{"path": path, "inum": inum},
	})
	return nil
}

func (s *SimpleStorageService) Link(ctx context.Context, existing string, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.resolve(existing)
	if err != nil {
		return err
	}
	if ino.IsDir() {
		return fmt.Errorf("%w: cannot hard link %q", ss.ErrIsDirectory, existing)
	}
	return s.link(ino, newPath)
}

func (s *SimpleStorageService) link(ino inode_service.InodeRef, newPath string) error {
	if _, err := s.resolve(newPath); err == nil {
		return fmt.Errorf("%w: %q", ss.ErrAlreadyExists, newPath)
	} else if !errors.Is(err, ss.ErrNotFound) {
		return err
	}

	parent, name, err := s.resolveParent(newPath)
	if err != nil {
		return err
	}
	if err := s.dirs.Put(parent, name, ino.Inum); err != nil {
		return translate(err)
	}
	ino.SetRefs(ino.Refs() + 1)

	s.ls.Debug(log_service.LogEvent{
		Message:  "Linked entry",
		Metadata: map[string]any{"path": newPath, "inum": ino.Inum, "refs": ino.Refs()},
	})
	return nil
}

func (s *SimpleStorageService) Rename(ctx context.Context, from string, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ls.Debug(log_service.LogEvent{
		Message:  "Rename Request",
		Metadata: map[string]any{"from": from, "to": to},
	})

	if _, _, err := ss.SplitPath(from); err != nil {
		return fmt.Errorf("%w: cannot rename %q", err, from)
	}
	ino, err := s.resolve(from)
	if err != nil {
		return err
	}
	if ss.Clean(from) == ss.Clean(to) {
		return nil
	}
	if ino.IsDir() && ss.IsWithin(to, from) {
		return fmt.Errorf("%w: cannot move %q inside itself", ss.ErrInvalidPath, from)
	}

	// 1. Stage the new name
	if err := s.link(ino, to); err != nil {
		return err
	}

	// 2. Drop the old name, or unstage the new one
	if err := s.unlink(from); err != nil {
		s.ls.Error(log_service.LogEvent{
			Message:  "Rename failed after link, rolling back",
			Metadata: map[string]any{"from": from, "to": to, "error": err.Error()},
		})
		if rbErr := s.unlink(to); rbErr != nil {
			return multierr.Append(err, rbErr)
		}
		return err
	}

	s.ls.Info(log_service.LogEvent{
		Message:  "Renamed entry",
		Metadata: map[string]any{"from": from, "to": to, "inum": ino.Inum},
	})
	return nil
}

func (s *SimpleStorageService) List(ctx context.Context, path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	names, err := s.dirs.List(ino)
	return names, translate(err)
}

func (s *SimpleStorageService) ReadDir(ctx context.Context, path string) ([]ss.DirEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ino, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := s.dirs.Entries(ino)
	if err != nil {
		return nil, translate(err)
	}

	out := make([]ss.DirEntry, 0, len(entries))
	for _, e := range entries {
		child, err := s.inodes.Get(e.Inum)
		if err != nil {
			return nil, err
		}
		out = append(out, ss.DirEntry{Name: e.Name, Inum: e.Inum, Mode: child.Mode()})
	}
	return out, nil
}

// --- Data ---

func (s *SimpleStorageService) regularFile(path string) (inode_service.InodeRef, error) {
	ino, err := s.resolve(path)
	if err != nil {
		return inode_service.InodeRef{}, err
	}
	if ino.IsDir() {
		return inode_service.InodeRef{}, fmt.Errorf("%w: %q", ss.ErrIsDirectory, path)
	}
	return ino, nil
}

func (s *SimpleStorageService) Truncate(ctx context.Context, path string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if size < 0 {
		return fmt.Errorf("%w: negative size %d", ss.ErrInvalidArgument, size)
	}
	ino, err := s.regularFile(path)
	if err != nil {
		return err
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Truncate Request",
		Metadata: map[string]any{"path": path, "from": ino.Size(), "to": size},
	})

	if size > ino.Size() {
		return translate(s.inodes.Grow(ino, size))
	}
	return translate(s.inodes.Shrink(ino, size))
}

func (s *SimpleStorageService) Read(ctx context.Context, path string, offset int64, length int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("%w: offset %d length %d", ss.ErrInvalidArgument, offset, length)
	}
	ino, err := s.regularFile(path)
	if err != nil {
		return nil, err
	}

	// 1. Bounds check
	size := ino.Size()
	if offset >= size {
		return []byte{}, nil
	}
	if length > size-offset {
		length = size - offset
	}

	// 2. Copy block by block
	bsz := int64(s.bs.BlockSize())
	result := make([]byte, length)
	for done := int64(0); done < length; {
		pos := offset + done
		b, err := s.inodes.BlockForOffset(ino, pos)
		if err != nil {
			return nil, err
		}
		done += int64(copy(result[done:], s.bs.Block(b)[pos%bsz:]))
	}
	return result, nil
}

func (s *SimpleStorageService) Write(ctx context.Context, path string, offset int64, data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 {
		return 0, fmt.Errorf("%w: offset %d", ss.ErrInvalidArgument, offset)
	}
	ino, err := s.regularFile(path)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Write Request",
		Metadata: map[string]any{"path": path, "offset": offset, "length": len(data)},
	})

	// 1. Make room for the whole write
	if maxSize := s.inodes.MaxFileSize(); int64(len(data)) > maxSize || offset > maxSize-int64(len(data)) {
		return 0, translate(fmt.Errorf("%w: write of %d bytes at %d exceeds %d", inode_service.ErrFileTooLarge, len(data), offset, maxSize))
	}
	end := offset + int64(len(data))
	if end > ino.Size() {
		if err := s.inodes.Grow(ino, end); err != nil {
			s.ls.Warn(log_service.LogEvent{
				Message:  "Failed to grow file for write",
				Metadata: map[string]any{"path": path, "size": end, "error": err.Error()},
			})
			return 0, translate(err)
		}
	}

	// 2. Copy block by block
	bsz := int64(s.bs.BlockSize())
	var written int64
	for written < int64(len(data)) {
		pos := offset + written
		b, err := s.inodes.BlockForOffset(ino, pos)
		if err != nil {
			return written, err
		}
		written += int64(copy(s.bs.Block(b)[pos%bsz:], data[written:]))
	}
	return written, nil
}

func (s *SimpleStorageService) StatFs(ctx context.Context) (*ss.FileSystemStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb := s.bs.Superblock()
	return &ss.FileSystemStats{
		FsID:        sb.FsID.String(),
		CreatedAt:   sb.CreatedAt,
		BlockSize:   s.bs.BlockSize(),
		TotalBlocks: s.bs.BlockCount(),
		FreeBlocks:  s.bs.FreeBlocks(),
		TotalInodes: s.inodes.Count(),
		FreeInodes:  s.inodes.FreeInodes(),
		MaxFileSize: s.inodes.MaxFileSize(),
		MaxNameLen:  ds.MaxNameLen,
	}, nil
}

var _ ss.StorageService = (*SimpleStorageService)(nil)
