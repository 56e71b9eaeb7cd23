package fuse_adapter

import (
	"errors"
	"os"
	"syscall"

	"bazil.org/fuse"
	ds "github.com/AnishMulay/sandfs/internal/directory_service"
	"github.com/AnishMulay/sandfs/internal/inode_service"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
)

// Errno maps a storage error onto the errno the kernel expects. Anything
// unrecognised becomes EIO.
func Errno(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ss.ErrNotFound), errors.Is(err, ss.ErrParentNotFound):
		return fuse.Errno(syscall.ENOENT)
	case errors.Is(err, ss.ErrAlreadyExists):
		return fuse.Errno(syscall.EEXIST)
	case errors.Is(err, inode_service.ErrFileTooLarge):
		return fuse.Errno(syscall.EFBIG)
	case errors.Is(err, ss.ErrExhausted):
		return fuse.Errno(syscall.ENOSPC)
	case errors.Is(err, ss.ErrIsDirectory):
		return fuse.Errno(syscall.EISDIR)
	case errors.Is(err, ss.ErrNotDirectory):
		return fuse.Errno(syscall.ENOTDIR)
	case errors.Is(err, ss.ErrNotEmpty):
		return fuse.Errno(syscall.ENOTEMPTY)
	case errors.Is(err, ds.ErrNameTooLong):
		return fuse.Errno(syscall.ENAMETOOLONG)
	case errors.Is(err, ss.ErrInvalidPath), errors.Is(err, ss.ErrInvalidArgument):
		return fuse.Errno(syscall.EINVAL)
	default:
		return fuse.Errno(syscall.EIO)
	}
}

// FileMode converts an on-disk mode into an os.FileMode.
func FileMode(mode uint32) os.FileMode {
	m := os.FileMode(mode & 0777)
	if inode_service.IsDir(mode) {
		m |= os.ModeDir
	}
	return m
}

// DiskMode converts an os.FileMode into the on-disk mode bits.
func DiskMode(m os.FileMode) uint32 {
	if m.IsDir() {
		return inode_service.ModeDir | uint32(m.Perm())
	}
	return inode_service.ModeRegular | uint32(m.Perm())
}

// nodeID keeps inode 0 (the root) away from the zero id the kernel treats
// as unset.
func nodeID(inum inode_service.Inum) uint64 {
	return uint64(inum) + 1
}

func fillAttr(src *ss.Attributes, a *fuse.Attr) {
	a.Inode = nodeID(src.Inum)
	a.Mode = FileMode(src.Mode)
	a.Size = uint64(src.Size)
	a.Nlink = uint32(src.Refs)
	a.BlockSize = uint32(src.BlockSize)
	a.Blocks = uint64(src.Blocks) * uint64(src.BlockSize) / 512
}

func direntType(mode uint32) fuse.DirentType {
	if inode_service.IsDir(mode) {
		return fuse.DT_Dir
	}
	return fuse.DT_File
}
