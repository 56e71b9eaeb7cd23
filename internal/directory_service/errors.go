package directory_service

import "errors"

var (
	ErrNotFound      = errors.New("directory entry not found")
	ErrInvalidName   = errors.New("invalid entry name")
	ErrNameTooLong   = errors.New("entry name too long")
	ErrDirectoryFull = errors.New("directory is full")
	ErrNotDirectory  = errors.New("inode is not a directory")
	ErrRootNotFirst  = errors.New("root directory must be the first inode")
)
