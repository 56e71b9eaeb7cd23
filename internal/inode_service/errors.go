package inode_service

import "errors"

var (
	ErrNoFreeInodes     = errors.New("no free inodes")
	ErrInvalidInum      = errors.New("inode number out of range")
	ErrInvalidSize      = errors.New("invalid size for operation")
	ErrFileTooLarge     = errors.New("file size exceeds addressable maximum")
	ErrOffsetOutOfRange = errors.New("offset beyond allocated blocks")
)
