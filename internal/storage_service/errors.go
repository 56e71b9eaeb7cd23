package storage_service

import "errors"

var (
	ErrNotFound        = errors.New("no such file or directory")
	ErrAlreadyExists   = errors.New("file exists")
	ErrParentNotFound  = errors.New("parent directory not found")
	ErrExhausted       = errors.New("no space left on device")
	ErrIsDirectory     = errors.New("is a directory")
	ErrNotDirectory    = errors.New("not a directory")
	ErrNotEmpty        = errors.New("directory not empty")
	ErrInvalidPath     = errors.New("invalid path")
	ErrInvalidArgument = errors.New("invalid argument")
)
