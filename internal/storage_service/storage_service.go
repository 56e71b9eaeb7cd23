package storage_service

import (
	"context"
	"time"

	"github.com/AnishMulay/sandfs/internal/inode_service"
)

type Attributes struct {
	Inum      inode_service.Inum `json:"inum"`
	Refs      int32              `json:"refs"`
	Mode      uint32             `json:"mode"`
	Size      int64              `json:"size"`
	Blocks    int                `json:"blocks"`
	BlockSize int                `json:"blockSize"`
}

func (a *Attributes) IsDir() bool {
	return inode_service.IsDir(a.Mode)
}

type DirEntry struct {
	Name string             `json:"name"`
	Inum inode_service.Inum `json:"inum"`
	Mode uint32             `json:"mode"`
}

type FileSystemStats struct {
	FsID        string    `json:"fsId"`
	CreatedAt   time.Time `json:"createdAt"`
	BlockSize   int       `json:"blockSize"`
	TotalBlocks int       `json:"totalBlocks"`
	FreeBlocks  int       `json:"freeBlocks"`
	TotalInodes int       `json:"totalInodes"`
	FreeInodes  int       `json:"freeInodes"`
	MaxFileSize int64     `json:"maxFileSize"`
	MaxNameLen  int       `json:"maxNameLen"`
}

// StorageService is the path level API over the inode and directory layers.
// Paths are '/' separated and resolved from the root; empty components are
// ignored, so "", "/" and "//" all name the root.
type StorageService interface {
	// --- Lifecycle ---
	Start() error
	Stop() error

	// --- Namespace ---
	Resolve(ctx context.Context, path string) (inode_service.Inum, error)
	Stat(ctx context.Context, path string) (*Attributes, error)
	Create(ctx context.Context, path string, mode uint32) (*Attributes, error)
	Unlink(ctx context.Context, path string) error
	Link(ctx context.Context, existing string, newPath string) error
	// Rename adds the new name before removing the old one. If the removal
	// fails the new name is dropped again. The pair of steps is not atomic
	// with respect to a crash.
	Rename(ctx context.Context, from string, to string) error
	List(ctx context.Context, path string) ([]string, error)
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)

	// --- Data ---
	Truncate(ctx context.Context, path string, size int64) error
	Read(ctx context.Context, path string, offset int64, length int64) ([]byte, error)
	Write(ctx context.Context, path string, offset int64, data []byte) (int64, error)

	StatFs(ctx context.Context) (*FileSystemStats, error)
}
