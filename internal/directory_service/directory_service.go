package directory_service

import (
	"fmt"
	"strings"

	"github.com/AnishMulay/sandfs/internal/inode_service"
)

// Entry record: a NUL padded name, the target inum and an occupancy flag.
const (
	NameSize   = 48
	MaxNameLen = NameSize - 1
	EntrySize  = NameSize + 4 + 4
)

type DirEntry struct {
	Name string
	Inum inode_service.Inum
}

// DirectoryService stores a directory as an array of fixed size entries in
// the first data block of its inode. Deleted entries stay in place as
// tombstones and are reused by later inserts.
type DirectoryService interface {
	InitRoot() (inode_service.Inum, error)

	// Lookup treats the empty name as the root itself.
	Lookup(dir inode_service.InodeRef, name string) (inode_service.Inum, error)
	// Put does not check for an existing entry with the same name.
	Put(dir inode_service.InodeRef, name string, inum inode_service.Inum) error
	// Delete drops one reference to the target and frees it at zero.
	Delete(dir inode_service.InodeRef, name string) error

	List(dir inode_service.InodeRef) ([]string, error)
	Entries(dir inode_service.InodeRef) ([]DirEntry, error)

	// Capacity is the maximum number of slots in one directory.
	Capacity() int
}

// ValidateName rejects names that cannot be stored as a single entry.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case len(name) > MaxNameLen:
		return fmt.Errorf("%w: %d bytes, max %d", ErrNameTooLong, len(name), MaxNameLen)
	}
	return nil
}
