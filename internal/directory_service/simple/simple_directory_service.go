package simple

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/AnishMulay/sandfs/internal/block_service"
	ds "github.com/AnishMulay/sandfs/internal/directory_service"
	"github.com/AnishMulay/sandfs/internal/inode_service"
	"github.com/AnishMulay/sandfs/internal/log_service"
)

const (
	offInum      = ds.NameSize
	offAllocated = ds.NameSize + 4
)

// slot is one entry position. A nil entry is a tombstone.
type slot struct {
	entry *ds.DirEntry
}

func (s slot) free() bool { return s.entry == nil }

type SimpleDirectoryService struct {
	bs     block_service.BlockService
	inodes inode_service.InodeService
	ls     log_service.LogService
}

func NewSimpleDirectoryService(bs block_service.BlockService, inodes inode_service.InodeService, ls log_service.LogService) *SimpleDirectoryService {
	return &SimpleDirectoryService{bs: bs, inodes: inodes, ls: ls}
}

func (s *SimpleDirectoryService) Capacity() int {
	return s.bs.BlockSize() / ds.EntrySize
}

func (s *SimpleDirectoryService) InitRoot() (inode_service.Inum, error) {
	inum, err := s.inodes.Allocate()
	if err != nil {
		return -1, err
	}
	root, _ := s.inodes.Get(inum)
	if inum != inode_service.RootInum {
		root.SetRefs(0)
		s.inodes.Free(inum)
		return -1, fmt.Errorf("%w: got inode %d", ds.ErrRootNotFirst, inum)
	}
	root.SetMode(inode_service.ModeDir | 0755)

	s.ls.Info(log_service.LogEvent{Message: "Initialized root directory"})
	return inum, nil
}

func (s *SimpleDirectoryService) data(dir inode_service.InodeRef) ([]byte, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("%w: inode %d", ds.ErrNotDirectory, dir.Inum)
	}
	return s.bs.Block(dir.Pointer(0)), nil
}

func (s *SimpleDirectoryService) slots(dir inode_service.InodeRef) ([]slot, error) {
	raw, err := s.data(dir)
	if err != nil {
		return nil, err
	}
	n := int(dir.Size()) / ds.EntrySize
	out := make([]slot, n)
	for i := range out {
		out[i] = decodeSlot(raw[i*ds.EntrySize : (i+1)*ds.EntrySize])
	}
	return out, nil
}

func decodeSlot(raw []byte) slot {
	if binary.LittleEndian.Uint32(raw[offAllocated:]) == 0 {
		return slot{}
	}
	name := raw[:ds.NameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return slot{entry: &ds.DirEntry{
		Name: string(name),
		Inum: inode_service.Inum(int32(binary.LittleEndian.Uint32(raw[offInum:]))),
	}}
}

func encodeSlot(raw []byte, sl slot) {
	clear(raw[:ds.EntrySize])
	if sl.free() {
		return
	}
	copy(raw[:ds.NameSize], sl.entry.Name)
	binary.LittleEndian.PutUint32(raw[offInum:], uint32(int32(sl.entry.Inum)))
	binary.LittleEndian.PutUint32(raw[offAllocated:], 1)
}

// firstFreeSlot scans from slot 0. Every slot, including the first, is
// eligible for reuse.
func firstFreeSlot(slots []slot) int {
	for i, sl := range slots {
		if sl.free() {
			return i
		}
	}
	return -1
}

func findSlot(slots []slot, name string) int {
	for i, sl := range slots {
		if !sl.free() && sl.entry.Name == name {
			return i
		}
	}
	return -1
}

func (s *SimpleDirectoryService) Lookup(dir inode_service.InodeRef, name string) (inode_service.Inum, error) {
	if name == "" {
		return inode_service.RootInum, nil
	}
	slots, err := s.slots(dir)
	if err != nil {
		return -1, err
	}
	i := findSlot(slots, name)
	if i < 0 {
		return -1, fmt.Errorf("%w: %q", ds.ErrNotFound, name)
	}
	return slots[i].entry.Inum, nil
}

func (s *SimpleDirectoryService) Put(dir inode_service.InodeRef, name string, inum inode_service.Inum) error {
	if err := ds.ValidateName(name); err != nil {
		return err
	}
	slots, err := s.slots(dir)
	if err != nil {
		return err
	}

	idx := firstFreeSlot(slots)
	if idx < 0 {
		if len(slots) >= s.Capacity() {
			s.ls.Warn(log_service.LogEvent{
				Message:  "Directory full",
				Metadata: map[string]any{"dir": dir.Inum, "entries": len(slots)},
			})
			return fmt.Errorf("%w: inode %d holds %d entries", ds.ErrDirectoryFull, dir.Inum, len(slots))
		}
		if err := s.inodes.Grow(dir, dir.Size()+ds.EntrySize); err != nil {
			return err
		}
		idx = len(slots)
	}

	raw, _ := s.data(dir)
	encodeSlot(raw[idx*ds.EntrySize:], slot{entry: &ds.DirEntry{Name: name, Inum: inum}})

	s.ls.Debug(log_service.LogEvent{
		Message:  "Put directory entry",
		Metadata: map[string]any{"dir": dir.Inum, "name": name, "inum": inum, "slot": idx},
	})
	return nil
}

func (s *SimpleDirectoryService) Delete(dir inode_service.InodeRef, name string) error {
	slots, err := s.slots(dir)
	if err != nil {
		return err
	}
	idx := findSlot(slots, name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ds.ErrNotFound, name)
	}

	target := slots[idx].entry.Inum
	ino, err := s.inodes.Get(target)
	if err != nil {
		return err
	}

	// 1. Tombstone the slot
	raw, _ := s.data(dir)
	encodeSlot(raw[idx*ds.EntrySize:], slot{})

	// 2. Drop the reference
	refs := ino.Refs() - 1
	if refs <= 0 {
		ino.SetRefs(0)
		s.inodes.Free(target)
	} else {
		ino.SetRefs(refs)
	}

	s.ls.Debug(log_service.LogEvent{
		Message:  "Deleted directory entry",
		Metadata: map[string]any{"dir": dir.Inum, "name": name, "inum": target, "refs": max(refs, 0)},
	})
	return nil
}

func (s *SimpleDirectoryService) Entries(dir inode_service.InodeRef) ([]ds.DirEntry, error) {
	slots, err := s.slots(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]ds.DirEntry, 0, len(slots))
	for _, sl := range slots {
		if !sl.free() {
			entries = append(entries, *sl.entry)
		}
	}
	return entries, nil
}

func (s *SimpleDirectoryService) List(dir inode_service.InodeRef) ([]string, error) {
	entries, err := s.Entries(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

var _ ds.DirectoryService = (*SimpleDirectoryService)(nil)
