package simple

import (
	"fmt"
	"strings"
	"testing"

	"github.com/AnishMulay/sandfs/internal/block_service/inmemory"
	ds "github.com/AnishMulay/sandfs/internal/directory_service"
	"github.com/AnishMulay/sandfs/internal/inode_service"
	inodesimple "github.com/AnishMulay/sandfs/internal/inode_service/simple"
	"github.com/AnishMulay/sandfs/internal/log_service/zaplog"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dirs   *SimpleDirectoryService
	inodes *inodesimple.SimpleInodeService
	root   inode_service.InodeRef
}

func newFixture(t *testing.T, blockSize, blockCount int) *fixture {
	t.Helper()
	ls := zaplog.NewNopZapLogService()
	bs, err := inmemory.NewInMemoryBlockService(blockSize, blockCount, ls)
	require.NoError(t, err)
	require.NoError(t, bs.Start())

	inodes := inodesimple.NewSimpleInodeService(bs, ls)
	dirs := NewSimpleDirectoryService(bs, inodes, ls)

	inum, err := dirs.InitRoot()
	require.NoError(t, err)
	require.Equal(t, inode_service.RootInum, inum)
	root, err := inodes.Get(inum)
	require.NoError(t, err)

	return &fixture{dirs: dirs, inodes: inodes, root: root}
}

func (f *fixture) newFile(t *testing.T) inode_service.Inum {
	t.Helper()
	inum, err := f.inodes.Allocate()
	require.NoError(t, err)
	ino, _ := f.inodes.Get(inum)
	ino.SetMode(inode_service.ModeRegular | 0644)
	return inum
}

func TestSimpleDirectoryService_InitRoot(t *testing.T) {
	f := newFixture(t, 512, 64)
	require.Equal(t, inode_service.ModeDir|0755, f.root.Mode())
	require.True(t, f.root.IsDir())
	require.EqualValues(t, 1, f.root.Refs())
	require.EqualValues(t, 0, f.root.Size())

	_, err := f.dirs.InitRoot()
	require.ErrorIs(t, err, ds.ErrRootNotFirst)
	require.False(t, f.inodes.IsAllocated(1), "failed init releases its inode")
}

func TestSimpleDirectoryService_PutLookupDelete(t *testing.T) {
	f := newFixture(t, 512, 64)

	a, b, c := f.newFile(t), f.newFile(t), f.newFile(t)
	require.NoError(t, f.dirs.Put(f.root, "a", a))
	require.NoError(t, f.dirs.Put(f.root, "b", b))
	require.NoError(t, f.dirs.Put(f.root, "c", c))
	require.EqualValues(t, 3*ds.EntrySize, f.root.Size())

	for name, want := range map[string]inode_service.Inum{"a": a, "b": b, "c": c, "": inode_service.RootInum} {
		got, err := f.dirs.Lookup(f.root, name)
		require.NoError(t, err)
		require.Equal(t, want, got, name)
	}

	require.NoError(t, f.dirs.Delete(f.root, "b"))
	_, err := f.dirs.Lookup(f.root, "b")
	require.ErrorIs(t, err, ds.ErrNotFound)
	require.False(t, f.inodes.IsAllocated(b), "last reference frees the inode")

	got, err := f.dirs.Lookup(f.root, "c")
	require.NoError(t, err)
	require.Equal(t, c, got)

	require.ErrorIs(t, f.dirs.Delete(f.root, "b"), ds.ErrNotFound)
	require.ErrorIs(t, f.dirs.Delete(f.root, "missing"), ds.ErrNotFound)

	names, err := f.dirs.List(f.root)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, names)
	require.EqualValues(t, 3*ds.EntrySize, f.root.Size(), "tombstones keep their slot")
}

func TestSimpleDirectoryService_TombstoneReuse(t *testing.T) {
	f := newFixture(t, 512, 64)

	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, f.dirs.Put(f.root, name, f.newFile(t)))
	}
	require.NoError(t, f.dirs.Delete(f.root, "first"))
	require.NoError(t, f.dirs.Delete(f.root, "third"))

	require.NoError(t, f.dirs.Put(f.root, "fourth", f.newFile(t)))
	names, err := f.dirs.List(f.root)
	require.NoError(t, err)
	require.Equal(t, []string{"fourth", "second"}, names, "slot 0 is reused first")
	require.EqualValues(t, 3*ds.EntrySize, f.root.Size())

	require.NoError(t, f.dirs.Put(f.root, "fifth", f.newFile(t)))
	require.NoError(t, f.dirs.Put(f.root, "sixth", f.newFile(t)))
	names, err = f.dirs.List(f.root)
	require.NoError(t, err)
	require.Equal(t, []string{"fourth", "second", "fifth", "sixth"}, names)
	require.EqualValues(t, 4*ds.EntrySize, f.root.Size())
}

func TestSimpleDirectoryService_SharedReferences(t *testing.T) {
	f := newFixture(t, 512, 64)
	inum := f.newFile(t)
	ino, _ := f.inodes.Get(inum)

	require.NoError(t, f.dirs.Put(f.root, "one", inum))
	require.NoError(t, f.dirs.Put(f.root, "two", inum))
	ino.SetRefs(2)

	require.NoError(t, f.dirs.Delete(f.root, "one"))
	require.EqualValues(t, 1, ino.Refs())
	require.True(t, f.inodes.IsAllocated(inum))

	require.NoError(t, f.dirs.Delete(f.root, "two"))
	require.False(t, f.inodes.IsAllocated(inum))
}

func TestSimpleDirectoryService_PutErrors(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		wantErr error
	}{
		{name: "empty", entry: "", wantErr: ds.ErrInvalidName},
		{name: "dot", entry: ".", wantErr: ds.ErrInvalidName},
		{name: "dotdot", entry: "..", wantErr: ds.ErrInvalidName},
		{name: "slash", entry: "a/b", wantErr: ds.ErrInvalidName},
		{name: "too long", entry: strings.Repeat("x", ds.MaxNameLen+1), wantErr: ds.ErrNameTooLong},
		{name: "longest allowed", entry: strings.Repeat("x", ds.MaxNameLen)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 512, 64)
			err := f.dirs.Put(f.root, tt.entry, f.newFile(t))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			got, err := f.dirs.Lookup(f.root, tt.entry)
			require.NoError(t, err)
			require.NotEqual(t, inode_service.RootInum, got)
		})
	}
}

func TestSimpleDirectoryService_Full(t *testing.T) {
	f := newFixture(t, 512, 64)
	capacity := f.dirs.Capacity()
	require.Equal(t, 512/ds.EntrySize, capacity)

	file := f.newFile(t)
	for i := 0; i < capacity; i++ {
		require.NoError(t, f.dirs.Put(f.root, fmt.Sprintf("f%d", i), file))
	}
	require.ErrorIs(t, f.dirs.Put(f.root, "overflow", file), ds.ErrDirectoryFull)

	ino, _ := f.inodes.Get(file)
	ino.SetRefs(int32(capacity))
	require.NoError(t, f.dirs.Delete(f.root, "f3"))
	require.NoError(t, f.dirs.Put(f.root, "overflow", file))
}

func TestSimpleDirectoryService_NotDirectory(t *testing.T) {
	f := newFixture(t, 512, 64)
	file := f.newFile(t)
	ino, _ := f.inodes.Get(file)

	_, err := f.dirs.Lookup(ino, "x")
	require.ErrorIs(t, err, ds.ErrNotDirectory)
	require.ErrorIs(t, f.dirs.Put(ino, "x", file), ds.ErrNotDirectory)
	_, err = f.dirs.List(ino)
	require.ErrorIs(t, err, ds.ErrNotDirectory)
}
