package block_service

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/AnishMulay/sandfs/internal/bitmap"
	"github.com/AnishMulay/sandfs/internal/log_service"
	"github.com/google/uuid"
)

const (
	Magic   uint32 = 0x53414e44 // "SAND"
	Version uint32 = 1

	superblockSize = 64
)

// Layout describes where each region lives inside the reserved area at the
// front of the device.
type Layout struct {
	BlockSize      int
	BlockCount     int
	BlockBitmapOff int
	InodeBitmapOff int
	InodeTableOff  int
	Reserved       int
}

func NewLayout(blockSize, blockCount int) (Layout, error) {
	if blockSize < superblockSize || blockSize%4 != 0 || blockCount <= 0 {
		return Layout{}, fmt.Errorf("%w: block size %d, block count %d", ErrInvalidGeometry, blockSize, blockCount)
	}

	l := Layout{BlockSize: blockSize, BlockCount: blockCount}
	l.BlockBitmapOff = superblockSize
	l.InodeBitmapOff = l.BlockBitmapOff + bitmap.BytesFor(blockCount)
	l.InodeTableOff = l.InodeBitmapOff + bitmap.BytesFor(blockCount)
	end := l.InodeTableOff + blockCount*InodeSize
	l.Reserved = (end + blockSize - 1) / blockSize

	if l.Reserved >= blockCount {
		return Layout{}, fmt.Errorf("%w: %d blocks leave no room for data", ErrInvalidGeometry, blockCount)
	}
	return l, nil
}

// Size is the number of bytes the device occupies.
func (l Layout) Size() int {
	return l.BlockSize * l.BlockCount
}

// Disk implements the data half of BlockService over a byte slice. Backends
// own the slice and embed a Disk once it is mounted.
type Disk struct {
	layout Layout
	data   []byte
	sb     Superblock
	ls     log_service.LogService
}

// Mount interprets data as a device with the given layout. A device without
// a valid superblock is formatted. A valid superblock that disagrees with the
// layout is rejected.
func Mount(data []byte, layout Layout, ls log_service.LogService) (*Disk, error) {
	if len(data) < layout.Size() {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrInvalidGeometry, len(data), layout.Size())
	}

	d := &Disk{layout: layout, data: data[:layout.Size()], ls: ls}

	sb, ok := d.readSuperblock()
	switch {
	case !ok:
		d.format()
	case sb.BlockSize != layout.BlockSize || sb.BlockCount != layout.BlockCount:
		return nil, fmt.Errorf("%w: image has %dx%d, configured %dx%d",
			ErrGeometryMismatch, sb.BlockCount, sb.BlockSize, layout.BlockCount, layout.BlockSize)
	default:
		d.sb = sb
		ls.Info(log_service.LogEvent{
			Message:  "Mounted existing image",
			Metadata: map[string]any{"fsID": sb.FsID.String(), "freeBlocks": d.FreeBlocks()},
		})
	}
	return d, nil
}

func (d *Disk) format() {
	clear(d.data[:d.layout.Reserved*d.layout.BlockSize])

	d.sb = Superblock{
		Magic:      Magic,
		Version:    Version,
		BlockSize:  d.layout.BlockSize,
		BlockCount: d.layout.BlockCount,
		FsID:       uuid.New(),
		CreatedAt:  time.Now().UTC(),
	}
	d.writeSuperblock()

	bm := d.blockBitmap()
	for i := 0; i < d.layout.Reserved; i++ {
		bm.Set(i, true)
	}

	d.ls.Info(log_service.LogEvent{
		Message: "Formatted image",
		Metadata: map[string]any{
			"fsID":       d.sb.FsID.String(),
			"blockSize":  d.layout.BlockSize,
			"blockCount": d.layout.BlockCount,
			"reserved":   d.layout.Reserved,
		},
	})
}

func (d *Disk) readSuperblock() (Superblock, bool) {
	raw := d.data[:superblockSize]
	if binary.LittleEndian.Uint32(raw[0:]) != Magic {
		return Superblock{}, false
	}

	var sb Superblock
	sb.Magic = Magic
	sb.Version = binary.LittleEndian.Uint32(raw[4:])
	sb.BlockSize = int(binary.LittleEndian.Uint32(raw[8:]))
	sb.BlockCount = int(binary.LittleEndian.Uint32(raw[12:]))
	copy(sb.FsID[:], raw[16:32])
	sb.CreatedAt = time.Unix(0, int64(binary.LittleEndian.Uint64(raw[32:]))).UTC()
	if sb.Version != Version {
		return Superblock{}, false
	}
	return sb, true
}

func (d *Disk) writeSuperblock() {
	raw := d.data[:superblockSize]
	binary.LittleEndian.PutUint32(raw[0:], d.sb.Magic)
	binary.LittleEndian.PutUint32(raw[4:], d.sb.Version)
	binary.LittleEndian.PutUint32(raw[8:], uint32(d.sb.BlockSize))
	binary.LittleEndian.PutUint32(raw[12:], uint32(d.sb.BlockCount))
	copy(raw[16:32], d.sb.FsID[:])
	binary.LittleEndian.PutUint64(raw[32:], uint64(d.sb.CreatedAt.UnixNano()))
}

func (d *Disk) blockBitmap() bitmap.Bitmap {
	return bitmap.Bitmap(d.data[d.layout.BlockBitmapOff:d.layout.InodeBitmapOff])
}

func (d *Disk) BlockSize() int      { return d.layout.BlockSize }
func (d *Disk) BlockCount() int     { return d.layout.BlockCount }
func (d *Disk) ReservedBlocks() int { return d.layout.Reserved }

func (d *Disk) Superblock() Superblock {
	return d.sb
}

func (d *Disk) Block(b BlockNum) []byte {
	if b < 0 || int(b) >= d.layout.BlockCount {
		panic(fmt.Sprintf("block %d out of range [0, %d)", b, d.layout.BlockCount))
	}
	start := int(b) * d.layout.BlockSize
	return d.data[start : start+d.layout.BlockSize : start+d.layout.BlockSize]
}

func (d *Disk) Alloc() (BlockNum, error) {
	bm := d.blockBitmap()
	i, ok := bm.FirstClear(d.layout.BlockCount)
	if !ok {
		d.ls.Warn(log_service.LogEvent{Message: "Block allocation failed, device full"})
		return 0, ErrNoSpace
	}
	bm.Set(i, true)

	b := BlockNum(i)
	clear(d.Block(b))
	return b, nil
}

func (d *Disk) Free(b BlockNum) {
	if int(b) < d.layout.Reserved {
		panic(fmt.Sprintf("free of reserved block %d", b))
	}
	bm := d.blockBitmap()
	if !bm.Get(int(b)) {
		panic(fmt.Sprintf("double free of block %d", b))
	}
	bm.Set(int(b), false)
}

// IsAllocated reports whether block b is marked used.
func (d *Disk) IsAllocated(b BlockNum) bool {
	return d.blockBitmap().Get(int(b))
}

func (d *Disk) FreeBlocks() int {
	return d.layout.BlockCount - d.blockBitmap().Count(d.layout.BlockCount)
}

func (d *Disk) InodeBitmap() bitmap.Bitmap {
	return bitmap.Bitmap(d.data[d.layout.InodeBitmapOff:d.layout.InodeTableOff])
}

func (d *Disk) InodeTable() []byte {
	return d.data[d.layout.InodeTableOff : d.layout.InodeTableOff+d.layout.BlockCount*InodeSize]
}
