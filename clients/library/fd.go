package sandlib

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	ss "github.com/AnishMulay/sandfs/internal/storage_service"
)

const firstUserFD uint64 = 3
const maxBufferSize = 2 * 1024 * 1024
const defaultFilePerm = 0o644

// Open implements a Stat -> Create -> Stat retry flow to handle create races.
// mode takes os.O_* flags. Files created here get permissions 0644.
func (c *SandfsClient) Open(path string, mode int) (int, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	ctx := context.Background()
	cleanPath := ss.Clean(path)

	attr, err := c.Stat(ctx, cleanPath)
	switch {
	case err == nil:
	case errors.Is(err, ss.ErrNotFound) && mode&os.O_CREATE != 0:
		attr, err = c.Create(ctx, cleanPath, defaultFilePerm)
		if errors.Is(err, ss.ErrAlreadyExists) {
			attr, err = c.Stat(ctx, cleanPath)
		}
		if err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	if attr.IsDir() {
		return 0, fmt.Errorf("open %q: %w", cleanPath, ss.ErrIsDirectory)
	}
	if mode&os.O_TRUNC != 0 && attr.Size > 0 {
		if err := c.Truncate(ctx, cleanPath, 0); err != nil {
			return 0, err
		}
		attr.Size = 0
	}

	offset := int64(0)
	if mode&os.O_APPEND != 0 {
		offset = attr.Size
	}
	return c.addFD(cleanPath, mode, offset)
}

func (c *SandfsClient) lookupFD(fd int) (*SandfsFD, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if fd < 0 {
		return nil, fmt.Errorf("bad file descriptor")
	}

	c.TableMu.RLock()
	fileStruct := c.OpenFiles[uint64(fd)]
	c.TableMu.RUnlock()

	if fileStruct == nil {
		return nil, fmt.Errorf("bad file descriptor")
	}
	return fileStruct, nil
}

func (c *SandfsClient) Read(fd int, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid read length %d", n)
	}
	fileStruct, err := c.lookupFD(fd)
	if err != nil {
		return nil, err
	}

	fileStruct.Mu.Lock()
	defer fileStruct.Mu.Unlock()

	if fileStruct.Mode&os.O_WRONLY != 0 && fileStruct.Mode&os.O_RDWR == 0 {
		return nil, fmt.Errorf("file not open for reading")
	}

	// Buffered writes must be visible to our own reads.
	if err := c.flush(fileStruct, "read"); err != nil {
		return nil, err
	}

	data, err := c.ReadAt(context.Background(), fileStruct.FilePath, fileStruct.Offset, int64(n))
	if err != nil {
		return nil, err
	}
	fileStruct.Offset += int64(len(data))
	return data, nil
}

func (c *SandfsClient) Write(fd int, data []byte) (int, error) {
	fileStruct, err := c.lookupFD(fd)
	if err != nil {
		return 0, err
	}

	fileStruct.Mu.Lock()
	defer fileStruct.Mu.Unlock()

	if fileStruct.Mode&os.O_WRONLY == 0 && fileStruct.Mode&os.O_RDWR == 0 {
		return 0, fmt.Errorf("file not open for writing")
	}

	if len(fileStruct.Buffer)+len(data) > maxBufferSize {
		if err := c.flush(fileStruct, "write"); err != nil {
			return 0, err
		}
	}

	fileStruct.Buffer = append(fileStruct.Buffer, data...)
	fileStruct.Offset += int64(len(data))
	return len(data), nil
}

func (c *SandfsClient) Fsync(fd int) error {
	fileStruct, err := c.lookupFD(fd)
	if err != nil {
		return err
	}

	fileStruct.Mu.Lock()
	defer fileStruct.Mu.Unlock()
	return c.flush(fileStruct, "fsync")
}

func (c *SandfsClient) Close(fd int) error {
	if err := c.check(); err != nil {
		return err
	}
	if fd < 0 {
		return fmt.Errorf("bad file descriptor")
	}

	c.TableMu.Lock()
	fileStruct := c.OpenFiles[uint64(fd)]
	if fileStruct == nil {
		c.TableMu.Unlock()
		return fmt.Errorf("bad file descriptor")
	}
	delete(c.OpenFiles, uint64(fd))
	c.TableMu.Unlock()

	fileStruct.Mu.Lock()
	defer fileStruct.Mu.Unlock()
	return c.flush(fileStruct, "close")
}

// flush writes the buffered bytes, which end at the current offset.
func (c *SandfsClient) flush(fileStruct *SandfsFD, op string) error {
	if len(fileStruct.Buffer) == 0 {
		return nil
	}

	flushOffset := fileStruct.Offset - int64(len(fileStruct.Buffer))
	if _, err := c.WriteAt(context.Background(), fileStruct.FilePath, flushOffset, fileStruct.Buffer); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	fileStruct.Buffer = fileStruct.Buffer[:0]
	return nil
}

func (c *SandfsClient) addFD(filePath string, mode int, offset int64) (int, error) {
	c.TableMu.Lock()
	defer c.TableMu.Unlock()

	if c.OpenFiles == nil {
		c.OpenFiles = make(map[uint64]*SandfsFD)
	}

	fd := firstUserFD
	for {
		if _, exists := c.OpenFiles[fd]; !exists {
			break
		}
		if fd == math.MaxUint64 {
			return 0, fmt.Errorf("no free file descriptor available")
		}
		fd++
	}

	if fd > uint64(math.MaxInt) {
		return 0, fmt.Errorf("file descriptor exceeds int range")
	}

	c.OpenFiles[fd] = &SandfsFD{
		FD:       fd,
		FilePath: filePath,
		Mode:     mode,
		Offset:   offset,
		Buffer:   make([]byte, 0),
	}

	return int(fd), nil
}
