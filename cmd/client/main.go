package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	sandlib "github.com/AnishMulay/sandfs/clients/library"
	"github.com/AnishMulay/sandfs/internal/config"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
	"github.com/AnishMulay/sandfs/servers/wire"
)

func main() {
	configPath := flag.String("config", "sandfs.yaml", "Path to the YAML config (created if missing)")
	serverID := flag.String("server", "", "Server id from the config (defaults to the default server)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	serverAddr, ok := cfg.ServerAddress(*serverID)
	if envAddr := os.Getenv("SANDFS_ADDR"); envAddr != "" {
		serverAddr, ok = envAddr, true
	}
	if !ok {
		log.Fatalf("Server %q not found in %s", *serverID, *configPath)
	}

	ls, closeLog, err := wire.Logger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer closeLog()

	comm := wire.Communicator(cfg, "127.0.0.1:0", ls)
	defer comm.Stop()
	client := sandlib.NewSandfsClient(serverAddr, comm)

	dir := fmt.Sprintf("/smoke-%d", time.Now().UnixNano()%1_000_000)
	steps := []struct {
		name string
		run  func(ctx context.Context, c *sandlib.SandfsClient, dir string) error
	}{
		{"link and unlink", linkScenario},
		{"cross block write", crossBlockScenario},
		{"indirect block", indirectScenario},
	}

	ctx := context.Background()
	if _, err := client.Mkdir(ctx, dir, 0755); err != nil {
		log.Fatalf("Mkdir %s failed on %s: %v", dir, serverAddr, err)
	}
	for _, step := range steps {
		if err := step.run(ctx, client, dir); err != nil {
			log.Fatalf("FAIL: %s: %v", step.name, err)
		}
		log.Printf("PASS: %s", step.name)
	}
	if err := client.Unlink(ctx, dir); err != nil {
		log.Fatalf("Cleanup of %s failed: %v", dir, err)
	}
	log.Printf("All scenarios passed against %s", serverAddr)
}

func expectSize(ctx context.Context, c *sandlib.SandfsClient, path string, size int64, refs int32) error {
	attr, err := c.Stat(ctx, path)
	if err != nil {
		return err
	}
	if attr.Size != size || attr.Refs != refs {
		return fmt.Errorf("stat %s: size=%d refs=%d, want size=%d refs=%d", path, attr.Size, attr.Refs, size, refs)
	}
	return nil
}

func linkScenario(ctx context.Context, c *sandlib.SandfsClient, dir string) error {
	file, file2 := dir+"/file", dir+"/file2"
	data := []byte("0123456789")

	if _, err := c.Create(ctx, file, 0644); err != nil {
		return err
	}
	if err := expectSize(ctx, c, file, 0, 1); err != nil {
		return err
	}
	if _, err := c.WriteAt(ctx, file, 0, data); err != nil {
		return err
	}
	got, err := c.ReadAt(ctx, file, 0, 10)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return fmt.Errorf("read %q, want %q", got, data)
	}

	if err := c.Truncate(ctx, file, 5); err != nil {
		return err
	}
	if got, err = c.ReadAt(ctx, file, 0, 10); err != nil {
		return err
	}
	if !bytes.Equal(got, data[:5]) {
		return fmt.Errorf("read after truncate %q, want %q", got, data[:5])
	}

	if err := c.Link(ctx, file, file2); err != nil {
		return err
	}
	if err := expectSize(ctx, c, file2, 5, 2); err != nil {
		return err
	}
	if err := c.Unlink(ctx, file); err != nil {
		return err
	}
	if _, err := c.Stat(ctx, file); !errors.Is(err, ss.ErrNotFound) {
		return fmt.Errorf("stat after unlink: %v, want not found", err)
	}
	if err := expectSize(ctx, c, file2, 5, 1); err != nil {
		return err
	}
	return c.Unlink(ctx, file2)
}

func crossBlockScenario(ctx context.Context, c *sandlib.SandfsClient, dir string) error {
	path := dir + "/cross"
	stats, err := c.StatFs(ctx)
	if err != nil {
		return err
	}
	offset := int64(stats.BlockSize - 6)
	data := []byte("0123456789")

	if _, err := c.Create(ctx, path, 0644); err != nil {
		return err
	}
	if _, err := c.WriteAt(ctx, path, offset, data); err != nil {
		return err
	}
	got, err := c.ReadAt(ctx, path, offset, int64(len(data)))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, data) {
		return fmt.Errorf("read %q at %d, want %q", got, offset, data)
	}
	return c.Unlink(ctx, path)
}

// indirectScenario grows a file to three blocks and back, watching the free
// block count: the third block and the indirect block come and go together.
func indirectScenario(ctx context.Context, c *sandlib.SandfsClient, dir string) error {
	path := dir + "/big"
	if _, err := c.Create(ctx, path, 0644); err != nil {
		return err
	}
	before, err := c.StatFs(ctx)
	if err != nil {
		return err
	}

	bs := int64(before.BlockSize)
	if err := c.Truncate(ctx, path, 2*bs+1); err != nil {
		return err
	}
	grown, err := c.StatFs(ctx)
	if err != nil {
		return err
	}
	if used := before.FreeBlocks - grown.FreeBlocks; used != 3 {
		return fmt.Errorf("growing to three blocks used %d blocks, want 3", used)
	}

	if err := c.Truncate(ctx, path, bs); err != nil {
		return err
	}
	shrunk, err := c.StatFs(ctx)
	if err != nil {
		return err
	}
	if shrunk.FreeBlocks != before.FreeBlocks {
		return fmt.Errorf("free blocks after shrink %d, want %d", shrunk.FreeBlocks, before.FreeBlocks)
	}
	return c.Unlink(ctx, path)
}
