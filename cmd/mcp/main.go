package main

import (
	"flag"
	"fmt"
	"log"

	sandlib "github.com/AnishMulay/sandfs/clients/library"
	"github.com/AnishMulay/sandfs/internal/config"
	"github.com/AnishMulay/sandfs/servers/wire"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	configPath := flag.String("config", "sandfs-mcp.yaml", "Path to the YAML config (created if missing)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// stdout carries the protocol, so the zap backend (stderr) or the log
	// file are the only safe sinks.
	ls, closeLog, err := wire.Logger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer closeLog()

	comm := wire.Communicator(cfg, "127.0.0.1:0", ls)
	defer comm.Stop()

	registry := &ServerRegistry{
		Clients:       make(map[string]*sandlib.SandfsClient),
		Addresses:     make(map[string]string),
		DefaultServer: cfg.Client.DefaultServer,
		LogServer:     ls,
	}
	for _, s := range cfg.Client.Servers {
		registry.Addresses[s.ID] = s.Address
		registry.Clients[s.ID] = sandlib.NewSandfsClient(s.Address, comm)
	}

	s := server.NewMCPServer(
		"sandfs",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	addTools(s, registry)

	// Start the stdio server
	if err := server.ServeStdio(s); err != nil {
		fmt.Printf("Server error: %v\n", err)
	}
}
