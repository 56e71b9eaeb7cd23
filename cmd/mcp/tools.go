package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sandlib "github.com/AnishMulay/sandfs/clients/library"
	"github.com/AnishMulay/sandfs/internal/log_service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type ServerRegistry struct {
	Clients       map[string]*sandlib.SandfsClient
	Addresses     map[string]string
	DefaultServer string
	LogServer     log_service.LogService
}

type toolHandler func(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error)

// bind resolves the optional "server" argument to a client before calling h.
func (r *ServerRegistry) bind(name string, h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		serverID := request.GetString("server", "")
		if serverID == "" {
			serverID = r.DefaultServer
		}
		client, ok := r.Clients[serverID]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Server %s not found", serverID)), nil
		}

		r.LogServer.Debug(log_service.LogEvent{
			Message:  "MCP tool call",
			Metadata: map[string]any{"tool": name, "server": serverID},
		})
		return h(ctx, request, client)
	}
}

func serverArg() mcp.ToolOption {
	return mcp.WithString("server", mcp.Description("Server id from the config (defaults to the default server)"))
}

func pathArg() mcp.ToolOption {
	return mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path inside the file system"))
}

func addTools(s *server.MCPServer, registry *ServerRegistry) {
	listServersTool := mcp.NewTool("list_servers",
		mcp.WithDescription("List all configured servers"),
	)
	s.AddTool(listServersTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(listServers(registry)), nil
	})

	s.AddTool(mcp.NewTool("list_directory",
		mcp.WithDescription("List the entries of a directory"),
		pathArg(), serverArg(),
	), registry.bind("list_directory", handleListDirectory))

	s.AddTool(mcp.NewTool("stat",
		mcp.WithDescription("Show the attributes of a file or directory"),
		pathArg(), serverArg(),
	), registry.bind("stat", handleStat))

	s.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a file, optionally from an offset"),
		pathArg(),
		mcp.WithNumber("offset", mcp.Description("Byte offset to start reading at")),
		mcp.WithNumber("length", mcp.Description("Maximum bytes to read (defaults to the whole file)")),
		serverArg(),
	), registry.bind("read_file", handleReadFile))

	s.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Write text into a file, creating it if needed"),
		pathArg(),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text to write")),
		mcp.WithNumber("offset", mcp.Description("Byte offset to write at")),
		serverArg(),
	), registry.bind("write_file", handleWriteFile))

	s.AddTool(mcp.NewTool("create",
		mcp.WithDescription("Create an empty file or a directory"),
		pathArg(),
		mcp.WithBoolean("directory", mcp.Description("Create a directory instead of a file")),
		serverArg(),
	), registry.bind("create", handleCreate))

	s.AddTool(mcp.NewTool("unlink",
		mcp.WithDescription("Remove a name from its directory"),
		pathArg(), serverArg(),
	), registry.bind("unlink", handleUnlink))

	s.AddTool(mcp.NewTool("rename",
		mcp.WithDescription("Move a file or directory to a new path"),
		mcp.WithString("from", mcp.Required(), mcp.Description("Existing path")),
		mcp.WithString("to", mcp.Required(), mcp.Description("New path")),
		serverArg(),
	), registry.bind("rename", handleRename))

	s.AddTool(mcp.NewTool("statfs",
		mcp.WithDescription("Show file system usage"),
		serverArg(),
	), registry.bind("statfs", handleStatFs))
}

func listServers(registry *ServerRegistry) string {
	ids := make([]string, 0, len(registry.Addresses))
	for id := range registry.Addresses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("Available servers:\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "- %s: %s\n", id, registry.Addresses[id])
	}
	fmt.Fprintf(&b, "Default server: %s\n", registry.DefaultServer)
	return b.String()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func handleListDirectory(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := client.ReadDir(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entries)
}

func handleStat(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	attr, err := client.Stat(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(attr)
}

func handleReadFile(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	offset := int64(request.GetFloat("offset", 0))
	length := int64(request.GetFloat("length", 0))
	if length <= 0 {
		attr, err := client.Stat(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		length = attr.Size
	}

	data, err := client.ReadAt(ctx, path, offset, length)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleWriteFile(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	offset := int64(request.GetFloat("offset", 0))

	if _, err := client.Stat(ctx, path); err != nil {
		if _, err := client.Create(ctx, path, 0644); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	n, err := client.WriteAt(ctx, path, offset, []byte(content))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s", n, path)), nil
}

func handleCreate(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if request.GetBool("directory", false) {
		_, err = client.Mkdir(ctx, path, 0755)
	} else {
		_, err = client.Create(ctx, path, 0644)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created %s", path)), nil
}

func handleUnlink(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := client.Unlink(ctx, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed %s", path)), nil
}

func handleRename(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error) {
	from, err := request.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := request.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := client.Rename(ctx, from, to); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Renamed %s to %s", from, to)), nil
}

func handleStatFs(ctx context.Context, request mcp.CallToolRequest, client *sandlib.SandfsClient) (*mcp.CallToolResult, error) {
	stats, err := client.StatFs(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(stats)
}
