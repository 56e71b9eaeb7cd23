package posix_server

import "github.com/AnishMulay/sandfs/internal/inode_service"

// Message Type Constants
const (
	// Namespace
	MsgResolve = "sandfs_resolve"
	MsgStat    = "sandfs_stat"
	MsgCreate  = "sandfs_create"
	MsgUnlink  = "sandfs_unlink"
	MsgLink    = "sandfs_link"
	MsgRename  = "sandfs_rename"
	MsgList    = "sandfs_list"
	MsgReadDir = "sandfs_readdir"

	// Data
	MsgTruncate = "sandfs_truncate"
	MsgRead     = "sandfs_read"
	MsgWrite    = "sandfs_write"

	// File system
	MsgStatFs = "sandfs_statfs"
)

// --- Payload Structs ---

type ResolveRequest struct {
	Path string `json:"path"`
}

type ResolveResponse struct {
	Inum inode_service.Inum `json:"inum"`
}

type StatRequest struct {
	Path string `json:"path"`
}

type CreateRequest struct {
	Path string `json:"path"`
	Mode uint32 `json:"mode"`
}

type UnlinkRequest struct {
	Path string `json:"path"`
}

type LinkRequest struct {
	Existing string `json:"existing"`
	NewPath  string `json:"newPath"`
}

type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ListRequest struct {
	Path string `json:"path"`
}

type ReadDirRequest struct {
	Path string `json:"path"`
}

type TruncateRequest struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type ReadRequest struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Length int64  `json:"length"`
}

type WriteRequest struct {
	Path   string `json:"path"`
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
}

type WriteResponse struct {
	Written int64 `json:"written"`
}

type StatFsRequest struct{}
