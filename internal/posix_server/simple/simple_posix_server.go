package simple

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/AnishMulay/sandfs/internal/communication"
	"github.com/AnishMulay/sandfs/internal/log_service"
	ps "github.com/AnishMulay/sandfs/internal/posix_server"
	ss "github.com/AnishMulay/sandfs/internal/storage_service"
	"go.uber.org/multierr"
)

type SimplePosixServer struct {
	comm communication.Communicator
	fs   ss.StorageService
	ls   log_service.LogService
}

var _ ps.PosixServer = (*SimplePosixServer)(nil)

func NewSimplePosixServer(
	comm communication.Communicator,
	fs ss.StorageService,
	ls log_service.LogService,
) *SimplePosixServer {
	return &SimplePosixServer{
		comm: comm,
		fs:   fs,
		ls:   ls,
	}
}

func (s *SimplePosixServer) Start() error {
	s.ls.Info(log_service.LogEvent{Message: "Starting Simple POSIX Server"})

	// 1. Register Payload Types with Communicator
	s.registerPayloads()

	// 2. Mount the file system
	if err := s.fs.Start(); err != nil {
		return err
	}

	// 3. Start Communicator with our central handler
	if err := s.comm.Start(s.handleMessage); err != nil {
		return multierr.Append(err, s.fs.Stop())
	}
	return nil
}

func (s *SimplePosixServer) Stop() error {
	s.ls.Info(log_service.LogEvent{Message: "Stopping Simple POSIX Server"})
	return multierr.Combine(s.comm.Stop(), s.fs.Stop())
}

// Address is the address the communicator is bound to.
func (s *SimplePosixServer) Address() string {
	return s.comm.Address()
}

func (s *SimplePosixServer) registerPayloads() {
	s.comm.RegisterPayloadType(ps.MsgResolve, reflect.TypeOf(ps.ResolveRequest{}))
	s.comm.RegisterPayloadType(ps.MsgStat, reflect.TypeOf(ps.StatRequest{}))
	s.comm.RegisterPayloadType(ps.MsgCreate, reflect.TypeOf(ps.CreateRequest{}))
	s.comm.RegisterPayloadType(ps.MsgUnlink, reflect.TypeOf(ps.UnlinkRequest{}))
	s.comm.RegisterPayloadType(ps.MsgLink, reflect.TypeOf(ps.LinkRequest{}))
	s.comm.RegisterPayloadType(ps.MsgRename, reflect.TypeOf(ps.RenameRequest{}))
	s.comm.RegisterPayloadType(ps.MsgList, reflect.TypeOf(ps.ListRequest{}))
	s.comm.RegisterPayloadType(ps.MsgReadDir, reflect.TypeOf(ps.ReadDirRequest{}))
	s.comm.RegisterPayloadType(ps.MsgTruncate, reflect.TypeOf(ps.TruncateRequest{}))
	s.comm.RegisterPayloadType(ps.MsgRead, reflect.TypeOf(ps.ReadRequest{}))
	s.comm.RegisterPayloadType(ps.MsgWrite, reflect.TypeOf(ps.WriteRequest{}))
	s.comm.RegisterPayloadType(ps.MsgStatFs, reflect.TypeOf(ps.StatFsRequest{}))
}

func payload[T any](msg communication.Message) (T, error) {
	req, ok := msg.Payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s expects %T, got %T", ss.ErrInvalidArgument, msg.Type, zero, msg.Payload)
	}
	return req, nil
}

// Central Router for all incoming messages
func (s *SimplePosixServer) handleMessage(msg communication.Message) (*communication.Response, error) {
	ctx := context.Background()

	s.ls.Debug(log_service.LogEvent{
		Message:  "Handling message",
		Metadata: map[string]any{"type": msg.Type, "from": msg.From},
	})

	switch msg.Type {
	case ps.MsgResolve:
		req, err := payload[ps.ResolveRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		inum, err := s.fs.Resolve(ctx, req.Path)
		return s.respond(ps.ResolveResponse{Inum: inum}, err)

	case ps.MsgStat:
		req, err := payload[ps.StatRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		attr, err := s.fs.Stat(ctx, req.Path)
		return s.respond(attr, err)

	case ps.MsgCreate:
		req, err := payload[ps.CreateRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		attr, err := s.fs.Create(ctx, req.Path, req.Mode)
		return s.respond(attr, err)

	case ps.MsgUnlink:
		req, err := payload[ps.UnlinkRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		return s.respond(nil, s.fs.Unlink(ctx, req.Path))

	case ps.MsgLink:
		req, err := payload[ps.LinkRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		return s.respond(nil, s.fs.Link(ctx, req.Existing, req.NewPath))

	case ps.MsgRename:
		req, err := payload[ps.RenameRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		return s.respond(nil, s.fs.Rename(ctx, req.From, req.To))

	case ps.MsgList:
		req, err := payload[ps.ListRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		names, err := s.fs.List(ctx, req.Path)
		return s.respond(names, err)

	case ps.MsgReadDir:
		req, err := payload[ps.ReadDirRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		entries, err := s.fs.ReadDir(ctx, req.Path)
		return s.respond(entries, err)

	case ps.MsgTruncate:
		req, err := payload[ps.TruncateRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		return s.respond(nil, s.fs.Truncate(ctx, req.Path, req.Size))

	case ps.MsgRead:
		req, err := payload[ps.ReadRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		data, err := s.fs.Read(ctx, req.Path, req.Offset, req.Length)
		return s.respond(data, err)

	case ps.MsgWrite:
		req, err := payload[ps.WriteRequest](msg)
		if err != nil {
			return s.respond(nil, err)
		}
		n, err := s.fs.Write(ctx, req.Path, req.Offset, req.Data)
		return s.respond(ps.WriteResponse{Written: n}, err)

	case ps.MsgStatFs:
		stats, err := s.fs.StatFs(ctx)
		return s.respond(stats, err)

	default:
		return &communication.Response{
			Code: communication.CodeBadRequest,
			Body: []byte("unknown message type: " + msg.Type),
		}, nil
	}
}

// respond is a helper to standardize JSON responses and error codes
func (s *SimplePosixServer) respond(data any, err error) (*communication.Response, error) {
	if err != nil {
		resp := ps.ErrorResponse(err)
		if resp.Code == communication.CodeInternal {
			s.ls.Error(log_service.LogEvent{
				Message:  "Storage operation failed",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
		return resp, nil
	}

	if data == nil {
		return &communication.Response{Code: communication.CodeOK}, nil
	}

	bytes, marshalErr := json.Marshal(data)
	if marshalErr != nil {
		return &communication.Response{
			Code: communication.CodeInternal,
			Body: []byte("failed to marshal response: " + marshalErr.Error()),
		}, nil
	}

	return &communication.Response{
		Code: communication.CodeOK,
		Body: bytes,
	}, nil
}

var _ ps.PosixServer = (*SimplePosixServer)(nil)
