package grpccomm

import (
	"context"
	"net"
	"reflect"
	"strings"
	"sync"

	"github.com/AnishMulay/sandfs/internal/communication"
	"github.com/AnishMulay/sandfs/internal/log_service"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type GRPCCommunicator struct {
	listenAddress string
	handler       communication.MessageHandler
	grpcServer    *grpc.Server
	listener      net.Listener
	ls            log_service.LogService
	payloads      *communication.PayloadRegistry

	clientLock sync.RWMutex
	clients    map[string]*grpc.ClientConn
	stopped    bool
	stopMutex  sync.RWMutex
}

func NewGRPCCommunicator(addr string, ls log_service.LogService) *GRPCCommunicator {
	return &GRPCCommunicator{
		listenAddress: addr,
		ls:            ls,
		payloads:      communication.NewPayloadRegistry(),
		clients:       make(map[string]*grpc.ClientConn),
	}
}

// Address returns the bound address once started, so ":0" resolves to the
// chosen port.
func (c *GRPCCommunicator) Address() string {
	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return c.listenAddress
}

func (c *GRPCCommunicator) RegisterPayloadType(msgType string, payloadType reflect.Type) {
	c.payloads.Register(msgType, payloadType)
}

func (c *GRPCCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	c.handler = handler
	c.grpcServer = grpc.NewServer()
	c.grpcServer.RegisterService(&messageServiceDesc, &grpcServer{comm: c})

	lis, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return communication.ErrListenFailed
	}
	c.listener = lis

	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator started successfully",
		Metadata: map[string]any{"address": c.Address()},
	})

	go func() {
		if err := c.grpcServer.Serve(lis); err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "GRPC server error",
				Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
			})
		}
	}()
	return nil
}

func (c *GRPCCommunicator) Stop() error {
	c.stopMutex.Lock()
	defer c.stopMutex.Unlock()

	if c.stopped {
		c.ls.Debug(log_service.LogEvent{
			Message:  "GRPC communicator already stopped, skipping",
			Metadata: map[string]any{"address": c.listenAddress},
		})
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping GRPC communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	if c.grpcServer != nil {
		c.grpcServer.GracefulStop()
	}

	var err error
	c.clientLock.Lock()
	for addr, conn := range c.clients {
		err = multierr.Append(err, conn.Close())
		delete(c.clients, addr)
	}
	c.clientLock.Unlock()

	c.stopped = true
	c.ls.Info(log_service.LogEvent{
		Message:  "GRPC communicator stopped successfully",
		Metadata: map[string]any{"address": c.listenAddress},
	})
	return err
}

func (c *GRPCCommunicator) client(to string) (*grpc.ClientConn, error) {
	c.clientLock.RLock()
	conn, ok := c.clients[to]
	c.clientLock.RUnlock()
	if ok {
		return conn, nil
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "Creating new GRPC client",
		Metadata: map[string]any{"to": to},
	})

	conn, err := grpc.NewClient(to, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to create GRPC client",
			Metadata: map[string]any{"to": to, "error": err.Error()},
		})
		return nil, communication.ErrClientCreateFailed
	}

	c.clientLock.Lock()
	defer c.clientLock.Unlock()
	if existing, ok := c.clients[to]; ok {
		_ = conn.Close()
		return existing, nil
	}
	c.clients[to] = conn
	return conn, nil
}

func (c *GRPCCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	requestID := uuid.NewString()
	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending GRPC message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From, "requestID": requestID},
	})

	conn, err := c.client(to)
	if err != nil {
		return nil, err
	}

	payloadBytes, err := communication.EncodePayload(msg.Payload)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to marshal payload",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, err
	}

	ctx = metadata.AppendToOutgoingContext(ctx,
		mdType, msg.Type,
		mdFrom, msg.From,
		mdRequestID, requestID,
	)

	var header metadata.MD
	resp := new(wrapperspb.BytesValue)
	if err := conn.Invoke(ctx, sendMessageMethod, wrapperspb.Bytes(payloadBytes), resp, grpc.Header(&header)); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send GRPC message",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, communication.ErrMessageSendFailed
	}

	out := &communication.Response{
		Code: communication.SandCode(first(header, mdCode)),
		Body: resp.GetValue(),
	}
	for k, v := range header {
		if name, ok := strings.CutPrefix(k, mdHeaderPfx); ok && len(v) > 0 {
			if out.Headers == nil {
				out.Headers = make(map[string]string)
			}
			out.Headers[name] = v[0]
		}
	}

	c.ls.Debug(log_service.LogEvent{
		Message:  "GRPC message sent successfully",
		Metadata: map[string]any{"to": to, "type": msg.Type, "responseCode": out.Code, "requestID": requestID},
	})
	return out, nil
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

type grpcServer struct {
	comm *GRPCCommunicator
}

func (s *grpcServer) SendMessage(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	msg := communication.Message{
		From: first(md, mdFrom),
		Type: first(md, mdType),
	}

	reply := func(resp *communication.Response) (*wrapperspb.BytesValue, error) {
		pairs := []string{mdCode, string(resp.Code)}
		for k, v := range resp.Headers {
			pairs = append(pairs, mdHeaderPfx+strings.ToLower(k), v)
		}
		if err := grpc.SetHeader(ctx, metadata.Pairs(pairs...)); err != nil {
			return nil, err
		}
		return wrapperspb.Bytes(resp.Body), nil
	}

	if s.comm.handler == nil {
		return reply(&communication.Response{Code: communication.CodeUnavailable, Body: []byte(communication.ErrHandlerNotSet.Error())})
	}
	if msg.Type == "" {
		return reply(&communication.Response{Code: communication.CodeBadRequest, Body: []byte(communication.ErrMissingMessageType.Error())})
	}

	payload, err := s.comm.payloads.Decode(msg.Type, req.GetValue())
	if err != nil {
		return reply(&communication.Response{Code: communication.CodeBadRequest, Body: []byte(err.Error())})
	}
	msg.Payload = payload

	resp, err := s.comm.handler(msg)
	if err != nil {
		s.comm.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": msg.Type, "requestID": first(md, mdRequestID), "error": err.Error()},
		})
		return reply(&communication.Response{Code: communication.CodeInternal, Body: []byte(err.Error())})
	}
	if resp == nil {
		return reply(&communication.Response{Code: communication.CodeInternal, Body: []byte("handler returned nil response")})
	}
	return reply(resp)
}

var _ communication.Communicator = (*GRPCCommunicator)(nil)
