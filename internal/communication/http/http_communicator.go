package httpcomm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/AnishMulay/sandfs/internal/communication"
	"github.com/AnishMulay/sandfs/internal/log_service"
)

const (
	messagePath  = "/message"
	headerCode   = "X-Sand-Code"
	headerPrefix = "X-Sand-H-"
)

// wireMessage is the JSON envelope posted to /message.
type wireMessage struct {
	From    string          `json:"from"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HTTPCommunicator struct {
	listenAddress string
	httpServer    *http.Server
	listener      net.Listener
	handler       communication.MessageHandler
	ls            log_service.LogService
	payloads      *communication.PayloadRegistry
	client        *http.Client
}

func NewHTTPCommunicator(listenAddress string, ls log_service.LogService) *HTTPCommunicator {
	return &HTTPCommunicator{
		listenAddress: listenAddress,
		ls:            ls,
		payloads:      communication.NewPayloadRegistry(),
		client:        &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *HTTPCommunicator) Address() string {
	if c.listener != nil {
		return c.listener.Addr().String()
	}
	return c.listenAddress
}

func (c *HTTPCommunicator) RegisterPayloadType(msgType string, payloadType reflect.Type) {
	c.payloads.Register(msgType, payloadType)
}

func (c *HTTPCommunicator) Start(handler communication.MessageHandler) error {
	c.ls.Info(log_service.LogEvent{
		Message:  "Starting HTTP communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	c.handler = handler

	mux := http.NewServeMux()
	mux.HandleFunc(messagePath, c.handleHTTPMessage)
	c.httpServer = &http.Server{Handler: mux}

	lis, err := net.Listen("tcp", c.listenAddress)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to listen on address",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return communication.ErrListenFailed
	}
	c.listener = lis

	go func() {
		if err := c.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.ls.Error(log_service.LogEvent{
				Message:  "HTTP server error",
				Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
			})
		}
	}()

	c.ls.Info(log_service.LogEvent{
		Message:  "HTTP communicator started successfully",
		Metadata: map[string]any{"address": c.Address()},
	})
	return nil
}

func (c *HTTPCommunicator) Stop() error {
	if c.httpServer == nil {
		return nil
	}

	c.ls.Info(log_service.LogEvent{
		Message:  "Stopping HTTP communicator",
		Metadata: map[string]any{"address": c.listenAddress},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.httpServer.Shutdown(ctx); err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to stop HTTP server",
			Metadata: map[string]any{"address": c.listenAddress, "error": err.Error()},
		})
		return communication.ErrServerStopFailed
	}
	return nil
}

func (c *HTTPCommunicator) Send(ctx context.Context, to string, msg communication.Message) (*communication.Response, error) {
	c.ls.Debug(log_service.LogEvent{
		Message:  "Sending HTTP message",
		Metadata: map[string]any{"to": to, "type": msg.Type, "from": msg.From},
	})

	payload, err := communication.EncodePayload(msg.Payload)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(wireMessage{From: msg.From, Type: msg.Type, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", communication.ErrPayloadMarshalFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://%s%s", to, messagePath), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", communication.ErrClientCreateFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Failed to send HTTP request",
			Metadata: map[string]any{"to": to, "type": msg.Type, "error": err.Error()},
		})
		return nil, communication.ErrMessageSendFailed
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, communication.ErrMessageSendFailed
	}

	out := &communication.Response{Code: codeFromHTTP(resp), Body: respBody}
	for k, v := range resp.Header {
		if name, ok := strings.CutPrefix(k, headerPrefix); ok && len(v) > 0 {
			if out.Headers == nil {
				out.Headers = make(map[string]string)
			}
			out.Headers[strings.ToLower(name)] = v[0]
		}
	}
	return out, nil
}

// codeFromHTTP prefers the explicit code header and falls back to the
// status line for responses produced outside the handler.
func codeFromHTTP(resp *http.Response) communication.SandCode {
	if code := resp.Header.Get(headerCode); code != "" {
		return communication.SandCode(code)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return communication.CodeOK
	case http.StatusBadRequest, http.StatusMethodNotAllowed:
		return communication.CodeBadRequest
	case http.StatusNotFound:
		return communication.CodeNotFound
	case http.StatusServiceUnavailable:
		return communication.CodeUnavailable
	default:
		return communication.CodeInternal
	}
}

func statusFor(code communication.SandCode) int {
	switch code {
	case communication.CodeOK:
		return http.StatusOK
	case communication.CodeBadRequest:
		return http.StatusBadRequest
	case communication.CodeNotFound:
		return http.StatusNotFound
	case communication.CodeAlreadyExists, communication.CodeNotEmpty,
		communication.CodeIsDirectory, communication.CodeNotDirectory:
		return http.StatusConflict
	case communication.CodeNoSpace:
		return http.StatusInsufficientStorage
	case communication.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c *HTTPCommunicator) write(w http.ResponseWriter, resp *communication.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(headerPrefix+k, v)
	}
	w.Header().Set(headerCode, string(resp.Code))
	w.WriteHeader(statusFor(resp.Code))
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			c.ls.Error(log_service.LogEvent{
				Message:  "Failed to write HTTP response body",
				Metadata: map[string]any{"error": err.Error()},
			})
		}
	}
}

func (c *HTTPCommunicator) handleHTTPMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var wire wireMessage
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		c.write(w, &communication.Response{Code: communication.CodeBadRequest, Body: []byte(err.Error())})
		return
	}
	if wire.Type == "" {
		c.write(w, &communication.Response{Code: communication.CodeBadRequest, Body: []byte(communication.ErrMissingMessageType.Error())})
		return
	}
	if c.handler == nil {
		c.write(w, &communication.Response{Code: communication.CodeUnavailable, Body: []byte(communication.ErrHandlerNotSet.Error())})
		return
	}

	payload, err := c.payloads.Decode(wire.Type, wire.Payload)
	if err != nil {
		c.write(w, &communication.Response{Code: communication.CodeBadRequest, Body: []byte(err.Error())})
		return
	}

	resp, err := c.handler(communication.Message{From: wire.From, Type: wire.Type, Payload: payload})
	if err != nil {
		c.ls.Error(log_service.LogEvent{
			Message:  "Message handler failed",
			Metadata: map[string]any{"type": wire.Type, "error": err.Error()},
		})
		c.write(w, &communication.Response{Code: communication.CodeInternal, Body: []byte(err.Error())})
		return
	}
	if resp == nil {
		resp = &communication.Response{Code: communication.CodeInternal, Body: []byte(communication.ErrMessageHandlerFailed.Error())}
	}
	c.write(w, resp)
}

var _ communication.Communicator = (*HTTPCommunicator)(nil)
