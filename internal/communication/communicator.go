package communication

import (
	"context"
	"reflect"
)

type SandCode string

const (
	CodeOK            SandCode = "OK"
	CodeBadRequest    SandCode = "BAD_REQUEST"
	CodeNotFound      SandCode = "NOT_FOUND"
	CodeAlreadyExists SandCode = "ALREADY_EXISTS"
	CodeNotDirectory  SandCode = "NOT_DIRECTORY"
	CodeIsDirectory   SandCode = "IS_DIRECTORY"
	CodeNotEmpty      SandCode = "NOT_EMPTY"
	CodeNoSpace       SandCode = "NO_SPACE"
	CodeUnavailable   SandCode = "UNAVAILABLE"
	CodeInternal      SandCode = "INTERNAL"
)

// Message is a request. Payload is marshalled to JSON on the wire and
// decoded on the receiving side into the type registered for Type.
type Message struct {
	From    string `json:"from"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type Response struct {
	Code    SandCode          `json:"code"`
	Body    []byte            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type MessageHandler func(msg Message) (*Response, error)

type Communicator interface {
	Start(handler MessageHandler) error
	Stop() error
	Send(ctx context.Context, to string, msg Message) (*Response, error)
	RegisterPayloadType(msgType string, payloadType reflect.Type)
	Address() string
}
