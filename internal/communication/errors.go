package communication

import "errors"

var (
	// Server startup/shutdown errors
	ErrListenFailed     = errors.New("failed to listen on address")
	ErrServerStopFailed = errors.New("failed to stop server")

	// Client connection errors
	ErrClientCreateFailed = errors.New("failed to create client")
	ErrMessageSendFailed  = errors.New("failed to send message")

	// Message handling errors
	ErrHandlerNotSet        = errors.New("message handler not set")
	ErrMessageHandlerFailed = errors.New("message handler failed")
	ErrMissingMessageType   = errors.New("message type missing")
	ErrUnknownPayloadType   = errors.New("no payload type registered for message")

	// Serialization errors
	ErrPayloadMarshalFailed   = errors.New("failed to marshal payload")
	ErrPayloadUnmarshalFailed = errors.New("failed to unmarshal payload")
)
