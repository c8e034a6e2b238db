package rpc

import "encoding/json"

// Error codes carried in Response.Error.Code.
const (
	CodeNotImplemented         = "NOT_IMPLEMENTED"
	CodeResourceCreationFailed = "RESOURCE_CREATION_FAILED"
	CodeBadRequest             = "BAD_REQUEST"
	CodeInternal               = "INTERNAL"
)

// Request is a method call sent by the host.
type Request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Response answers a Request with the same ID. Exactly one of Result and
// Error is set.
type Response struct {
	ID     int64  `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error is a named failure returned to the host.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Notification is an unsolicited message from the plugin to the host.
type Notification struct {
	Method string `json:"method"`
	Args   any    `json:"args"`
}

// frame is the union of every message shape, used by the client to tell
// responses from notifications.
type frame struct {
	ID     int64           `json:"id"`
	Method string          `json:"method,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}
