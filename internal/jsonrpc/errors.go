package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/imtaco/meeting-coordinator/internal/errors"
)

const (
	ErrMarshal errors.Code = "marshal error"
	ErrClosed  errors.Code = "closed"
)

// Standard codes; applications define their own outside -32768..-32000
// or in the server-reserved -32099..-32000 range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is the error object of a response. Handlers return it to send a
// specific code; any other error is reported as an internal error.
type Error struct {
	Code    int64            `json:"code"`
	Message string           `json:"message"`
	Data    *json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func ErrCustom(code int64, message string) *Error {
	return &Error{Code: code, Message: message}
}

func ErrInvalidParams(message string) *Error { return ErrCustom(CodeInvalidParams, message) }
func ErrInvalidRequest(message string) *Error { return ErrCustom(CodeInvalidRequest, message) }
func ErrInternal(message string) *Error { return ErrCustom(CodeInternalError, message) }

func ErrMethodNotFound(method string) *Error {
	return ErrCustom(CodeMethodNotFound, "method not found: "+method)
}
