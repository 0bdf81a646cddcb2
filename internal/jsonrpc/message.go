package jsonrpc

import (
	"encoding/json"
	"strconv"

	"github.com/imtaco/meeting-coordinator/internal/errors"
)

const version = "2.0"

type kind int

const (
	kindInvalid kind = iota
	kindRequest
	kindNotification
	kindResponse
)

// Request is an inbound call or notification; ID is nil for notifications.
type Request struct {
	ID     *ID
	Method string
	Params *json.RawMessage
}

// message is the union of every JSON-RPC 2.0 object on the wire.
type message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *ID              `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  *json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

// kind classifies by method and id alone, so a response carrying a null
// result still matches its call.
func (m *message) kind() kind {
	switch {
	case m.Method != "" && (m.Result != nil || m.Error != nil):
		return kindInvalid
	case m.Method != "" && m.ID != nil:
		return kindRequest
	case m.Method != "":
		return kindNotification
	case m.ID != nil:
		return kindResponse
	default:
		return kindInvalid
	}
}

func marshalRaw(v any) (*json.RawMessage, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(ErrMarshal, err, "fail to marshal")
	}
	raw := json.RawMessage(bs)
	return &raw, nil
}

func newCall(id ID, method string, params any) (*message, error) {
	raw, err := marshalRaw(params)
	if err != nil {
		return nil, err
	}
	return &message{JSONRPC: version, ID: &id, Method: method, Params: raw}, nil
}

func newNotification(method string, params any) (*message, error) {
	raw, err := marshalRaw(params)
	if err != nil {
		return nil, err
	}
	return &message{JSONRPC: version, Method: method, Params: raw}, nil
}

func newResult(id ID, result any) (*message, error) {
	raw, err := marshalRaw(result)
	if err != nil {
		return nil, err
	}
	return &message{JSONRPC: version, ID: &id, Result: *raw}, nil
}

func newErrorReply(id ID, rpcErr *Error) *message {
	return &message{JSONRPC: version, ID: &id, Error: rpcErr}
}

// ID is a request id, either a number or a string.
type ID struct {
	num   uint64
	str   string
	isStr bool
}

func NumberID(n uint64) ID { return ID{num: n} }
func StringID(s string) ID { return ID{str: s, isStr: true} }

// String keeps numbers and strings apart, so 1 and "1" never collide.
func (id ID) String() string {
	if id.isStr {
		return strconv.Quote(id.str)
	}
	return strconv.FormatUint(id.num, 10)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = StringID(s)
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = NumberID(n)
	return nil
}
