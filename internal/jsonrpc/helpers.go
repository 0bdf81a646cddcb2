package jsonrpc

import (
	"encoding/json"

	"github.com/imtaco/meeting-coordinator/internal/validation"
)

var validate = validation.New()

// ShouldBindParams decodes params into v and runs its validate tags. Every
// failure maps to an invalid-params error.
func ShouldBindParams(params *json.RawMessage, v any) error {
	if params == nil || len(*params) == 0 || string(*params) == "null" {
		return ErrInvalidParams("params required")
	}
	if err := json.Unmarshal(*params, v); err != nil {
		return ErrInvalidParams("malformed params")
	}
	if err := validate.Struct(v); err != nil {
		return ErrInvalidParams(err.Error())
	}
	return nil
}
