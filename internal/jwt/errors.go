package jwt

import "github.com/imtaco/meeting-coordinator/internal/errors"

const (
	ErrInvalidRequest errors.Code = "invalid request"
	ErrInvalidToken   errors.Code = "invalid token"
	ErrNoToken        errors.Code = "no token"
)
