package session

import "github.com/imtaco/meeting-coordinator/internal/errors"

const (
	ErrMediaAcquisition       errors.Code = "media acquisition failed"
	ErrJoin                   errors.Code = "join failed"
	ErrLifecycleTransition    errors.Code = "lifecycle transition failed"
	ErrUnauthorizedTransition errors.Code = "unauthorized transition"
	ErrCallStart              errors.Code = "call start failed"
	ErrSessionClosed          errors.Code = "session closed"
)
