package log

import (
	"time"

	"go.uber.org/zap"
)

// Field is zap.Field, so callers need not import zap.
type Field = zap.Field

// Keys shared by every component, so one grep follows an event across services.
const (
	KeyEventID   = "eventId"
	KeyConnID    = "connId"
	KeySessionID = "sessionId"
	KeyUserID    = "userId"
)

func EventID(id string) Field   { return zap.String(KeyEventID, id) }
func ConnID(id string) Field    { return zap.String(KeyConnID, id) }
func SessionID(id string) Field { return zap.String(KeySessionID, id) }
func UserID(id string) Field    { return zap.String(KeyUserID, id) }

func Bool(key string, val bool) Field              { return zap.Bool(key, val) }
func Int(key string, val int) Field                { return zap.Int(key, val) }
func Int64(key string, val int64) Field            { return zap.Int64(key, val) }
func String(key string, val string) Field          { return zap.String(key, val) }
func Strings(key string, val []string) Field       { return zap.Strings(key, val) }
func Error(err error) Field                        { return zap.Error(err) }
func Any(key string, val any) Field                { return zap.Any(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Time(key string, val time.Time) Field         { return zap.Time(key, val) }
