package session

import (
	"context"
	"sync"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

// mediaGate owns the local capture for one session. The held handle is
// released exactly once, however the session ends.
type mediaGate struct {
	source MediaSource
	handle StreamHandle
	once   sync.Once
	logger *log.Logger
}

func newMediaGate(source MediaSource, logger *log.Logger) *mediaGate {
	return &mediaGate{
		source: source,
		logger: logger,
	}
}

// acquire runs off the session goroutine and must not touch gate state.
func (g *mediaGate) acquire(ctx context.Context) (StreamHandle, error) {
	h, err := g.source.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrMediaAcquisition, err, "acquire local media")
	}
	if h == nil {
		return nil, errors.New(ErrMediaAcquisition, "media source returned no stream")
	}
	return h, nil
}

func (g *mediaGate) hold(h StreamHandle) {
	g.handle = h
}

func (g *mediaGate) held() bool {
	return g.handle != nil
}

func (g *mediaGate) release() {
	g.once.Do(func() {
		if g.handle == nil {
			return
		}
		releaseHandle(g.handle, g.logger)
	})
}

func releaseHandle(h StreamHandle, logger *log.Logger) {
	if err := h.Release(); err != nil {
		logger.Warn("Failed to release local media",
			log.String("streamId", h.ID()),
			log.Error(err))
		return
	}
	logger.Debug("Released local media", log.String("streamId", h.ID()))
}
