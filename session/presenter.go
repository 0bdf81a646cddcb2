package session

import "github.com/imtaco/meeting-coordinator/internal/log"

// LogPresenter surfaces session progress through the logger, for headless
// participants.
type LogPresenter struct {
	Logger *log.Logger
	// OnNavigate is called when the session leaves the room, if set.
	OnNavigate func(reason string)
}

func (p *LogPresenter) PhaseChanged(from, to Phase) {
	p.Logger.Debug("Phase", log.String("from", from.String()), log.String("to", to.String()))
}

func (p *LogPresenter) ReportError(err error) {
	p.Logger.Error("Session reported an error", log.Error(err))
}

func (p *LogPresenter) Notice(msg string) {
	p.Logger.Info(msg)
}

func (p *LogPresenter) NavigateAway(reason string) {
	p.Logger.Info("Left the room", log.String("reason", reason))
	if p.OnNavigate != nil {
		p.OnNavigate(reason)
	}
}
