package session

import "vox/log"

// LogSink writes transitions and statuses to the diagnostics log.
type LogSink struct{}

func (LogSink) State(s State) {
	log.Infof("state %s", s)
}

func (LogSink) Status(s Status) {
	switch s.Level {
	case LevelError:
		log.Errorf("status: %s", s.Text)
	case LevelWarning:
		log.Warnf("status: %s", s.Text)
	default:
		log.Info("status: " + s.Text)
	}
}
