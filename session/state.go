package session

type State int

const (
	Idle State = iota
	Recording
	Processing
	Typing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Typing:
		return "typing"
	}
	return "unknown"
}

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Status is one user-facing message. Transcript is set only after a
// successful transcription.
type Status struct {
	Level      Level
	Text       string
	Transcript string
	Words      int
	Remaining  int
	Unlimited  bool
}

// Sink renders controller output. Calls arrive on the controller goroutine
// and must not block for long.
type Sink interface {
	State(State)
	Status(Status)
}

// MultiSink fans out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) State(s State) {
	for _, sink := range m {
		sink.State(s)
	}
}

func (m MultiSink) Status(s Status) {
	for _, sink := range m {
		sink.Status(s)
	}
}
