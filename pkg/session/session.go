package session

import (
	"strings"
	"time"
)

// Speaker identifies which side of the call produced a turn.
type Speaker string

const (
	SpeakerCaller       Speaker = "caller"
	SpeakerReceptionist Speaker = "receptionist"
)

// Turn is one utterance by either side. The turn sequence is append-only.
type Turn struct {
	Speaker Speaker
	Text    string
}

type State int

const (
	StateGathering State = iota
	StateEscalating
	StateRecording
	StateTerminated
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateGathering:
		return "GATHERING"
	case StateEscalating:
		return "ESCALATING"
	case StateRecording:
		return "RECORDING"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// CallSession is the mutable record of one in-progress call.
// CallID, ClientID, From and To are set at creation and never change.
type CallSession struct {
	CallID       string
	ClientID     string
	From         string
	To           string
	Turns        []Turn
	State        State
	StartedAt    time.Time
	LastActivity time.Time
}

// AppendTurn appends one utterance. Existing entries are never reordered.
func (s *CallSession) AppendTurn(speaker Speaker, text string) {
	s.Turns = append(s.Turns, Turn{Speaker: speaker, Text: text})
}

// TurnCount counts turns by both speakers.
func (s *CallSession) TurnCount() int {
	return len(s.Turns)
}

// Transcript renders the turn sequence as human-readable text.
// It is derived on demand rather than stored.
func (s *CallSession) Transcript() string {
	var b strings.Builder
	for _, t := range s.Turns {
		switch t.Speaker {
		case SpeakerCaller:
			b.WriteString("Caller: ")
		case SpeakerReceptionist:
			b.WriteString("Receptionist: ")
		}
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *CallSession) clone() CallSession {
	out := *s
	out.Turns = make([]Turn, len(s.Turns))
	copy(out.Turns, s.Turns)
	return out
}
