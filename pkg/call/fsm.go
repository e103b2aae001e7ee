package call

import (
	"log/slog"

	"github.com/voxline/frontdesk/pkg/session"
)

// validTransitions is the call lifecycle: Gathering loops on itself
// until escalation or voicemail; Terminated is final. Gathering may
// terminate directly when config lookup fails at call start.
var validTransitions = map[session.State][]session.State{
	session.StateGathering: {
		session.StateGathering,
		session.StateEscalating,
		session.StateRecording,
		session.StateTerminated,
	},
	session.StateEscalating: {
		session.StateRecording,
		session.StateTerminated,
	},
	session.StateRecording: {
		session.StateTerminated,
	},
}

func transitionValid(from, to session.State) bool {
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}

// transition moves the session to a new state with validation. Must be
// called while holding the session's store lock.
func transition(s *session.CallSession, to session.State, reason string) error {
	if !transitionValid(s.State, to) {
		return &InvalidTransitionError{From: s.State, To: to}
	}
	from := s.State
	s.State = to
	slog.Debug("call_state_transition",
		"call_id", s.CallID,
		"from", from.String(),
		"to", to.String(),
		"reason", reason,
	)
	return nil
}

// InvalidTransitionError represents an invalid state transition attempt
type InvalidTransitionError struct {
	From session.State
	To   session.State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
