// Package policy decides when a conversation must leave the automated
// dialogue loop. The decision is a pure function of the latest
// receptionist utterance and the turn count, so it can be tested in
// isolation from the session machinery.
package policy

import "strings"

// DefaultMaxTurns bounds conversation cost and latency. It counts turns
// by both speakers.
const DefaultMaxTurns = 12

// DefaultTriggerPhrases flag replies that announce a human handoff.
// Matching is a plain case-insensitive substring test on the model's own
// output; see config for overriding the list.
var DefaultTriggerPhrases = []string{
	"transfer you",
	"transfer your call",
	"transfer the call",
	"transfer this call",
	"connect you",
	"speak to a human",
	"speak with a human",
	"a human agent",
	"our staff will",
	"someone will call you back",
}

// Escalation holds the frozen trigger list. Build once at process start.
type Escalation struct {
	phrases  []string
	maxTurns int
}

func NewEscalation(phrases []string, maxTurns int) *Escalation {
	if len(phrases) == 0 {
		phrases = DefaultTriggerPhrases
	}
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return &Escalation{phrases: normalized, maxTurns: maxTurns}
}

// MaxTurns reports the hard turn ceiling.
func (e *Escalation) MaxTurns() int { return e.maxTurns }

// ShouldEscalate returns true when the utterance contains a trigger
// phrase or the turn count has reached the ceiling. Deterministic and
// side-effect free.
func (e *Escalation) ShouldEscalate(utterance string, turnCount int) bool {
	if turnCount >= e.maxTurns {
		return true
	}
	normalized := strings.ToLower(utterance)
	for _, p := range e.phrases {
		if strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}
