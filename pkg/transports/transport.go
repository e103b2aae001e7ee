// Package transports defines the boundary between the call core and a
// telephony provider: the inbound events the provider delivers and the
// outbound instructions the core answers with. Implementations own
// their network lifecycle.
package transports

import "context"

// CallStarted is the first event for a callID.
type CallStarted struct {
	CallID   string
	From     string
	To       string
	ClientID string
}

// SpeechReceived carries one transcribed caller utterance. Text may be
// empty when the provider reports no speech.
type SpeechReceived struct {
	CallID string
	Text   string
}

// RecordingCompleted reports a finished voicemail recording.
type RecordingCompleted struct {
	CallID          string
	URL             string
	DurationSeconds int
}

// Verb enumerates the instructions the core can hand back.
type Verb int

const (
	VerbSpeak Verb = iota
	VerbGatherSpeech
	VerbDial
	VerbRecord
	VerbHangup
)

// String returns the string representation of a Verb
func (v Verb) String() string {
	switch v {
	case VerbSpeak:
		return "SPEAK"
	case VerbGatherSpeech:
		return "GATHER_SPEECH"
	case VerbDial:
		return "DIAL"
	case VerbRecord:
		return "RECORD"
	case VerbHangup:
		return "HANGUP"
	default:
		return "UNKNOWN"
	}
}

// Instruction is one outbound step. Which fields apply depends on Verb.
type Instruction struct {
	Verb             Verb
	Text             string
	Number           string
	MaxLengthSeconds int
}

func Speak(text string) Instruction { return Instruction{Verb: VerbSpeak, Text: text} }
func GatherSpeech(prompt string) Instruction {
	return Instruction{Verb: VerbGatherSpeech, Text: prompt}
}
func Dial(number string) Instruction { return Instruction{Verb: VerbDial, Number: number} }
func Record(maxLengthSeconds int) Instruction {
	return Instruction{Verb: VerbRecord, MaxLengthSeconds: maxLengthSeconds}
}
func Hangup() Instruction { return Instruction{Verb: VerbHangup} }

// Handler is the call core's view from the transport side. Every event
// yields a well-formed instruction list, never an error: collaborator
// failures are converted to spoken responses before they reach the
// provider.
type Handler interface {
	HandleCallStarted(ctx context.Context, ev CallStarted) []Instruction
	HandleSpeech(ctx context.Context, ev SpeechReceived) []Instruction
	HandleRecording(ctx context.Context, ev RecordingCompleted) []Instruction
}

// Transport serves the provider-facing surface.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// Transferrer allows a transport to move an active call to a number
// out-of-band, outside the webhook request cycle.
type Transferrer interface {
	Transfer(ctx context.Context, callID, number string) error
}
