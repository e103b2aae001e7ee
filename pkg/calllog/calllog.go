// Package calllog persists one durable record per completed call.
// Writes are fire-and-forget from the controller's point of view; a
// failed write is a warning, never a change to the caller-facing
// response.
package calllog

import (
	"context"
	"time"
)

// Call outcome classification.
const (
	TypeEscalated = "escalated"
	TypeMessage   = "message"
	TypeAbandoned = "abandoned"

	StatusTransferred = "transferred"
	StatusVoicemail   = "voicemail"
	StatusAbandoned   = "abandoned"
)

// Record is the durable trace of one finished call.
type Record struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Timestamp       time.Time `json:"timestamp"`
	Transcript      string    `json:"transcript"`
	DurationSeconds int       `json:"duration_seconds"`
	CallType        string    `json:"call_type"`
	Status          string    `json:"status"`
	RecordingURL    string    `json:"recording_url,omitempty"`
	// RecordingSeconds is the provider-reported length of the voicemail
	// audio, distinct from the call duration.
	RecordingSeconds int `json:"recording_seconds,omitempty"`
}

// Writer appends call records to a durable store.
type Writer interface {
	Append(ctx context.Context, rec Record) error
}
