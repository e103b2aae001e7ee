// Package clientconfig resolves the per-business configuration applied
// to a call. Lookups go to the backing store on every decision point so
// operator edits take effect without a restart.
package clientconfig

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no configuration exists for a clientID.
var ErrNotFound = errors.New("client config not found")

// BusinessHours is a daily open window in the client's timezone.
// A zero value means always open. Windows where Open > Close span
// midnight.
type BusinessHours struct {
	Open     string `mapstructure:"open"`
	Close    string `mapstructure:"close"`
	Timezone string `mapstructure:"timezone"`
}

// IsOpen reports whether t falls inside the window.
func (h BusinessHours) IsOpen(t time.Time) bool {
	if h.Open == "" || h.Close == "" {
		return true
	}
	loc := time.Local
	if h.Timezone != "" {
		if l, err := time.LoadLocation(h.Timezone); err == nil {
			loc = l
		}
	}
	open, err := time.Parse("15:04", h.Open)
	if err != nil {
		return true
	}
	closeAt, err := time.Parse("15:04", h.Close)
	if err != nil {
		return true
	}
	local := t.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	openMin := open.Hour()*60 + open.Minute()
	closeMin := closeAt.Hour()*60 + closeAt.Minute()
	if openMin <= closeMin {
		return minutes >= openMin && minutes < closeMin
	}
	return minutes >= openMin || minutes < closeMin
}

// ClientConfig is the business configuration for one client.
type ClientConfig struct {
	Greeting         string        `mapstructure:"greeting"`
	EscalationNumber string        `mapstructure:"escalation_number"`
	BusinessHours    BusinessHours `mapstructure:"business_hours"`
	Numbers          []string      `mapstructure:"numbers"`
}

// Store is the lookup collaborator consumed by the call controller.
type Store interface {
	// GetClientConfig fetches the configuration for clientID, fresh on
	// every call. Returns ErrNotFound when the client is unknown.
	GetClientConfig(ctx context.Context, clientID string) (ClientConfig, error)
	// ClientIDForNumber maps a dialed number to its clientID.
	ClientIDForNumber(ctx context.Context, number string) (string, bool)
}
