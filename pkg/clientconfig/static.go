package clientconfig

import (
	"context"
	"strings"
)

// StaticStore serves a fixed in-memory map. Used in tests and dry runs.
type StaticStore struct {
	Clients map[string]ClientConfig
}

func NewStaticStore(clients map[string]ClientConfig) *StaticStore {
	if clients == nil {
		clients = make(map[string]ClientConfig)
	}
	normalized := make(map[string]ClientConfig, len(clients))
	for id, cfg := range clients {
		normalized[normalizeClientID(id)] = cfg
	}
	return &StaticStore{Clients: normalized}
}

func (s *StaticStore) GetClientConfig(ctx context.Context, clientID string) (ClientConfig, error) {
	_ = ctx
	cfg, ok := s.Clients[normalizeClientID(clientID)]
	if !ok {
		return ClientConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (s *StaticStore) ClientIDForNumber(ctx context.Context, number string) (string, bool) {
	_ = ctx
	number = strings.TrimSpace(number)
	for id, cfg := range s.Clients {
		for _, n := range cfg.Numbers {
			if strings.TrimSpace(n) == number {
				return id, true
			}
		}
	}
	return "", false
}
