package clientconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// FileStore reads client configuration from a YAML file keyed by
// clientID. The file is re-read on every lookup; this trades a little
// latency for freshness, so config edits apply to the very next call.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) GetClientConfig(ctx context.Context, clientID string) (ClientConfig, error) {
	_ = ctx
	clients, err := s.load()
	if err != nil {
		return ClientConfig{}, err
	}
	cfg, ok := clients[normalizeClientID(clientID)]
	if !ok {
		return ClientConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (s *FileStore) ClientIDForNumber(ctx context.Context, number string) (string, bool) {
	_ = ctx
	clients, err := s.load()
	if err != nil {
		return "", false
	}
	number = strings.TrimSpace(number)
	for id, cfg := range clients {
		for _, n := range cfg.Numbers {
			if strings.TrimSpace(n) == number {
				return id, true
			}
		}
	}
	return "", false
}

func (s *FileStore) load() (map[string]ClientConfig, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read client config: %w", err)
	}
	var raw struct {
		Clients map[string]ClientConfig `mapstructure:"clients"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	out := make(map[string]ClientConfig, len(raw.Clients))
	for id, cfg := range raw.Clients {
		out[normalizeClientID(id)] = cfg
	}
	return out, nil
}

func normalizeClientID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
