package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Relay defaults.
const (
	DefaultPort      = 3000
	DefaultStaticDir = "build"
)

// Relay is the configuration of the signaling relay process. It is read from
// the environment only.
type Relay struct {
	Port      int
	StaticDir string
}

// Addr is the listen address for the HTTP server.
func (r *Relay) Addr() string {
	return ":" + strconv.Itoa(r.Port)
}

// LoadRelay reads PORT and STATIC_DIR through lookup, normally os.LookupEnv.
func LoadRelay(lookup func(string) (string, bool)) (*Relay, error) {
	cfg := &Relay{
		Port:      DefaultPort,
		StaticDir: envOrDefault(lookup, "STATIC_DIR", DefaultStaticDir),
	}

	if raw, ok := lookup("PORT"); ok && strings.TrimSpace(raw) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", raw, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %d: out of range", port)
		}
		cfg.Port = port
	}

	return cfg, nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
