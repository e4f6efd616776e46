package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Default configuration values
const (
	DefaultServer          = "ws://localhost:3000/ws"
	DefaultSTUN            = "stun:stun.l.google.com:19302"
	DefaultCandidateBuffer = 100
)

// Config holds the participant client configuration
type Config struct {
	// ServerURL is the relay's channel endpoint
	ServerURL string

	// Room to join; empty means the relay's default room
	Room string

	// Codec is the channel encoding, "json" or "msgpack"
	Codec string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates
	ForceRelay bool

	// AudioOnly sends no video and treats a link as connected once audio
	// arrives
	AudioOnly bool

	// VideoFile and AudioFile replace the synthetic capture with IVF and
	// Ogg/Opus recordings
	VideoFile string
	AudioFile string

	// CandidateBuffer caps the candidates held per peer before a remote
	// description is set
	CandidateBuffer int

	// Plain selects line output instead of the interactive view
	Plain bool
}

// Options for loading config with CLI flag overrides. Zero values mean the
// flag was not given.
type Options struct {
	Server          string
	Room            string
	Codec           string
	STUNServer      string
	TURNServer      string
	TURNUser        string
	TURNPass        string
	ForceRelay      bool
	AudioOnly       bool
	VideoFile       string
	AudioFile       string
	CandidateBuffer int
	Plain           bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		ServerURL:  pick(opts.Server, "MESHROOM_SERVER", DefaultServer),
		Room:       pick(opts.Room, "MESHROOM_ROOM", ""),
		Codec:      strings.ToLower(pick(opts.Codec, "MESHROOM_CODEC", "json")),
		STUNServer: pick(opts.STUNServer, "STUN_SERVER", DefaultSTUN),
		TURNServer: pick(opts.TURNServer, "TURN_SERVER", ""),
		TURNUser:   pick(opts.TURNUser, "TURN_USERNAME", ""),
		TURNPass:   pick(opts.TURNPass, "TURN_PASSWORD", ""),
		ForceRelay: opts.ForceRelay || envBool("MESHROOM_FORCE_RELAY"),
		AudioOnly:  opts.AudioOnly || envBool("MESHROOM_AUDIO_ONLY"),
		VideoFile:  opts.VideoFile,
		AudioFile:  opts.AudioFile,
		Plain:      opts.Plain,
	}

	serverURL, err := normalizeServerURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	cfg.ServerURL = serverURL

	switch cfg.Codec {
	case "json", "msgpack":
	default:
		return nil, fmt.Errorf("unsupported codec %q (want json or msgpack)", cfg.Codec)
	}

	cfg.CandidateBuffer = opts.CandidateBuffer
	if cfg.CandidateBuffer == 0 {
		cfg.CandidateBuffer = DefaultCandidateBuffer
	}
	if cfg.CandidateBuffer < 0 {
		return nil, fmt.Errorf("candidate buffer must be positive, got %d", cfg.CandidateBuffer)
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("relay-only ICE needs a TURN server (--turn or TURN_SERVER)")
	}

	return cfg, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured. A bare host expands
// to the usual UDP, TCP and TLS listeners.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?transport=") {
		return []string{c.TURNServer}
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func pick(flag, env, fallback string) string {
	if flag != "" {
		return flag
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

// normalizeServerURL accepts ws(s) URLs as well as http(s) ones, which are
// rewritten, and fills in the /ws path when none is given.
func normalizeServerURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: scheme must be ws, wss, http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: missing host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
