package config

import (
	"reflect"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"MESHROOM_SERVER", "MESHROOM_ROOM", "MESHROOM_CODEC", "STUN_SERVER", "TURN_SERVER"} {
		t.Setenv(k, "")
	}

	cfg, err := Load(Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != DefaultServer {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.STUNServer != DefaultSTUN || cfg.Codec != "json" || cfg.CandidateBuffer != DefaultCandidateBuffer {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.GetTURNServers() != nil {
		t.Errorf("TURN servers without TURN_SERVER: %v", cfg.GetTURNServers())
	}
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("MESHROOM_SERVER", "wss://env.example/ws")
	t.Setenv("STUN_SERVER", "stun:env.example:3478")

	cfg, err := Load(Options{Server: "http://flag.example:8080"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "ws://flag.example:8080/ws" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.STUNServer != "stun:env.example:3478" {
		t.Errorf("STUNServer = %q", cfg.STUNServer)
	}
}

func TestLoad_Rejects(t *testing.T) {
	t.Setenv("TURN_SERVER", "")
	cases := map[string]Options{
		"scheme":         {Server: "ftp://relay"},
		"codec":          {Codec: "xml"},
		"buffer":         {CandidateBuffer: -1},
		"relay w/o turn": {ForceRelay: true},
	}
	for name, opts := range cases {
		if _, err := Load(opts); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestGetTURNServers(t *testing.T) {
	c := &Config{TURNServer: "turn:turn.example"}
	want := []string{
		"turn:turn.example:3478?transport=udp",
		"turn:turn.example:3478?transport=tcp",
		"turns:turn.example:5349?transport=tcp",
	}
	if got := c.GetTURNServers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	c.TURNServer = "turn:turn.example:443?transport=tcp"
	if got := c.GetTURNServers(); len(got) != 1 || got[0] != c.TURNServer {
		t.Fatalf("explicit URL rewritten: %v", got)
	}
}

func TestLoadRelay(t *testing.T) {
	lookup := func(kv map[string]string) func(string) (string, bool) {
		return func(k string) (string, bool) {
			v, ok := kv[k]
			return v, ok
		}
	}

	cfg, err := LoadRelay(lookup(nil))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != ":3000" || cfg.StaticDir != DefaultStaticDir {
		t.Fatalf("defaults = %+v", cfg)
	}

	cfg, err = LoadRelay(lookup(map[string]string{"PORT": "8080", "STATIC_DIR": "/srv/app"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != ":8080" || cfg.StaticDir != "/srv/app" {
		t.Fatalf("cfg = %+v", cfg)
	}

	for _, bad := range []string{"http", "0", "70000"} {
		if _, err := LoadRelay(lookup(map[string]string{"PORT": bad})); err == nil {
			t.Errorf("PORT=%q accepted", bad)
		}
	}
}
