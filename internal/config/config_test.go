package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if got := cfg.Address(); got != "127.0.0.1:3018" {
		t.Errorf("Address = %q", got)
	}
	if got := cfg.ReconnectInterval(); got != 25*time.Second {
		t.Errorf("ReconnectInterval = %v", got)
	}
	if got := cfg.StatusMessageTTL(); got != 5*time.Second {
		t.Errorf("StatusMessageTTL = %v", got)
	}
	if cfg.Session.MaxPasswordLength != 32 || cfg.Session.SessionIDLength != 20 {
		t.Errorf("session limits = %+v", cfg.Session)
	}
	if cfg.Editor.TabStop != 8 || cfg.Editor.QuitTimes != 3 {
		t.Errorf("editor = %+v", cfg.Editor)
	}
	if cfg.Relay.ListenAddress != "localhost:3018" {
		t.Errorf("relay = %+v", cfg.Relay)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Network.ServerAddress = ""
	cfg.Network.ServerPort = 70000
	cfg.Network.ReconnectIntervalSeconds = 0
	cfg.Editor.TabStop = 0
	cfg.Logging.Level = "loud"
	cfg.Relay.ListenAddress = "nope"

	err := cfg.Validate()
	errs := multierr.Errors(err)
	if len(errs) != 6 {
		t.Fatalf("got %d errors, want 6: %v", len(errs), err)
	}

	paths := map[string]bool{}
	for _, e := range errs {
		var ve *ValidationError
		if !errors.As(e, &ve) {
			t.Fatalf("unexpected error type %T", e)
		}
		paths[ve.Path] = true
	}
	for _, p := range []string{
		"network.serverAddress", "network.serverPort", "network.reconnectIntervalSeconds",
		"editor.tabStop", "logging.level", "relay.listenAddress",
	} {
		if !paths[p] {
			t.Errorf("missing error for %s", p)
		}
	}
}

func TestDecodeOverlaysDefaults(t *testing.T) {
	cfg, err := Decode(map[string]any{
		"network": map[string]any{"serverPort": int64(4000)},
		"logging": map[string]any{"level": "debug"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Network.ServerPort != 4000 {
		t.Errorf("serverPort = %d", cfg.Network.ServerPort)
	}
	if cfg.Network.ServerAddress != "127.0.0.1" {
		t.Errorf("serverAddress lost default: %q", cfg.Network.ServerAddress)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	_, err := Decode(map[string]any{
		"network": map[string]any{"serverPort": "many"},
	})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestLoadLayers(t *testing.T) {
	path := writeFile(t, "coled.toml", `
[network]
serverAddress = "10.1.1.1"
serverPort = 4000
reconnectIntervalSeconds = 10

[editor]
tabStop = 4
`)
	t.Setenv("COLED_PORT", "5000")
	t.Setenv("COLED_EDITOR_TAB_STOP", "2")

	cfg, err := Load(
		WithFile(path),
		WithOverrides(map[string]any{
			"editor": map[string]any{"tabStop": 6},
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Network.ServerAddress != "10.1.1.1" {
		t.Errorf("file layer lost: %q", cfg.Network.ServerAddress)
	}
	if cfg.Network.ServerPort != 5000 {
		t.Errorf("env should override file: port = %d", cfg.Network.ServerPort)
	}
	if cfg.Editor.TabStop != 6 {
		t.Errorf("overrides should win: tabStop = %d", cfg.Editor.TabStop)
	}
	if cfg.ReconnectInterval() != 10*time.Second {
		t.Errorf("interval = %v", cfg.ReconnectInterval())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "coled.yaml", "session:\n  maxPasswordLength: 12\n")
	cfg, err := Load(WithFile(path), WithEnvPrefix(""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.MaxPasswordLength != 12 {
		t.Errorf("maxPasswordLength = %d", cfg.Session.MaxPasswordLength)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.toml")

	if _, err := Load(WithFile(missing), WithEnvPrefix("")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("required file: err = %v, want ErrFileNotFound", err)
	}
	cfg, err := Load(WithOptionalFile(missing), WithEnvPrefix(""))
	if err != nil {
		t.Fatalf("optional file: %v", err)
	}
	if cfg.Network.ServerPort != 3018 {
		t.Errorf("port = %d", cfg.Network.ServerPort)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "coled.toml", "[network]\nreconnectIntervalSeconds = -1\n")
	_, err := Load(WithFile(path), WithEnvPrefix(""))
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Path != "network.reconnectIntervalSeconds" {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := writeFile(t, "coled.ini", "x=1")
	if _, err := Load(WithFile(path), WithEnvPrefix("")); err == nil {
		t.Fatal("expected error for .ini")
	}
}
