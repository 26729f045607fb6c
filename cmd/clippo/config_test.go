package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// daemonViper binds the daemon command's flags with the given config file
// contents and flag overrides.
func daemonViper(t *testing.T, toml string, flags map[string]string) *viper.Viper {
	t.Helper()
	cmd := newDaemonCmd()
	path := filepath.Join(t.TempDir(), "clippo.toml")
	if err := os.WriteFile(path, []byte(toml), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("config", path); err != nil {
		t.Fatal(err)
	}
	for k, val := range flags {
		if err := cmd.Flags().Set(k, val); err != nil {
			t.Fatal(err)
		}
	}
	v := viper.New()
	if err := bindViper(cmd, v); err != nil {
		t.Fatalf("bindViper: %v", err)
	}
	return v
}

func TestBindViperPrecedence(t *testing.T) {
	t.Setenv("CLIPPO_MAX_HISTORY", "7")
	t.Setenv("CLIPPO_PUSH_ADDR", "127.0.0.1:9000")

	v := daemonViper(t, `
poll-interval = "250ms"
max-history = 3
push-addr = "127.0.0.1:8000"
`, map[string]string{"push-addr": "127.0.0.1:9100"})

	if got := v.GetDuration("poll-interval"); got != 250*time.Millisecond {
		t.Errorf("poll-interval = %s, want config file value", got)
	}
	if got := v.GetInt("max-history"); got != 7 {
		t.Errorf("max-history = %d, want env value 7", got)
	}
	if got := v.GetString("push-addr"); got != "127.0.0.1:9100" {
		t.Errorf("push-addr = %s, want flag value", got)
	}
	if got := v.GetString("control-addr"); got != "127.0.0.1:7879" {
		t.Errorf("control-addr = %s, want default", got)
	}
}

func TestBindViperBadConfigFile(t *testing.T) {
	cmd := newDaemonCmd()
	path := filepath.Join(t.TempDir(), "clippo.toml")
	if err := os.WriteFile(path, []byte("max-history = ["), 0o600); err != nil {
		t.Fatal(err)
	}
	_ = cmd.Flags().Set("config", path)
	if err := bindViper(cmd, viper.New()); err == nil {
		t.Error("malformed config file accepted")
	}
}

func TestCheckDaemonConfig(t *testing.T) {
	tests := []struct {
		name    string
		flags   map[string]string
		wantErr string
	}{
		{name: "defaults"},
		{name: "zero history", flags: map[string]string{"max-history": "0"}, wantErr: "max-history"},
		{name: "negative interval", flags: map[string]string{"poll-interval": "-1s"}, wantErr: "poll-interval"},
		{name: "shared port", flags: map[string]string{"push-addr": "127.0.0.1:7879"}, wantErr: "both"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDaemonConfig(daemonViper(t, "", tt.flags))
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
