package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"AUTO_FETCH", "FETCH_INTERVAL", "FETCH_INTERVAL_MS", "BATCH_LIMIT", "AUTO_SEND_URGENT", "DEFAULT_FROM", "SMTP_USER"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.AutoFetch {
		t.Error("AutoFetch should default to false")
	}
	if cfg.FetchInterval != 5*time.Minute {
		t.Errorf("FetchInterval = %v, want 5m", cfg.FetchInterval)
	}
	if cfg.BatchLimit != 50 {
		t.Errorf("BatchLimit = %d, want 50", cfg.BatchLimit)
	}
	if cfg.AutoSendUrgent {
		t.Error("AutoSendUrgent should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		interval time.Duration
		from     string
	}{
		{
			name:     "interval as duration",
			env:      map[string]string{"FETCH_INTERVAL": "90s", "FETCH_INTERVAL_MS": ""},
			interval: 90 * time.Second,
		},
		{
			name:     "interval in milliseconds",
			env:      map[string]string{"FETCH_INTERVAL": "", "FETCH_INTERVAL_MS": "60000"},
			interval: time.Minute,
		},
		{
			name:     "garbage falls back to default",
			env:      map[string]string{"FETCH_INTERVAL": "soon", "FETCH_INTERVAL_MS": "never"},
			interval: 5 * time.Minute,
		},
		{
			name:     "default from falls back to smtp user",
			env:      map[string]string{"FETCH_INTERVAL": "", "FETCH_INTERVAL_MS": "", "DEFAULT_FROM": "", "SMTP_USER": "desk@example.com"},
			interval: 5 * time.Minute,
			from:     "desk@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEFAULT_FROM", "")
			t.Setenv("SMTP_USER", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := Load()
			if cfg.FetchInterval != tt.interval {
				t.Errorf("FetchInterval = %v, want %v", cfg.FetchInterval, tt.interval)
			}
			if cfg.DefaultFrom != tt.from {
				t.Errorf("DefaultFrom = %q, want %q", cfg.DefaultFrom, tt.from)
			}
		})
	}
}
