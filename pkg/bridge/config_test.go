package bridge

import (
	"strings"
	"testing"
)

func TestConfigParsing_ValidConfig(t *testing.T) {
	configJSON := `{
		"id_style": "hash",
		"native_version_constraint": "~5.1",
		"dedup_window_ms": 60000,
		"dedup_capacity": 500,
		"will_display_timeout_ms": 250,
		"skip_version_check": true,
		"debug_mode": true
	}`

	cfg, err := ConfigFromJSON(configJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.IDStyle != IDStyleHash {
		t.Errorf("IDStyle = %q, want %q", cfg.IDStyle, IDStyleHash)
	}
	if cfg.NativeVersionConstraint != "~5.1" {
		t.Errorf("NativeVersionConstraint = %q, want %q", cfg.NativeVersionConstraint, "~5.1")
	}
	if cfg.DedupWindowMs != 60000 {
		t.Errorf("DedupWindowMs = %d, want %d", cfg.DedupWindowMs, 60000)
	}
	if cfg.DedupCapacity != 500 {
		t.Errorf("DedupCapacity = %d, want %d", cfg.DedupCapacity, 500)
	}
	if cfg.WillDisplayTimeoutMs != 250 {
		t.Errorf("WillDisplayTimeoutMs = %d, want %d", cfg.WillDisplayTimeoutMs, 250)
	}
	if !cfg.SkipVersionCheck {
		t.Error("SkipVersionCheck = false, want true")
	}
	if !cfg.DebugMode {
		t.Error("DebugMode = false, want true")
	}
}

func TestConfigParsing_Defaults(t *testing.T) {
	cfg, err := ConfigFromJSON(`{}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.IDStyle != IDStyleUUID {
		t.Errorf("IDStyle = %q, want %q", cfg.IDStyle, IDStyleUUID)
	}
	if cfg.NativeVersionConstraint != DefaultNativeVersionConstraint {
		t.Errorf("NativeVersionConstraint = %q, want %q", cfg.NativeVersionConstraint, DefaultNativeVersionConstraint)
	}
	if cfg.DedupWindowMs != DefaultDedupWindowMs {
		t.Errorf("DedupWindowMs = %d, want %d", cfg.DedupWindowMs, DefaultDedupWindowMs)
	}
	if cfg.DedupCapacity != DefaultDedupCapacity {
		t.Errorf("DedupCapacity = %d, want %d", cfg.DedupCapacity, DefaultDedupCapacity)
	}
	if cfg.WillDisplayTimeoutMs != DefaultWillDisplayTimeoutMs {
		t.Errorf("WillDisplayTimeoutMs = %d, want %d", cfg.WillDisplayTimeoutMs, DefaultWillDisplayTimeoutMs)
	}
}

func TestConfigParsing_IDStyleNormalized(t *testing.T) {
	cfg, err := ConfigFromJSON(`{"id_style": " HASH "}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IDStyle != IDStyleHash {
		t.Errorf("IDStyle = %q, want %q", cfg.IDStyle, IDStyleHash)
	}
}

func TestConfigParsing_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr string
	}{
		{"malformed json", `{not json`, "invalid config JSON"},
		{"unknown id style", `{"id_style": "guid"}`, "id_style"},
		{"bad constraint", `{"native_version_constraint": "five-ish"}`, "native_version_constraint"},
		{"negative window", `{"dedup_window_ms": -1}`, "dedup_window_ms"},
		{"tiny window", `{"dedup_window_ms": 10}`, "dedup_window_ms"},
		{"negative capacity", `{"dedup_capacity": -5}`, "dedup_capacity"},
		{"negative timeout", `{"will_display_timeout_ms": -1}`, "will_display_timeout_ms"},
		{"tiny timeout", `{"will_display_timeout_ms": 1}`, "will_display_timeout_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConfigFromJSON(tt.json)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
