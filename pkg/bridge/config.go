package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// ID styles for correlation ids.
const (
	// IDStyleUUID issues random UUID strings (Android style).
	IDStyleUUID = "uuid"
	// IDStyleHash issues decimal int32 hashes (iOS style). Required when the
	// native layer answers through OnBooleanResponse/OnStringResponse.
	IDStyleHash = "hash"
)

// Config holds the bridge configuration.
// JSON tags enable initialization from serialized config strings.
type Config struct {
	// IDStyle selects the correlation id format: "uuid" or "hash" (default: "uuid").
	IDStyle string `json:"id_style,omitempty"`

	// NativeVersionConstraint is the semver constraint the native SDK version
	// must satisfy (default: ">= 5.0.0, < 6.0.0").
	NativeVersionConstraint string `json:"native_version_constraint,omitempty"`

	// DedupWindowMs is how long resolved ids are remembered (default: 600000 = 10min).
	DedupWindowMs int `json:"dedup_window_ms,omitempty"`

	// DedupCapacity is the expected number of resolved ids per window (default: 100000).
	DedupCapacity int `json:"dedup_capacity,omitempty"`

	// WillDisplayTimeoutMs bounds how long a native thread waits for the
	// foreground will-display handlers (default: 5000).
	WillDisplayTimeoutMs int `json:"will_display_timeout_ms,omitempty"`

	// SkipVersionCheck disables the native version check in Initialize.
	SkipVersionCheck bool `json:"skip_version_check,omitempty"`

	// DebugMode enables verbose logging (default: false).
	DebugMode bool `json:"debug_mode,omitempty"`
}

// Default configuration values.
const (
	DefaultNativeVersionConstraint = ">= 5.0.0, < 6.0.0"
	DefaultDedupWindowMs           = 600000 // 10 minutes
	DefaultDedupCapacity           = 100000
	DefaultWillDisplayTimeoutMs    = 5000

	MinDedupWindowMs        = 1000
	MinWillDisplayTimeoutMs = 10
)

// validate checks that values are valid.
// Returns empty string on success, error message on failure.
func (c *Config) validate() string {
	switch strings.ToLower(strings.TrimSpace(c.IDStyle)) {
	case "", IDStyleUUID, IDStyleHash:
	default:
		return fmt.Sprintf("id_style must be %q or %q", IDStyleUUID, IDStyleHash)
	}

	if c.NativeVersionConstraint != "" {
		if _, err := semver.NewConstraint(c.NativeVersionConstraint); err != nil {
			return fmt.Sprintf("native_version_constraint is not a valid constraint: %s", err.Error())
		}
	}

	if c.DedupWindowMs < 0 {
		return "dedup_window_ms must be non-negative"
	}
	if c.DedupWindowMs > 0 && c.DedupWindowMs < MinDedupWindowMs {
		return fmt.Sprintf("dedup_window_ms must be at least %d", MinDedupWindowMs)
	}
	if c.DedupCapacity < 0 {
		return "dedup_capacity must be non-negative"
	}
	if c.WillDisplayTimeoutMs < 0 {
		return "will_display_timeout_ms must be non-negative"
	}
	if c.WillDisplayTimeoutMs > 0 && c.WillDisplayTimeoutMs < MinWillDisplayTimeoutMs {
		return fmt.Sprintf("will_display_timeout_ms must be at least %d", MinWillDisplayTimeoutMs)
	}

	return ""
}

// applyDefaults fills in default values for unset optional fields.
func (c *Config) applyDefaults() {
	c.IDStyle = strings.ToLower(strings.TrimSpace(c.IDStyle))
	if c.IDStyle == "" {
		c.IDStyle = IDStyleUUID
	}
	if c.NativeVersionConstraint == "" {
		c.NativeVersionConstraint = DefaultNativeVersionConstraint
	}
	if c.DedupWindowMs == 0 {
		c.DedupWindowMs = DefaultDedupWindowMs
	}
	if c.DedupCapacity == 0 {
		c.DedupCapacity = DefaultDedupCapacity
	}
	if c.WillDisplayTimeoutMs == 0 {
		c.WillDisplayTimeoutMs = DefaultWillDisplayTimeoutMs
	}
}

// prepare validates c and applies defaults.
func (c *Config) prepare() error {
	if errMsg := c.validate(); errMsg != "" {
		return fmt.Errorf("config validation failed: %s", errMsg)
	}
	c.applyDefaults()
	return nil
}

func (c *Config) willDisplayTimeout() time.Duration {
	return time.Duration(c.WillDisplayTimeoutMs) * time.Millisecond
}

func (c *Config) dedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMs) * time.Millisecond
}

// ConfigFromJSON parses a JSON config string and returns a validated Config.
func ConfigFromJSON(jsonStr string) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return nil, fmt.Errorf("invalid config JSON: %w", err)
	}
	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
