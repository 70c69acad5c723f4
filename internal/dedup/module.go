package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/SebastienMelki/pushbridge/internal/dedup/internal/service"
)

// Config holds the dedup module configuration.
//
// Environment variable overrides:
//   - DEDUP_WINDOW:   how long resolved ids are remembered (default: 10m)
//   - DEDUP_CAPACITY: expected resolutions per window (default: 100000)
//   - DEDUP_FP_RATE:  bloom filter false positive rate (default: 0.0001)
type Config struct {
	Window   time.Duration `env:"DEDUP_WINDOW"   envDefault:"10m"`
	Capacity uint          `env:"DEDUP_CAPACITY" envDefault:"100000"`
	FPRate   float64       `env:"DEDUP_FP_RATE"  envDefault:"0.0001"`
}

// DefaultConfig returns a 10 minute window sized for 100k resolutions at a
// 0.01% false positive rate.
func DefaultConfig() Config {
	return Config{
		Window:   10 * time.Minute,
		Capacity: 100_000,
		FPRate:   0.0001,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.Capacity == 0 {
		c.Capacity = d.Capacity
	}
	if c.FPRate <= 0 || c.FPRate >= 1 {
		c.FPRate = d.FPRate
	}
	return c
}

// Module is the dedup facade used by the native dispatcher.
type Module struct {
	svc *service.ResolvedService
}

var _ ResolvedSet = (*Module)(nil)

// New creates a Module. Zero config fields take their defaults.
func New(cfg Config, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Module{
		svc: service.NewResolvedService(cfg.Window, cfg.Capacity, cfg.FPRate, logger.With("component", "dedup")),
	}
}

// Start begins the background filter rotation.
func (m *Module) Start(ctx context.Context) {
	m.svc.Start(ctx)
}

// Stop ends the background rotation and waits for it.
func (m *Module) Stop() {
	m.svc.Stop()
}

// MarkResolved records id as resolved.
func (m *Module) MarkResolved(id string) {
	m.svc.Mark(id)
}

// WasResolved reports whether id was probably resolved within the window.
func (m *Module) WasResolved(id string) bool {
	return m.svc.Seen(id)
}
