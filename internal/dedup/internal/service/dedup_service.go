// Package service wraps the windowed set with its rotation lifecycle.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SebastienMelki/pushbridge/internal/dedup/internal/domain"
)

// ResolvedService remembers resolved correlation ids for a sliding window and
// rotates the underlying filters in the background.
type ResolvedService struct {
	set    *domain.WindowedSet
	logger *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewResolvedService creates a ResolvedService with the given filter
// parameters.
func NewResolvedService(window time.Duration, capacity uint, fpRate float64, logger *slog.Logger) *ResolvedService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolvedService{
		set:    domain.NewWindowedSet(window, capacity, fpRate),
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Mark records id as resolved. Empty ids are ignored.
func (s *ResolvedService) Mark(id string) {
	if id == "" {
		return
	}
	s.set.Add(id)
}

// Seen reports whether id was probably resolved within the window.
func (s *ResolvedService) Seen(id string) bool {
	if id == "" {
		return false
	}
	return s.set.Test(id)
}

// Start launches the rotation goroutine, which rotates every window/2 until
// ctx is cancelled or Stop is called. Calling Start more than once has no
// further effect.
func (s *ResolvedService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.started = true
		interval := s.set.Window() / 2
		s.logger.Info("resolved-id tracker started",
			"window", s.set.Window(),
			"rotate_interval", interval,
		)

		go func() {
			defer close(s.doneCh)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					s.set.Rotate()
				case <-ctx.Done():
					return
				case <-s.stopCh:
					return
				}
			}
		}()
	})
}

// Stop ends the rotation goroutine and waits for it. It is safe to call
// without Start and more than once.
func (s *ResolvedService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.startOnce.Do(func() {})
		if s.started {
			<-s.doneCh
		}
	})
}

// Rotate forces a rotation.
func (s *ResolvedService) Rotate() {
	s.set.Rotate()
}
