package service

import (
	"context"
	"testing"
	"time"
)

func TestResolvedService_MarkSeen(t *testing.T) {
	s := NewResolvedService(time.Minute, 100, 0.0001, nil)

	if s.Seen("abc") {
		t.Fatal("unmarked id reported as seen")
	}
	s.Mark("abc")
	if !s.Seen("abc") {
		t.Fatal("marked id not seen")
	}
}

func TestResolvedService_EmptyID(t *testing.T) {
	s := NewResolvedService(time.Minute, 100, 0.0001, nil)
	s.Mark("")
	if s.Seen("") {
		t.Fatal("empty id must never be seen")
	}
}

func TestResolvedService_RotatesInBackground(t *testing.T) {
	s := NewResolvedService(20*time.Millisecond, 100, 0.0001, nil)
	s.Mark("old")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for s.Seen("old") {
		if time.Now().After(deadline) {
			t.Fatal("id never aged out of the window")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResolvedService_StopWithoutStart(t *testing.T) {
	s := NewResolvedService(time.Minute, 100, 0.0001, nil)
	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop without Start blocked")
	}
}

func TestResolvedService_StopAfterContextCancel(t *testing.T) {
	s := NewResolvedService(time.Minute, 100, 0.0001, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after context cancel")
	}
}
