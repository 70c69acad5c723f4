package mainthread

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPump_FIFO(t *testing.T) {
	d := New(nil, nil)

	var got []int
	for i := 0; i < 5; i++ {
		if err := d.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}

	if n := d.Pump(); n != 5 {
		t.Fatalf("expected 5 tasks run, got %d", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
	if d.Pump() != 0 {
		t.Fatal("second Pump should find nothing")
	}
}

func TestPump_PostedDuringPumpWaitsForNextPump(t *testing.T) {
	d := New(nil, nil)

	var inner bool
	_ = d.Post(func() {
		_ = d.Post(func() { inner = true })
	})

	if n := d.Pump(); n != 1 {
		t.Fatalf("expected 1 task, got %d", n)
	}
	if inner {
		t.Fatal("task posted during Pump ran in the same Pump")
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 queued task, got %d", d.Len())
	}
	d.Pump()
	if !inner {
		t.Fatal("nested task never ran")
	}
}

func TestPump_RecoversPanics(t *testing.T) {
	d := New(nil, nil)

	var after bool
	_ = d.Post(func() { panic("boom") })
	_ = d.Post(func() { after = true })

	if n := d.Pump(); n != 2 {
		t.Fatalf("expected 2 tasks run, got %d", n)
	}
	if !after {
		t.Fatal("task after a panicking task did not run")
	}
}

func TestPost_Nil(t *testing.T) {
	d := New(nil, nil)
	if err := d.Post(nil); !errors.Is(err, ErrNilTask) {
		t.Fatalf("expected ErrNilTask, got %v", err)
	}
}

func TestSend_BlocksUntilPumped(t *testing.T) {
	d := New(nil, nil)

	var ran bool
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Send(context.Background(), func() { ran = true })
	}()

	waitForQueue(t, d, 1)

	select {
	case <-errCh:
		t.Fatal("Send returned before the task was pumped")
	default:
	}

	d.Pump()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not return after Pump")
	}
	if !ran {
		t.Fatal("task did not run")
	}
}

func TestSend_ContextCancelledSkipsTask(t *testing.T) {
	d := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var ran bool
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Send(ctx, func() { ran = true })
	}()

	waitForQueue(t, d, 1)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not return after cancel")
	}

	if n := d.Pump(); n != 0 {
		t.Fatalf("abandoned task should not run, ran %d", n)
	}
	if ran {
		t.Fatal("abandoned task ran")
	}
}

func TestSend_ReportsPanic(t *testing.T) {
	d := New(nil, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Send(context.Background(), func() { panic("handler bug") })
	}()

	waitForQueue(t, d, 1)
	d.Pump()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrTaskPanicked) {
			t.Fatalf("expected ErrTaskPanicked, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not return")
	}
}

func TestClose(t *testing.T) {
	d := New(nil, nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Send(context.Background(), func() {})
	}()
	waitForQueue(t, d, 1)

	d.Close()
	d.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not release Send")
	}

	if err := d.Post(func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Post, got %v", err)
	}
	if err := d.Send(context.Background(), func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Send, got %v", err)
	}
}

func TestRun_PumpsUntilCancelled(t *testing.T) {
	d := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, time.Hour) }()

	// Send only returns once Run has pumped, which the wake signal triggers
	// long before the hourly tick.
	var mu sync.Mutex
	count := 0
	for i := 0; i < 3; i++ {
		if err := d.Send(context.Background(), func() {
			mu.Lock()
			count++
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 3 {
		t.Fatalf("expected 3 tasks, got %d", count)
	}
}

func TestRun_InvalidInterval(t *testing.T) {
	d := New(nil, nil)
	if err := d.Run(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func waitForQueue(t *testing.T, d *Dispatcher, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for d.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("queue never reached %d tasks", n)
		}
		time.Sleep(time.Millisecond)
	}
}
