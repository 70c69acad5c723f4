package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_CompleteOnce(t *testing.T) {
	f := newFuture[int](nil)

	var got []int
	f.OnComplete(func(v int, _ error) { got = append(got, v) })

	if !f.complete(1, nil) {
		t.Fatal("first complete reported false")
	}
	if f.complete(2, nil) {
		t.Error("second complete reported true")
	}
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("handler calls = %v, want [1]", got)
	}

	v, err := f.Await(context.Background())
	if err != nil || v != 1 {
		t.Errorf("Await = %d, %v; want 1, nil", v, err)
	}
}

func TestFuture_OnCompleteAfterCompletion(t *testing.T) {
	want := errors.New("boom")
	f := failedFuture[string](want)

	called := false
	f.OnComplete(func(_ string, err error) {
		called = true
		if !errors.Is(err, want) {
			t.Errorf("err = %v, want %v", err, want)
		}
	})
	if !called {
		t.Error("handler registered after completion did not run")
	}
	select {
	case <-f.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestFuture_AwaitWaitsForCompletion(t *testing.T) {
	f := newFuture[bool](nil)
	go func() {
		time.Sleep(5 * time.Millisecond)
		f.complete(true, nil)
	}()

	v, err := f.Await(context.Background())
	if err != nil || !v {
		t.Errorf("Await = %v, %v; want true, nil", v, err)
	}
}

func TestFuture_AwaitWithoutCancelHook(t *testing.T) {
	f := newFuture[bool](nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Await(ctx); !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("Await error = %v, want ErrCancelled wrapping context.Canceled", err)
	}
}

func TestFuture_NilHandlerIgnored(t *testing.T) {
	f := newFuture[int](nil)
	f.OnComplete(nil)
	f.complete(3, nil)
}
