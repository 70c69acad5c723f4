package observability

import (
	"testing"
	"time"
)

func TestLogThrottle_SuppressesAfterBurst(t *testing.T) {
	th := NewLogThrottle(time.Hour, 2)

	for i := 0; i < 2; i++ {
		if ok, _ := th.Allow(); !ok {
			t.Fatalf("entry %d within burst was suppressed", i)
		}
	}
	for i := 0; i < 3; i++ {
		if ok, _ := th.Allow(); ok {
			t.Fatal("entry beyond burst was allowed")
		}
	}
	if got := th.suppressed.Load(); got != 3 {
		t.Fatalf("expected 3 suppressed, got %d", got)
	}
}

func TestLogThrottle_ReportsSuppressedCount(t *testing.T) {
	th := NewLogThrottle(10*time.Millisecond, 1)

	if ok, _ := th.Allow(); !ok {
		t.Fatal("first entry suppressed")
	}
	th.Allow()
	th.Allow()

	time.Sleep(30 * time.Millisecond)

	ok, suppressed := th.Allow()
	if !ok {
		t.Fatal("entry after interval suppressed")
	}
	if suppressed != 2 {
		t.Fatalf("expected 2 suppressed, got %d", suppressed)
	}
}

func TestLogThrottle_Nil(t *testing.T) {
	var th *LogThrottle
	if ok, n := th.Allow(); !ok || n != 0 {
		t.Fatal("nil throttle must allow everything")
	}
}
