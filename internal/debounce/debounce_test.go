package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerReplacesPendingCall(t *testing.T) {
	clock := NewManual()
	d := New(clock.Schedule)

	var calls []string
	d.Trigger("title", 300*time.Millisecond, func() { calls = append(calls, "first") })
	clock.Advance(200 * time.Millisecond)
	d.Trigger("title", 300*time.Millisecond, func() { calls = append(calls, "second") })
	clock.Advance(200 * time.Millisecond)
	if len(calls) != 0 {
		t.Fatalf("expected no call before idle interval, got %v", calls)
	}
	clock.Advance(100 * time.Millisecond)
	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("expected only the latest call, got %v", calls)
	}
	if d.Pending("title") {
		t.Fatal("expected handle to be released after firing")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	clock := NewManual()
	d := New(clock.Schedule)

	fired := map[string]int{}
	d.Trigger("a", 100*time.Millisecond, func() { fired["a"]++ })
	d.Trigger("b", 100*time.Millisecond, func() { fired["b"]++ })
	d.Trigger("a", 100*time.Millisecond, func() { fired["a"]++ })
	clock.Advance(100 * time.Millisecond)
	if fired["a"] != 1 || fired["b"] != 1 {
		t.Fatalf("unexpected fires %v", fired)
	}
}

func TestCancelAndStop(t *testing.T) {
	clock := NewManual()
	d := New(clock.Schedule)

	fired := 0
	d.Trigger("a", time.Second, func() { fired++ })
	if !d.Cancel("a") {
		t.Fatal("expected pending call to be cancelled")
	}
	if d.Cancel("a") {
		t.Fatal("expected nothing left to cancel")
	}
	d.Trigger("b", time.Second, func() { fired++ })
	d.Trigger("c", time.Second, func() { fired++ })
	d.Stop()
	d.Trigger("d", time.Second, func() { fired++ })
	clock.Advance(time.Minute)
	if fired != 0 {
		t.Fatalf("expected no fires after stop, got %d", fired)
	}
	if d.Len() != 0 || clock.Active() != 0 {
		t.Fatal("expected no live timers")
	}
}

func TestStaleFireIsIgnored(t *testing.T) {
	var stale func()
	d := New(func(_ time.Duration, f func()) Timer {
		if stale == nil {
			stale = f
		}
		return stopper{}
	})

	var fired atomic.Int32
	d.Trigger("a", time.Second, func() { fired.Add(1) })
	d.Trigger("a", time.Second, func() { fired.Add(10) })
	// The first timer's Stop lost the race and its callback still runs.
	stale()
	if fired.Load() != 0 {
		t.Fatalf("expected stale callback to be dropped, got %d", fired.Load())
	}
}

type stopper struct{}

func (stopper) Stop() bool { return false }

func TestRealScheduler(t *testing.T) {
	d := New(nil)
	done := make(chan struct{})
	d.Trigger("a", time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}
