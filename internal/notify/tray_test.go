// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestTray(ttl time.Duration) (*Broker, *Tray, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := NewBroker()
	tr := NewTray(b, ttl)
	tr.now = clock.now
	return b, tr, clock
}

func TestTray_ExpiresAfterDisplayDuration(t *testing.T) {
	t.Parallel()

	b, tr, clock := newTestTray(DefaultDisplayDuration)
	defer tr.Close()

	b.Error("first")
	clock.advance(2 * time.Second)
	b.Success("second")

	if got := len(tr.Active()); got != 2 {
		t.Fatalf("Active() = %d items, want 2", got)
	}

	clock.advance(1600 * time.Millisecond)
	active := tr.Active()
	if len(active) != 1 || active[0].Message != "second" {
		t.Fatalf("Active() after 3.6s = %+v, want only second", active)
	}

	clock.advance(2 * time.Second)
	if got := len(tr.Active()); got != 0 {
		t.Errorf("Active() = %d items, want 0", got)
	}
}

func TestTray_Dismiss(t *testing.T) {
	t.Parallel()

	b, tr, _ := newTestTray(time.Minute)
	defer tr.Close()

	n := b.Info("hi")
	if !tr.Dismiss(n.ID) {
		t.Fatal("Dismiss() = false, want true")
	}
	if tr.Dismiss(n.ID) {
		t.Error("second Dismiss() should report false")
	}
	if len(tr.Active()) != 0 {
		t.Error("dismissed notification still active")
	}
}

func TestTray_BoundedSize(t *testing.T) {
	t.Parallel()

	b, tr, _ := newTestTray(time.Hour)
	defer tr.Close()

	for i := 0; i < maxTrayItems+10; i++ {
		b.Info("n")
	}
	if got := len(tr.Active()); got != maxTrayItems {
		t.Errorf("Active() = %d items, want %d", got, maxTrayItems)
	}
}

func TestTray_CloseUnsubscribes(t *testing.T) {
	t.Parallel()

	b, tr, _ := newTestTray(time.Minute)
	tr.Close()
	b.Info("after close")

	if len(tr.Active()) != 0 {
		t.Error("closed tray should not receive notifications")
	}
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", b.Subscribers())
	}
}

func TestTray_ServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	_, tr, _ := newTestTray(10 * time.Millisecond)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
