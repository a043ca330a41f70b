// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package notify

import (
	"context"
	"sync"
	"time"
)

// DefaultDisplayDuration is how long a notification stays visible.
const DefaultDisplayDuration = 3500 * time.Millisecond

// maxTrayItems bounds memory if notifications arrive faster than they expire.
const maxTrayItems = 100

type trayItem struct {
	n       Notification
	expires time.Time
}

// Tray is a subscriber that keeps each notification for the display
// duration and then drops it. It backs GET /api/v1/notifications.
type Tray struct {
	mu          sync.Mutex
	items       []trayItem
	ttl         time.Duration
	now         func() time.Time
	unsubscribe func()
}

// NewTray subscribes a tray to b. A non-positive ttl uses DefaultDisplayDuration.
func NewTray(b *Broker, ttl time.Duration) *Tray {
	if ttl <= 0 {
		ttl = DefaultDisplayDuration
	}
	t := &Tray{ttl: ttl, now: time.Now}
	t.unsubscribe = b.Subscribe(t.add)
	return t
}

func (t *Tray) add(n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, trayItem{n: n, expires: t.now().Add(t.ttl)})
	if over := len(t.items) - maxTrayItems; over > 0 {
		t.items = append(t.items[:0:0], t.items[over:]...)
	}
}

// Active returns the notifications still within their display window,
// oldest first.
func (t *Tray) Active() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	out := make([]Notification, len(t.items))
	for i, it := range t.items {
		out[i] = it.n
	}
	return out
}

// Dismiss removes a notification before it expires.
func (t *Tray) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, it := range t.items {
		if it.n.ID == id {
			t.items = append(t.items[:i:i], t.items[i+1:]...)
			return true
		}
	}
	return false
}

// Prune drops expired notifications.
func (t *Tray) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
}

func (t *Tray) pruneLocked() {
	now := t.now()
	kept := t.items[:0]
	for _, it := range t.items {
		if now.Before(it.expires) {
			kept = append(kept, it)
		}
	}
	// Zero the tail so dropped notifications can be collected.
	for i := len(kept); i < len(t.items); i++ {
		t.items[i] = trayItem{}
	}
	t.items = kept
}

// Close unsubscribes the tray from the broker.
func (t *Tray) Close() {
	t.unsubscribe()
}

// Serve prunes expired notifications until ctx is done.
// Implements suture.Service.
func (t *Tray) Serve(ctx context.Context) error {
	ticker := time.NewTicker(t.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Prune()
		}
	}
}

// String names the service in supervisor logs.
func (t *Tray) String() string {
	return "notification-tray"
}
