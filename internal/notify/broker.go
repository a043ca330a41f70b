// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

// Package notify is the process-wide notification bus.
//
// A Broker carries short user-facing messages (success, error, info) from
// producers such as the backend adapter to any number of subscribers: the
// Tray that backs the polling endpoint and the websocket hub. Nothing is
// persisted; subscribers discard messages after their display duration.
//
//	b := notify.NewBroker()
//	unsubscribe := b.Subscribe(func(n notify.Notification) { ... })
//	defer unsubscribe()
//	b.Error("could not connect to the backend")
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/credboard/internal/logging"
	"github.com/tomtom215/credboard/internal/metrics"
)

// Kind classifies a notification.
type Kind string

// Notification kinds.
const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSuccess, KindError, KindInfo:
		return true
	}
	return false
}

// Notification is a transient user-facing message.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Handler receives published notifications. Handlers run synchronously on
// the publisher's goroutine and must not block.
type Handler func(Notification)

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(n Notification) Notification
}

type subscription struct {
	id      uint64
	handler Handler
}

// Broker fans notifications out to subscribers in subscription order.
type Broker struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	now    func() time.Time
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{now: time.Now}
}

// Subscribe registers h and returns a function that removes it.
// The returned function is safe to call more than once.
func (b *Broker) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})
	metrics.NotificationSubscribers.Set(float64(len(b.subs)))
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			break
		}
	}
	metrics.NotificationSubscribers.Set(float64(len(b.subs)))
}

// Subscribers returns the current subscriber count.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish assigns an ID and timestamp when missing and delivers n to every
// current subscriber. Unknown kinds are delivered as info.
func (b *Broker) Publish(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = b.now()
	}
	if !n.Kind.Valid() {
		logging.Warn().Str("kind", string(n.Kind)).Msg("Unknown notification kind, publishing as info")
		n.Kind = KindInfo
	}

	// Snapshot so handlers may subscribe or unsubscribe while being called.
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	metrics.NotificationsPublished.WithLabelValues(string(n.Kind)).Inc()
	for _, s := range subs {
		deliver(s.handler, n)
	}
	return n
}

// deliver isolates the publisher from a panicking subscriber.
func deliver(h Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("notification_id", n.ID).Msg("Notification subscriber panicked")
		}
	}()
	h(n)
}

// Success publishes a success notification.
func (b *Broker) Success(message string) Notification {
	return b.Publish(Notification{Kind: KindSuccess, Message: message})
}

// Error publishes an error notification.
func (b *Broker) Error(message string) Notification {
	return b.Publish(Notification{Kind: KindError, Message: message})
}

// Info publishes an info notification.
func (b *Broker) Info(message string) Notification {
	return b.Publish(Notification{Kind: KindInfo, Message: message})
}
