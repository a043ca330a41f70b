// Credboard - Credential Issuance Metrics Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/credboard

package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/credboard/internal/config"
)

func createTestBadgerDB(t *testing.T) *badger.DB {
	t.Helper()

	opts := badger.DefaultOptions(t.TempDir())
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// persisters runs fn against each Persister implementation.
func persisters(t *testing.T, fn func(t *testing.T, p Persister)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryPersister()) })
	t.Run("badger", func(t *testing.T) { fn(t, NewBadgerPersister(createTestBadgerDB(t))) })
}

func TestStore_DefaultsWhenEmpty(t *testing.T) {
	persisters(t, func(t *testing.T, p Persister) {
		s, err := NewStore(context.Background(), p, Defaults{BaseURL: "http://localhost:3001"})
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}
		want := Session{BaseURL: "http://localhost:3001"}
		if diff := cmp.Diff(want, s.Get()); diff != "" {
			t.Errorf("session mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestStore_DefaultCredential(t *testing.T) {
	s, err := NewStore(context.Background(), NewMemoryPersister(), Defaults{Credential: "acp_default"})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	got := s.Get()
	if !got.HasCredential || got.Credential != "acp_default" {
		t.Errorf("Get() = %+v, want default credential", got)
	}
}

func TestStore_ClearedDefaultCredentialStaysCleared(t *testing.T) {
	persisters(t, func(t *testing.T, p Persister) {
		ctx := context.Background()
		defaults := Defaults{Credential: "default-key"}
		s, err := NewStore(ctx, p, defaults)
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}

		if err := s.SetCredential(ctx, "mine"); err != nil {
			t.Fatalf("SetCredential() error = %v", err)
		}
		if err := s.ClearCredential(ctx); err != nil {
			t.Fatalf("ClearCredential() error = %v", err)
		}
		if err := s.Reload(ctx); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		if got := s.Get(); got.HasCredential || got.Credential != "" {
			t.Errorf("Get() after reload = %+v, want absent credential", got)
		}

		// A restart with the same defaults does not log back in.
		restarted, err := NewStore(ctx, p, defaults)
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}
		if got := restarted.Get(); got.HasCredential {
			t.Errorf("Get() after restart = %+v, want absent credential", got)
		}
	})
}

func TestStore_DefaultCredentialKeepsExistingEntry(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	if err := p.Set(ctx, credentialKey, "stored"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	s, err := NewStore(ctx, p, Defaults{Credential: "default-key"})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if got := s.Get().Credential; got != "stored" {
		t.Errorf("Credential = %q, want the persisted value", got)
	}
}

func TestStore_BaseURLRoundTrip(t *testing.T) {
	persisters(t, func(t *testing.T, p Persister) {
		ctx := context.Background()
		s, err := NewStore(ctx, p, Defaults{BaseURL: "http://localhost:3001"})
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}

		const x = "https://host/webhook/abc"
		if err := s.SetBaseURL(ctx, x); err != nil {
			t.Fatalf("SetBaseURL() error = %v", err)
		}
		if err := s.Reload(ctx); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		if got := s.Get().BaseURL; got != x {
			t.Errorf("BaseURL after reload = %q, want %q", got, x)
		}

		// A fresh store over the same persister sees the same value.
		s2, err := NewStore(ctx, p, Defaults{BaseURL: "http://localhost:3001"})
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}
		if got := s2.Get().BaseURL; got != x {
			t.Errorf("BaseURL in new store = %q, want %q", got, x)
		}
	})
}

func TestStore_ClearedCredentialIsRemovedNotBlanked(t *testing.T) {
	persisters(t, func(t *testing.T, p Persister) {
		ctx := context.Background()
		s, err := NewStore(ctx, p, Defaults{})
		if err != nil {
			t.Fatalf("NewStore() error = %v", err)
		}

		if err := s.SetCredential(ctx, "acp_live"); err != nil {
			t.Fatalf("SetCredential() error = %v", err)
		}
		if err := s.ClearCredential(ctx); err != nil {
			t.Fatalf("ClearCredential() error = %v", err)
		}

		if _, err := p.Get(ctx, credentialKey); !errors.Is(err, ErrNotFound) {
			t.Errorf("persisted credential entry: err = %v, want ErrNotFound", err)
		}
		if err := s.Reload(ctx); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		if got := s.Get(); got.HasCredential || got.Credential != "" {
			t.Errorf("Get() after reload = %+v, want absent credential", got)
		}
	})
}

func TestStore_EmptyCredentialIsKept(t *testing.T) {
	persisters(t, func(t *testing.T, p Persister) {
		ctx := context.Background()
		s, _ := NewStore(ctx, p, Defaults{Credential: "acp_default"})

		if err := s.SetCredential(ctx, ""); err != nil {
			t.Fatalf("SetCredential() error = %v", err)
		}
		if err := s.Reload(ctx); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
		got := s.Get()
		if !got.HasCredential || got.Credential != "" {
			t.Errorf("Get() = %+v, want explicit empty credential (not the default)", got)
		}
	})
}

func TestStore_EmptyBaseURLRemovesEntry(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s, _ := NewStore(ctx, p, Defaults{BaseURL: "http://localhost:3001"})

	_ = s.SetBaseURL(ctx, "https://api.example.com")
	if err := s.SetBaseURL(ctx, "  "); err != nil {
		t.Fatalf("SetBaseURL() error = %v", err)
	}
	if _, err := p.Get(ctx, baseURLKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("base URL entry err = %v, want ErrNotFound", err)
	}
	if err := s.Reload(ctx); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := s.Get().BaseURL; got != "http://localhost:3001" {
		t.Errorf("BaseURL = %q, want default after removal", got)
	}
}

func TestStore_SettersAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(ctx, NewMemoryPersister(), Defaults{})

	_ = s.SetCredential(ctx, "k1")
	gen := s.Generation()
	_ = s.SetCredential(ctx, "k1")
	_ = s.SetCredential(ctx, "k1")

	if s.Generation() != gen {
		t.Errorf("Generation changed from %d to %d on identical writes", gen, s.Generation())
	}
	if got := s.Get().Credential; got != "k1" {
		t.Errorf("Credential = %q", got)
	}

	_ = s.SetCredential(ctx, "k2")
	if s.Generation() == gen {
		t.Error("Generation should change when the credential changes")
	}
}

func TestStore_ClearKeepsBaseURL(t *testing.T) {
	ctx := context.Background()
	s, _ := NewStore(ctx, NewMemoryPersister(), Defaults{})
	_ = s.SetBaseURL(ctx, "https://api.example.com")
	_ = s.SetCredential(ctx, "k1")

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	want := Session{BaseURL: "https://api.example.com"}
	if diff := cmp.Diff(want, s.Get()); diff != "" {
		t.Errorf("session after logout (-want +got):\n%s", diff)
	}
}

func TestStore_EncryptedCredential(t *testing.T) {
	ctx := context.Background()
	enc, err := config.NewCredentialEncryptor("test-secret")
	if err != nil {
		t.Fatalf("NewCredentialEncryptor() error = %v", err)
	}
	p := NewBadgerPersister(createTestBadgerDB(t))

	s, err := NewStore(ctx, p, Defaults{}, WithEncryptor(enc))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := s.SetCredential(ctx, "acp_secret_value"); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	raw, err := p.Get(ctx, credentialKey)
	if err != nil {
		t.Fatalf("persister Get() error = %v", err)
	}
	if !strings.HasPrefix(raw, encryptedPrefix) || strings.Contains(raw, "acp_secret_value") {
		t.Errorf("stored credential %q is not encrypted", raw)
	}

	s2, err := NewStore(ctx, p, Defaults{}, WithEncryptor(enc))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if got := s2.Get().Credential; got != "acp_secret_value" {
		t.Errorf("decrypted credential = %q", got)
	}

	if _, err := NewStore(ctx, p, Defaults{}); !errors.Is(err, ErrNoEncryptor) {
		t.Errorf("NewStore() without encryptor error = %v, want ErrNoEncryptor", err)
	}
}

func TestSession_Pair(t *testing.T) {
	t.Parallel()

	absent := Session{BaseURL: "https://a"}
	empty := Session{BaseURL: "https://a", HasCredential: true}
	if absent.Pair() != empty.Pair() {
		t.Error("absent and empty credentials should map to the same pair")
	}
	other := Session{BaseURL: "https://a", Credential: "k", HasCredential: true}
	if other.Pair() == absent.Pair() {
		t.Error("different credentials should map to different pairs")
	}
}

func TestNewPersister(t *testing.T) {
	p, err := NewPersister(StoreBadger, t.TempDir())
	if err != nil {
		t.Fatalf("NewPersister(badger) error = %v", err)
	}
	ctx := context.Background()
	if err := p.Set(ctx, "k", ""); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, err := p.Get(ctx, "k"); err != nil || v != "" {
		t.Errorf("Get() = %q, %v; want empty value and nil error", v, err)
	}
	if err := p.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := NewPersister("redis", ""); err == nil {
		t.Error("unknown store type should fail")
	}
}

func TestBadgerPersister_GC(t *testing.T) {
	p := NewBadgerPersister(createTestBadgerDB(t))
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_ = p.Set(ctx, credentialKey, strings.Repeat("x", i))
	}
	if err := p.RunGC(); err != nil {
		t.Errorf("RunGC() error = %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := p.Serve(cctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	if p.String() != "session-gc" {
		t.Errorf("String() = %q", p.String())
	}
}
