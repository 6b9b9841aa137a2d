package session

import (
	"context"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/emotrace/emotrace-backend/pkg/config"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

type fakeKeyer struct{}

func (fakeKeyer) AccessSessionKey(accessID string) string {
	return "session:access:" + accessID
}

func newTestManager(store *fakeStore) *Manager {
	return &Manager{store: store, keyer: fakeKeyer{}, ttl: time.Hour}
}

func TestGenerateStoresToken(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	token, err := m.Generate(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if store.values["session:access:access-1"] != token {
		t.Fatal("token not persisted under session key")
	}

	ok, err := m.HasSession(context.Background(), "access-1")
	if err != nil {
		t.Fatalf("HasSession: %v", err)
	}
	if !ok {
		t.Fatal("expected active session")
	}
}

func TestRotateInvalidatesOldSession(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()

	token, err := m.Generate(ctx, "access-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	newID, newToken, err := m.Rotate(ctx, "access-1", token)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if newID == "" || newToken == "" {
		t.Fatal("expected new access id and token")
	}
	if newToken == token {
		t.Fatal("expected rotated token to differ")
	}

	if ok, _ := m.HasSession(ctx, "access-1"); ok {
		t.Fatal("old session should be revoked")
	}
	if ok, _ := m.HasSession(ctx, newID); !ok {
		t.Fatal("new session should be active")
	}
}

func TestRotateRejectsWrongToken(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()

	if _, err := m.Generate(ctx, "access-1"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, _, err := m.Rotate(ctx, "access-1", "forged"); err != ErrInvalidRefreshToken {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRotateUnknownAccessID(t *testing.T) {
	m := newTestManager(newFakeStore())
	if _, _, err := m.Rotate(context.Background(), "missing", "token"); err != ErrInvalidRefreshToken {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRevokeRemovesSession(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()

	if _, err := m.Generate(ctx, "access-1"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := m.Revoke(ctx, "access-1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, _ := m.HasSession(ctx, "access-1"); ok {
		t.Fatal("expected session gone after revoke")
	}
}

func TestNewManagerValidatesTTL(t *testing.T) {
	cfg := config.JWTConfig{ExpirationMinutes: 120, RefreshTokenTTLMinutes: 60}
	if _, err := NewManager(nil, cfg); err == nil {
		t.Fatal("expected error for nil client")
	}
}
