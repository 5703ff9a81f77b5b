package httpapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
	lists   int
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"kasir": {
				Username:  "kasir",
				Password:  "kasir123",
				Role:      "cashier",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	if _, err := manager.Login(domain.LoginRequest{Username: "kasir", Password: "kasir123"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	store.mu.Lock()
	upgraded := store.users["kasir"].Password
	store.mu.Unlock()
	if upgraded == "kasir123" {
		t.Fatalf("expected plain-text password to be upgraded to a hash")
	}
	if !isPasswordHash(upgraded) {
		t.Fatalf("expected bcrypt hash, got %q", upgraded)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	hash, err := hashPassword("rahasia1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {Username: "admin", Password: hash, Role: "admin", Active: true},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	resp, err := manager.Login(domain.LoginRequest{Username: "admin", Password: "rahasia1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}

	if _, err := manager.ParseToken(resp.AccessToken + "x"); err == nil {
		t.Fatalf("tampered token must not parse")
	}
}

func TestLoginReloadsStoreOnlyOnCacheMiss(t *testing.T) {
	hash, _ := hashPassword("rahasia1")
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {Username: "admin", Password: hash, Role: "admin", Active: true},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)

	store.mu.Lock()
	afterBootstrap := store.lists
	store.mu.Unlock()

	for i := 0; i < 3; i++ {
		if _, err := manager.Login(domain.LoginRequest{Username: "admin", Password: "rahasia1"}); err != nil {
			t.Fatalf("login %d failed: %v", i+1, err)
		}
	}

	store.mu.Lock()
	afterLogins := store.lists
	store.mu.Unlock()
	if afterLogins != afterBootstrap {
		t.Fatalf("cached logins must not rescan the user store: %d scans before, %d after", afterBootstrap, afterLogins)
	}

	// An account created after startup is picked up on its first login.
	store.mu.Lock()
	store.users["baru"] = domain.UserAccount{Username: "baru", Password: hash, Role: "cashier", Active: true}
	store.mu.Unlock()

	if _, err := manager.Login(domain.LoginRequest{Username: "baru", Password: "rahasia1"}); err != nil {
		t.Fatalf("login for late-created account failed: %v", err)
	}

	store.mu.Lock()
	afterMiss := store.lists
	store.mu.Unlock()
	if afterMiss != afterLogins+1 {
		t.Fatalf("cache miss must reload the store exactly once: %d scans before, %d after", afterLogins, afterMiss)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	hash, _ := hashPassword("rahasia1")
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"bekas": {Username: "bekas", Password: hash, Role: "cashier", Active: false},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, store)
	if _, err := manager.Login(domain.LoginRequest{Username: "bekas", Password: "rahasia1"}); err == nil {
		t.Fatalf("inactive account must not log in")
	}
}
