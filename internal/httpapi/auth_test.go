package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hotline/backend/internal/domain"
	"hotline/backend/internal/service"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	_, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateTechnicianStoresPasswordHash(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      "admin",
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	tech, err := manager.CreateTechnician(context.Background(), domain.TechnicianCreateRequest{
		Username: "budi.tech",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create technician failed: %v", err)
	}
	if tech.Username != "budi.tech" || tech.Role != domain.RoleTechnician {
		t.Fatalf("unexpected technician %+v", tech)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].Username == "budi.tech" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected technician to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected technician password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(context.Background(), domain.LoginRequest{
		Username: "budi.tech",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("login with hashed technician failed: %v", err)
	}
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}
	manager := NewAuthManager("test-secret", time.Hour, "654321", store)

	if manager.managerPIN == "654321" {
		t.Fatalf("expected manager pin to be stored as hash, got plain-text")
	}

	if !manager.ValidateManagerPIN("654321") {
		t.Fatalf("expected manager pin validation to succeed")
	}

	if manager.ValidateManagerPIN("111111") {
		t.Fatalf("expected wrong manager pin to fail")
	}
}

func TestCreateTechnicianReportsFieldErrors(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"zaki": {Username: "zaki", Password: "tech1234", Role: domain.RoleTechnician, Active: true},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	cases := []struct {
		req   domain.TechnicianCreateRequest
		field string
	}{
		{domain.TechnicianCreateRequest{Username: "abc", Password: "pass1234"}, "username"},
		{domain.TechnicianCreateRequest{Username: "with space", Password: "pass1234"}, "username"},
		{domain.TechnicianCreateRequest{Username: " ZAKI ", Password: "pass1234"}, "username"},
		{domain.TechnicianCreateRequest{Username: "validname", Password: "123"}, "password"},
	}
	for _, tc := range cases {
		_, err := manager.CreateTechnician(context.Background(), tc.req)
		var ve *service.ValidationErrors
		if !errors.As(err, &ve) {
			t.Fatalf("%+v: expected ValidationErrors, got %v", tc.req, err)
		}
		if len(ve.Errors) != 1 || ve.Errors[0].Field != tc.field {
			t.Fatalf("%+v: expected one %s error, got %+v", tc.req, tc.field, ve.Errors)
		}
	}
	if len(store.users) != 1 {
		t.Fatalf("expected no account to be stored, got %d", len(store.users))
	}
}

func TestUnknownRoleAccountsCannotSignIn(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"auditor": {Username: "auditor", Password: "audit1234", Role: "auditor", Active: true},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "auditor", Password: "audit1234"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	forged, err := manager.sign("auditor", "auditor", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := manager.ParseToken(forged); err == nil {
		t.Fatalf("expected token with unknown role to be rejected")
	}
}

func TestManagerPINUnsetRejectsEverything(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "", nil)
	if manager.ValidateManagerPIN("") || manager.ValidateManagerPIN("123456") {
		t.Fatalf("expected every pin to fail without a configured pin")
	}
}

func TestListTechniciansOnlyReturnsTechnicians(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {Username: "admin", Password: "admin123", Role: domain.RoleAdmin, Active: true},
			"zaki":  {Username: "zaki", Password: "tech1234", Role: domain.RoleTechnician, Active: true},
			"ayu":   {Username: "ayu", Password: "tech1234", Role: domain.RoleTechnician, Active: false},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	techs := manager.ListTechnicians(context.Background())
	if len(techs) != 2 {
		t.Fatalf("expected 2 technicians, got %d", len(techs))
	}
	if techs[0].Username != "ayu" || techs[1].Username != "zaki" {
		t.Fatalf("expected technicians sorted by username, got %+v", techs)
	}
}

func TestInactiveAccountCannotLogin(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"ayu": {Username: "ayu", Password: "tech1234", Role: domain.RoleTechnician, Active: false},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "ayu", Password: "tech1234"}); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestParseTokenRoundTripsActor(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"zaki": {Username: "zaki", Password: "tech1234", Role: domain.RoleTechnician, Active: true},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " ZAKI ", Password: "tech1234"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if resp.Username != "zaki" || actor.Username != "zaki" || actor.Role != domain.RoleTechnician {
		t.Fatalf("unexpected actor %+v", actor)
	}

	other := NewAuthManager("other-secret", time.Hour, "123456", store)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
