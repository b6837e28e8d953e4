package httpapi

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"hotline/backend/internal/domain"
	"hotline/backend/internal/service"
)

const (
	tokenIssuer      = "hotline"
	userStoreTimeout = 5 * time.Second
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	errInvalidToken       = errors.New("invalid or expired token")
)

// AuthManager signs staff tokens and keeps a credential cache mirrored from
// the user store. Passwords and the manager PIN are held as bcrypt hashes.
type AuthManager struct {
	mu         sync.RWMutex
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	userStore  UserStore
	staff      map[string]staffCredential
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type staffCredential struct {
	passwordHash string
	role         string
	active       bool
	createdAt    time.Time
}

func (c staffCredential) staffUser(username string) domain.StaffUser {
	return domain.StaffUser{Username: username, Role: c.role, Active: c.active, CreatedAt: c.createdAt}
}

type deskClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	pinHash := ""
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		if hashed, err := hashPassword(pin); err == nil {
			pinHash = hashed
		}
	}

	manager := &AuthManager{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		managerPIN: pinHash,
		userStore:  userStore,
		staff:      make(map[string]staffCredential),
	}
	manager.syncStaff(context.Background())
	return manager
}

// Login syncs the credential cache first so accounts created by another
// instance can sign in.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	a.syncStaff(ctx)
	username := normalizeUsername(req.Username)

	a.mu.RLock()
	cred, ok := a.staff[username]
	a.mu.RUnlock()
	if !ok || !verifyPassword(cred.passwordHash, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !cred.active {
		return domain.LoginResponse{}, ErrInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		Username:    username,
		AccessToken: token,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// ParseToken returns the actor behind a bearer token. Tokens carrying a role
// the desk does not know are refused even when the signature holds.
func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &deskClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || !domain.IsStaffRole(claims.Role) {
		return domain.Actor{}, errInvalidToken
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	claims := deskClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role: role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateManagerPIN gates job cancellation. With no PIN configured every
// attempt fails.
func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || a.managerPIN == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.managerPIN), []byte(input)) == nil
}

// CreateTechnician opens a technician account. Problems with the submitted
// username or password come back as *service.ValidationErrors.
func (a *AuthManager) CreateTechnician(ctx context.Context, req domain.TechnicianCreateRequest) (domain.StaffUser, error) {
	a.syncStaff(ctx)
	username := normalizeUsername(req.Username)

	ve := &service.ValidationErrors{}
	switch {
	case len(username) < 4:
		ve.Add("username", "must be at least 4 characters")
	case strings.ContainsAny(username, " \t\r\n"):
		ve.Add("username", "must not contain spaces")
	default:
		a.mu.RLock()
		_, taken := a.staff[username]
		a.mu.RUnlock()
		if taken {
			ve.Add("username", "already exists")
		}
	}
	if len(strings.TrimSpace(req.Password)) < 6 {
		ve.Add("password", "must be at least 6 characters")
	}
	if err := ve.Err(); err != nil {
		return domain.StaffUser{}, err
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.StaffUser{}, err
	}
	cred := staffCredential{
		passwordHash: passwordHash,
		role:         domain.RoleTechnician,
		active:       true,
		createdAt:    time.Now().UTC(),
	}

	if a.userStore != nil {
		storeCtx, cancel := context.WithTimeout(ctx, userStoreTimeout)
		defer cancel()
		if err := a.userStore.CreateUser(storeCtx, domain.UserAccount{
			Username:  username,
			Password:  cred.passwordHash,
			Role:      cred.role,
			Active:    cred.active,
			CreatedAt: cred.createdAt,
		}); err != nil {
			return domain.StaffUser{}, err
		}
	}

	a.mu.Lock()
	a.staff[username] = cred
	a.mu.Unlock()

	zap.L().Info("technician account created", zap.String("username", username))
	return cred.staffUser(username), nil
}

// ListTechnicians returns technician accounts, inactive ones included, by
// username.
func (a *AuthManager) ListTechnicians(ctx context.Context) []domain.StaffUser {
	a.syncStaff(ctx)

	a.mu.RLock()
	result := make([]domain.StaffUser, 0, len(a.staff))
	for username, cred := range a.staff {
		if cred.role == domain.RoleTechnician {
			result = append(result, cred.staffUser(username))
		}
	}
	a.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

// syncStaff mirrors the user store into the credential cache. Accounts with
// a role outside the desk roles are skipped, and legacy plain-text passwords
// are rehashed and written back.
func (a *AuthManager) syncStaff(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, userStoreTimeout)
	defer cancel()

	accounts, err := a.userStore.ListUsers(ctx)
	if err != nil {
		zap.L().Warn("failed to load staff accounts", zap.Error(err))
		return
	}

	loaded := make(map[string]staffCredential, len(accounts))
	for _, account := range accounts {
		username := normalizeUsername(account.Username)
		if username == "" {
			continue
		}
		if !domain.IsStaffRole(account.Role) {
			zap.L().Warn("skipping account with unknown role", zap.String("username", username), zap.String("role", account.Role))
			continue
		}
		passwordHash := account.Password
		if !isPasswordHash(passwordHash) {
			hashed, err := hashPassword(passwordHash)
			if err != nil {
				continue
			}
			passwordHash = hashed
			if err := a.userStore.UpdateUserPassword(ctx, username, hashed); err != nil {
				zap.L().Warn("failed to upgrade legacy password", zap.String("username", username), zap.Error(err))
			}
		}
		loaded[username] = staffCredential{
			passwordHash: passwordHash,
			role:         account.Role,
			active:       account.Active,
			createdAt:    account.CreatedAt,
		}
	}

	a.mu.Lock()
	for username, cred := range loaded {
		a.staff[username] = cred
	}
	a.mu.Unlock()
}

func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func verifyPassword(hash string, input string) bool {
	if strings.TrimSpace(input) == "" || !isPasswordHash(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
