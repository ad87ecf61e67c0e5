package app

import (
	"fmt"
	"strings"
	"time"

	"resolvd/internal/storage"
	"resolvd/internal/store"
	"resolvd/internal/util"
	"resolvd/internal/usertoken"
	"resolvd/pkg/domain"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	SessionTTL      time.Duration
	TokenTTL        time.Duration
	JWTSecret       string
	AdminSecretCode string
	Store           store.Store
	Sessions        store.SessionStore
	Documents       storage.ObjectStore
	Tokens          *usertoken.Codec
}

// App is the core application service wiring together storage, sessions,
// document storage and token issuance.
type App struct {
	store       store.Store
	sessions    store.SessionStore
	documents   storage.ObjectStore
	tokens      *usertoken.Codec
	adminSecret string
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 30 * 24 * time.Hour
	}
	if strings.TrimSpace(cfg.AdminSecretCode) == "" {
		return nil, fmt.Errorf("admin secret code required")
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for redis session strategy")
		}
		sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
	}

	tokens := cfg.Tokens
	if tokens == nil {
		var err error
		tokens, err = usertoken.New(cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("init token codec: %w", err)
		}
	}

	documents := cfg.Documents
	if documents == nil {
		return nil, fmt.Errorf("document store required")
	}

	return &App{
		store:       dataStore,
		sessions:    sessionStore,
		documents:   documents,
		tokens:      tokens,
		adminSecret: cfg.AdminSecretCode,
	}, nil
}

// AuthCallback resolves the identity asserted by the auth provider into a
// local user, creating one on first sight. The role hint is honored only at
// creation time; an existing user keeps its stored role no matter what the
// caller asserts.
func (a *App) AuthCallback(subject, email, displayName, roleHint string) (domain.User, string, string, error) {
	subject = strings.TrimSpace(subject)
	email = strings.TrimSpace(strings.ToLower(email))
	displayName = strings.TrimSpace(displayName)
	if subject == "" || email == "" || displayName == "" {
		return domain.User{}, "", "", ErrCallbackFieldsRequired
	}

	user, found, err := a.store.GetUserBySubject(subject)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("lookup user: %w", err)
	}
	if !found {
		role := domain.RoleConsumer
		switch domain.UserRole(strings.ToUpper(strings.TrimSpace(roleHint))) {
		case domain.RoleBusiness:
			role = domain.RoleBusiness
		case domain.RoleAdmin:
			role = domain.RoleAdmin
		}
		seqID, err := store.NextSeqID(a.store, store.SeqUsers, "USR")
		if err != nil {
			return domain.User{}, "", "", fmt.Errorf("allocate user id: %w", err)
		}
		now := time.Now().UTC()
		user = domain.User{
			ID:          util.NewID(),
			SubjectID:   subject,
			Email:       email,
			DisplayName: displayName,
			Role:        role,
			SeqID:       seqID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := a.store.SaveUser(user); err != nil {
			return domain.User{}, "", "", fmt.Errorf("create user: %w", err)
		}
	} else if user.Email != email || user.DisplayName != displayName {
		user.Email = email
		user.DisplayName = displayName
		user.UpdatedAt = time.Now().UTC()
		if err := a.store.SaveUser(user); err != nil {
			return domain.User{}, "", "", fmt.Errorf("refresh user: %w", err)
		}
	}

	sessionToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("create session: %w", err)
	}
	bearer, err := a.tokens.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue token: %w", err)
	}
	return user, sessionToken, bearer, nil
}

// UserFromSession resolves a session token to its user. A stale or unknown
// token yields found=false, never an error the caller must distinguish.
func (a *App) UserFromSession(token string) (domain.User, bool) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// UserFromBearer resolves a signed bearer token to its user.
func (a *App) UserFromBearer(token string) (domain.User, bool) {
	userID, err := a.tokens.Verify(token)
	if err != nil {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout invalidates the session token. Unknown tokens are a no-op.
func (a *App) Logout(token string) error {
	if token == "" {
		return nil
	}
	return a.sessions.DeleteSession(token)
}
