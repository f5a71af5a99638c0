package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"medscan-desktop/internal/api"
	"medscan-desktop/internal/crypto"
	"medscan-desktop/internal/models"
)

// Authenticator validates the stored session token against the backend.
// Implemented by api.Client.
type Authenticator interface {
	SetToken(token string)
	Me(ctx context.Context) (*api.User, error)
}

// Manager owns the session lifecycle: init on app start (Resolve),
// teardown on sign-out. It persists the token encrypted at rest, keeps
// the last-visited screen durable across launches, and notifies
// subscribers of auth transitions through explicit Subscription handles.
type Manager struct {
	db   *gorm.DB
	auth Authenticator

	subsMu sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

// NewManager creates a new session manager
func NewManager(db *gorm.DB, auth Authenticator) *Manager {
	return &Manager{
		db:   db,
		auth: auth,
		subs: make(map[int]func(Event)),
	}
}

// Resolve runs the startup session check: if a valid session exists,
// restore the last-visited screen (never an auth-only one); otherwise
// route to onboarding. A transient backend error keeps the session so
// the app still starts offline.
func (m *Manager) Resolve(ctx context.Context) (*Resolution, error) {
	state, err := m.loadState()
	if err != nil {
		return nil, fmt.Errorf("failed to load app state: %w", err)
	}

	if state == nil || state.SessionTokenEnc == "" {
		return &Resolution{Outcome: OutcomeUnauthenticated, Screen: "onboarding"}, nil
	}

	token, err := crypto.DecryptToken(state.SessionTokenEnc)
	if err != nil {
		log.Printf("WARNING: stored session token is unreadable, clearing: %v", err)
		if clearErr := m.clearState(); clearErr != nil {
			return nil, clearErr
		}
		return &Resolution{Outcome: OutcomeUnauthenticated, Screen: "onboarding"}, nil
	}

	if state.TokenExpiresAt != nil && state.TokenExpiresAt.Before(time.Now()) {
		log.Println("Stored session token expired, routing to onboarding")
		if clearErr := m.clearState(); clearErr != nil {
			return nil, clearErr
		}
		return &Resolution{Outcome: OutcomeUnauthenticated, Screen: "onboarding"}, nil
	}

	m.auth.SetToken(token)

	if _, err := m.auth.Me(ctx); err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) && statusErr.Fatal() {
			// The backend rejected the token outright
			log.Printf("Stored session rejected by backend (%d), clearing", statusErr.StatusCode)
			m.auth.SetToken("")
			if clearErr := m.clearState(); clearErr != nil {
				return nil, clearErr
			}
			return &Resolution{Outcome: OutcomeUnauthenticated, Screen: "onboarding"}, nil
		}
		// Network hiccup: keep the session and continue offline
		log.Printf("WARNING: could not validate session (continuing offline): %v", err)
	}

	if state.LastScreen == "" || authOnlyScreens[state.LastScreen] {
		return &Resolution{Outcome: OutcomeAuthenticatedFresh, Screen: DefaultScreen}, nil
	}

	return &Resolution{
		Outcome: OutcomeAuthenticatedRestored,
		Screen:  state.LastScreen,
		Tab:     state.LastTab,
	}, nil
}

// SignIn stores a freshly issued session token (encrypted at rest),
// installs it on the API client, and notifies subscribers
func (m *Manager) SignIn(token string, expiresAt *time.Time) error {
	if token == "" {
		return fmt.Errorf("empty session token")
	}

	enc, err := crypto.EncryptToken(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}

	state, err := m.loadState()
	if err != nil {
		return fmt.Errorf("failed to load app state: %w", err)
	}
	if state == nil {
		state = &models.AppState{ID: 1}
	}

	state.SessionTokenEnc = enc
	state.TokenExpiresAt = expiresAt

	if err := m.db.Save(state).Error; err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.auth.SetToken(token)
	m.notify(EventSignedIn)
	return nil
}

// SaveScreen persists the last-visited screen and tab so the next
// launch can restore them. Auth-only screens are never persisted.
func (m *Manager) SaveScreen(screen, tab string) error {
	if screen == "" || authOnlyScreens[screen] {
		return nil
	}

	state, err := m.loadState()
	if err != nil {
		return fmt.Errorf("failed to load app state: %w", err)
	}
	if state == nil {
		state = &models.AppState{ID: 1}
	}

	state.LastScreen = screen
	state.LastTab = tab

	if err := m.db.Save(state).Error; err != nil {
		return fmt.Errorf("failed to persist screen state: %w", err)
	}
	return nil
}

// SignOut clears all durable session state, drops the API token, and
// notifies subscribers so screens bound to the old session tear down
func (m *Manager) SignOut() error {
	if err := m.clearState(); err != nil {
		return err
	}

	m.auth.SetToken("")
	m.notify(EventSignedOut)
	return nil
}

// Subscribe registers a callback for auth events. The returned
// Subscription is the only handle for removing it; there is no global
// listener registry.
func (m *Manager) Subscribe(fn func(Event)) *Subscription {
	m.subsMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subsMu.Unlock()

	return &Subscription{
		cancel: func() {
			m.subsMu.Lock()
			delete(m.subs, id)
			m.subsMu.Unlock()
		},
	}
}

func (m *Manager) notify(event Event) {
	m.subsMu.Lock()
	callbacks := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		callbacks = append(callbacks, fn)
	}
	m.subsMu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}

// loadState returns the single app-state row, or nil when none exists
func (m *Manager) loadState() (*models.AppState, error) {
	var state models.AppState
	err := m.db.First(&state, "id = ?", 1).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// clearState removes the stored session token and navigation state
func (m *Manager) clearState() error {
	err := m.db.Model(&models.AppState{}).
		Where("id = ?", 1).
		Updates(map[string]interface{}{
			"session_token_enc": "",
			"token_expires_at":  nil,
			"last_screen":       "",
			"last_tab":          "",
		}).Error
	if err != nil {
		return fmt.Errorf("failed to clear app state: %w", err)
	}
	return nil
}
