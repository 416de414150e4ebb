package session

import (
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/respireai/respire-web/internal/patient"
)

// MemoryStore is an in-memory Store implementation for tests. It models a
// single browser session, ignoring the request entirely.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(echo.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.state
	return &state, nil
}

func (m *MemoryStore) SignIn(_ echo.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LoggedIn = true
	m.state.Email = email
	return nil
}

func (m *MemoryStore) Register(_ echo.Context, email string, profile *patient.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{LoggedIn: true, Email: email, Patient: profile}
	return nil
}

func (m *MemoryStore) Clear(echo.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = State{}
	return nil
}
