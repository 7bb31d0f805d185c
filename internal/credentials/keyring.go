package credentials

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"

	"grocat/internal/utils"
)

// ErrKeyringNotAvailable is returned when no OS keyring can be reached,
// e.g. a headless machine without a Secret Service.
var ErrKeyringNotAvailable = errors.New("system keyring not available")

// ErrNotFound is returned when the keyring has no entry for an account.
var ErrNotFound = keyring.ErrNotFound

// MockKeyring is a test implementation of the Keyring interface
type MockKeyring struct {
	mu    sync.RWMutex
	store map[string]map[string]string // service -> account -> password
}

// NewMockKeyring creates a new mock keyring for testing
func NewMockKeyring() *MockKeyring {
	return &MockKeyring{
		store: make(map[string]map[string]string),
	}
}

// Set stores a password in the mock keyring
func (m *MockKeyring) Set(service, account, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store[service] == nil {
		m.store[service] = make(map[string]string)
	}
	m.store[service][account] = password
	return nil
}

// Get retrieves a password from the mock keyring
func (m *MockKeyring) Get(service, account string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if accounts, ok := m.store[service]; ok {
		if password, ok := accounts[account]; ok {
			return password, nil
		}
	}
	return "", fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// Delete removes a password from the mock keyring
func (m *MockKeyring) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if accounts, ok := m.store[service]; ok {
		if _, ok := accounts[account]; ok {
			delete(accounts, account)
			return nil
		}
	}
	return fmt.Errorf("%s/%s: %w", service, account, ErrNotFound)
}

// systemKeyring stores secrets in the OS keyring through go-keyring.
type systemKeyring struct{}

func (s *systemKeyring) Set(service, account, password string) error {
	if err := keyring.Set(service, account, password); err != nil {
		utils.Debugf("keyring set failed: %v", err)
		return ErrKeyringNotAvailable
	}
	return nil
}

func (s *systemKeyring) Get(service, account string) (string, error) {
	password, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", err
		}
		utils.Debugf("keyring get failed: %v", err)
		return "", ErrKeyringNotAvailable
	}
	return password, nil
}

func (s *systemKeyring) Delete(service, account string) error {
	if err := keyring.Delete(service, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		utils.Debugf("keyring delete failed: %v", err)
		return ErrKeyringNotAvailable
	}
	return nil
}
