// Package credentials looks up the list service password in the OS keyring,
// falling back to environment variables.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"grocat/internal/utils"
)

// ServiceName is the keyring service grocat stores its password under.
const ServiceName = "grocat-ourgroceries"

// Environment variables consulted after the keyring.
const (
	EnvUsername = "GROCAT_USERNAME"
	EnvPassword = "GROCAT_PASSWORD"
)

// Source indicates where credentials were retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// CredentialInfo contains credential information returned by Get()
type CredentialInfo struct {
	Source   Source
	Username string
	Password string
	Found    bool
}

// JSON serializes the credential info to JSON (password excluded)
func (c *CredentialInfo) JSON() ([]byte, error) {
	output := struct {
		Service  string `json:"service"`
		Username string `json:"username"`
		Source   string `json:"source"`
		Found    bool   `json:"found"`
	}{
		Service:  ServiceName,
		Username: c.Username,
		Source:   string(c.Source),
		Found:    c.Found,
	}
	return json.Marshal(output)
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, password string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// NewManager creates a new credential manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set stores the password for username in the keyring
func (m *Manager) Set(_ context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" {
		return errors.New("username is required")
	}
	if password == "" {
		return errors.New("password is empty")
	}
	return m.keyring.Set(ServiceName, username, password)
}

// Get retrieves credentials from available sources (keyring first, then env vars)
func (m *Manager) Get(_ context.Context, username string) (*CredentialInfo, error) {
	password, err := m.keyring.Get(ServiceName, username)
	if err == nil && password != "" {
		return &CredentialInfo{
			Source:   SourceKeyring,
			Username: username,
			Password: password,
			Found:    true,
		}, nil
	}

	if envPassword := m.envPassword(username); envPassword != "" {
		return &CredentialInfo{
			Source:   SourceEnvironment,
			Username: username,
			Password: envPassword,
			Found:    true,
		}, nil
	}

	return &CredentialInfo{
		Source:   SourceNone,
		Username: username,
		Found:    false,
	}, nil
}

// envPassword returns GROCAT_PASSWORD unless GROCAT_USERNAME names another user.
func (m *Manager) envPassword(username string) string {
	envUsername := m.getenv(EnvUsername)
	if envUsername != "" && envUsername != username {
		return ""
	}
	return m.getenv(EnvPassword)
}

// Delete removes the password from the keyring. Deleting a missing entry is not an error.
func (m *Manager) Delete(_ context.Context, username string) error {
	err := m.keyring.Delete(ServiceName, username)
	if err != nil && (errors.Is(err, ErrNotFound) || strings.Contains(err.Error(), "not found")) {
		return nil
	}
	return err
}

// PromptPassword asks for the password of username. On a terminal the input
// is hidden; otherwise one line is read from reader.
func PromptPassword(reader io.Reader, writer io.Writer, username string) (string, error) {
	prompt := fmt.Sprintf("Enter password for %s:", username)

	if f, ok := reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprintf(writer, "%s ", prompt)
		raw, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(writer)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	password, err := utils.PromptLineWithReader(prompt, reader, writer)
	if errors.Is(err, utils.ErrNoInput) {
		return "", fmt.Errorf("no input received")
	}
	return password, err
}
