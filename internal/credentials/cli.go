package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// CLIHandler handles CLI commands for credential management
type CLIHandler struct {
	manager *Manager
	stdin   io.Reader
	stdout  io.Writer
}

// NewCLIHandler creates a new CLI handler for credential commands
func NewCLIHandler(manager *Manager, stdin io.Reader, stdout io.Writer) *CLIHandler {
	return &CLIHandler{
		manager: manager,
		stdin:   stdin,
		stdout:  stdout,
	}
}

// Set prompts for the password of username and stores it in the keyring
func (h *CLIHandler) Set(ctx context.Context, username string) error {
	password, err := PromptPassword(h.stdin, h.stdout, username)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := h.manager.Set(ctx, username, password); err != nil {
		if errors.Is(err, ErrKeyringNotAvailable) {
			return keyringNotAvailableError()
		}
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	_, _ = fmt.Fprintf(h.stdout, "Credentials stored in system keyring\n")
	return nil
}

func keyringNotAvailableError() error {
	return fmt.Errorf(`%w.

Alternative: set the password in the environment instead:
  export %s="your-password"

A .env file in the working directory is read as well.
Run 'grocat credentials get' to verify the password is detected`, ErrKeyringNotAvailable, EnvPassword)
}

// Get displays where the password for username comes from
func (h *CLIHandler) Get(ctx context.Context, username string, jsonOutput bool) error {
	info, err := h.manager.Get(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to get credentials: %w", err)
	}

	if jsonOutput {
		jsonBytes, err := info.JSON()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(h.stdout, string(jsonBytes))
		return nil
	}

	if !info.Found {
		_, _ = fmt.Fprintf(h.stdout, "No credentials found for %s\n", info.Username)
		_, _ = fmt.Fprintf(h.stdout, "Searched:\n")
		_, _ = fmt.Fprintf(h.stdout, "  - System keyring: Not found\n")
		_, _ = fmt.Fprintf(h.stdout, "  - Environment variables: Not found\n")
		_, _ = fmt.Fprintf(h.stdout, "\nSuggestion: Run 'grocat credentials set'\n")
		return nil
	}

	_, _ = fmt.Fprintf(h.stdout, "Source: %s\n", info.Source)
	_, _ = fmt.Fprintf(h.stdout, "Username: %s\n", info.Username)
	_, _ = fmt.Fprintf(h.stdout, "Password: ******** (hidden)\n")
	_, _ = fmt.Fprintf(h.stdout, "Status: Available\n")
	return nil
}

// Delete removes the password for username from the keyring
func (h *CLIHandler) Delete(ctx context.Context, username string) error {
	if err := h.manager.Delete(ctx, username); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	_, _ = fmt.Fprintf(h.stdout, "Credentials removed from system keyring\n")
	return nil
}
