// Package testutil provides shared test utilities: an in-memory list service,
// a scripted voice, and a CLI harness that runs grocat in isolation.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"grocat/cmd/grocat/cmd"
	"grocat/internal/credentials"
)

// defaultTestConfig keeps tests off the network and away from the user's cache.
const defaultTestConfig = `# test config
username: groceries@example.com
default_list: Shopping List
cache:
  ttl: 10m
  store: file
logging:
  background_enabled: false
`

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	service    *FakeService
	keyring    *credentials.MockKeyring
}

// NewCLITest creates a CLI test helper backed by a FakeService with a
// "Shopping List" and a mock keyring. The cache lives in the test's temp dir.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(defaultTestConfig), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	svc := NewFakeService()
	svc.AddList("shop", "Shopping List")
	keyring := credentials.NewMockKeyring()

	return &CLITest{
		t: t,
		cfg: &cmd.Config{
			ConfigPath: configPath,
			CacheDir:   filepath.Join(tmpDir, "cache"),
			Service:    svc,
			Keyring:    keyring,
			Stdin:      strings.NewReader(""),
		},
		tmpDir:     tmpDir,
		configPath: configPath,
		service:    svc,
		keyring:    keyring,
	}
}

// Config returns the command config used by Execute.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// Service returns the fake list service.
func (c *CLITest) Service() *FakeService {
	return c.service
}

// Keyring returns the mock keyring.
func (c *CLITest) Keyring() *credentials.MockKeyring {
	return c.keyring
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// CacheDir returns the directory snapshots are written to.
func (c *CLITest) CacheDir() string {
	return c.cfg.CacheDir
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// SetStdin replaces what follow-up questions and password prompts read.
func (c *CLITest) SetStdin(input string) {
	c.cfg.Stdin = strings.NewReader(input)
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()

	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}
