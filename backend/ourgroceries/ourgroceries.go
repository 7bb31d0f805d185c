// Package ourgroceries provides a backend implementation for the OurGroceries web API.
package ourgroceries

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"grocat/backend"
)

const (
	// DefaultBaseURL is the OurGroceries web API base URL
	DefaultBaseURL = "https://www.ourgroceries.com"

	signInPath    = "/sign-in"
	yourListsPath = "/your-lists/"
	authCookie    = "ourgroceries-auth"
)

var (
	teamIDPattern     = regexp.MustCompile(`g_teamId = "(.*?)";`)
	masterListPattern = regexp.MustCompile(`g_masterListUrl = "/your-lists/list/(\S*?)"`)
)

// ErrNotLoggedIn is returned when a command is issued before Login succeeded.
var ErrNotLoggedIn = errors.New("ourgroceries: not logged in")

// ErrAuthenticationFailed is returned when the service rejects the credentials.
var ErrAuthenticationFailed = errors.New("ourgroceries: authentication failed")

// Config holds OurGroceries connection settings
type Config struct {
	Username string
	Password string
	BaseURL  string // Override for testing
	Timeout  time.Duration
}

// Backend implements backend.ListService over the OurGroceries web API
type Backend struct {
	config       Config
	client       *http.Client
	baseURL      string
	teamID       string
	masterListID string
}

// New creates a new OurGroceries backend. Login must be called before any command.
func New(cfg Config) (*Backend, error) {
	if cfg.Username == "" {
		return nil, fmt.Errorf("ourgroceries username is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	client, err := createHTTPClient(cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Backend{
		config:  cfg,
		client:  client,
		baseURL: baseURL,
	}, nil
}

// createHTTPClient creates an HTTP client holding the session cookie
func createHTTPClient(timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
	}, nil
}

// Close closes the backend
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	if transport, ok := b.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// TeamID returns the team identifier discovered at login.
func (b *Backend) TeamID() string {
	return b.teamID
}

// =============================================================================
// Session
// =============================================================================

// Login signs in and discovers the team and master list identifiers.
func (b *Backend) Login(ctx context.Context) error {
	form := url.Values{
		"emailAddress": {b.config.Username},
		"password":     {b.config.Password},
		"action":       {"sign-me-in"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+signInPath, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sign in failed: status %d", resp.StatusCode)
	}
	if !b.hasAuthCookie() {
		return ErrAuthenticationFailed
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+yourListsPath, nil)
	if err != nil {
		return err
	}
	resp, err = b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to load lists page: status %d", resp.StatusCode)
	}
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	m := teamIDPattern.FindSubmatch(page)
	if m == nil {
		return fmt.Errorf("team id not found in lists page")
	}
	b.teamID = string(m[1])

	if m := masterListPattern.FindSubmatch(page); m != nil {
		b.masterListID = string(m[1])
	}
	return nil
}

func (b *Backend) hasAuthCookie() bool {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return false
	}
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == authCookie && c.Value != "" {
			return true
		}
	}
	return false
}

// command posts a JSON command to the lists endpoint and decodes the reply into out.
func (b *Backend) command(ctx context.Context, payload map[string]interface{}, out interface{}) error {
	if b.teamID == "" {
		return ErrNotLoggedIn
	}
	payload["teamId"] = b.teamID

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+yourListsPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthenticationFailed
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed: status %d", payload["command"], resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", payload["command"], err)
	}
	return nil
}

// =============================================================================
// List Operations
// =============================================================================

// ListSummaries returns all shopping lists of the team
func (b *Backend) ListSummaries(ctx context.Context) ([]backend.ListSummary, error) {
	var overview struct {
		ShoppingLists []backend.ListSummary `json:"shoppingLists"`
	}
	if err := b.command(ctx, map[string]interface{}{"command": "getOverview"}, &overview); err != nil {
		return nil, err
	}
	if overview.ShoppingLists == nil {
		overview.ShoppingLists = []backend.ListSummary{}
	}
	return overview.ShoppingLists, nil
}

// ListItems returns the items of a list as a snapshot
func (b *Backend) ListItems(ctx context.Context, listID string) (*backend.Snapshot, error) {
	return b.getList(ctx, listID)
}

// CategoryItems returns the category definitions, which live in the master list
func (b *Backend) CategoryItems(ctx context.Context) (*backend.Snapshot, error) {
	if b.masterListID == "" && b.teamID != "" {
		return nil, fmt.Errorf("master list id not discovered at login")
	}
	return b.getList(ctx, b.masterListID)
}

func (b *Backend) getList(ctx context.Context, listID string) (*backend.Snapshot, error) {
	var snap backend.Snapshot
	if err := b.command(ctx, map[string]interface{}{"command": "getList", "listId": listID}, &snap); err != nil {
		return nil, err
	}
	if snap.List.Items == nil {
		snap.List.Items = []backend.Item{}
	}
	return &snap, nil
}

// CreateList creates a new shopping list
func (b *Backend) CreateList(ctx context.Context, name string) error {
	return b.command(ctx, map[string]interface{}{
		"command":  "createList",
		"name":     name,
		"listType": "SHOPPING",
	}, nil)
}

// =============================================================================
// Item Operations
// =============================================================================

// AddItem inserts an item into a list; an empty categoryID leaves it uncategorized
func (b *Backend) AddItem(ctx context.Context, listID, name, categoryID string) error {
	payload := map[string]interface{}{
		"command": "insertItem",
		"listId":  listID,
		"value":   name,
	}
	if categoryID != "" {
		payload["categoryId"] = categoryID
	} else {
		payload["categoryId"] = nil
	}
	return b.command(ctx, payload, nil)
}

// CreateCategory adds a category, which is an item of the master list
func (b *Backend) CreateCategory(ctx context.Context, name string) error {
	if b.masterListID == "" && b.teamID != "" {
		return fmt.Errorf("master list id not discovered at login")
	}
	return b.command(ctx, map[string]interface{}{
		"command": "insertItem",
		"listId":  b.masterListID,
		"value":   name,
	}, nil)
}

// ToggleCrossedOff sets the crossed-off state of an item
func (b *Backend) ToggleCrossedOff(ctx context.Context, listID, itemID string, crossOff bool) error {
	return b.command(ctx, map[string]interface{}{
		"command":    "setItemCrossedOff",
		"listId":     listID,
		"itemId":     itemID,
		"crossedOff": crossOff,
	}, nil)
}
