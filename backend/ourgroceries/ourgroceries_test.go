package ourgroceries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// =============================================================================
// OurGroceries Mock Server for Tests
// =============================================================================

// mockServer simulates the OurGroceries sign-in page and command endpoint
type mockServer struct {
	server   *httptest.Server
	password string
	teamID   string
	masterID string

	mu       sync.Mutex
	lists    map[string][]map[string]interface{}
	names    map[string]string
	commands []map[string]interface{}
	nextID   int
}

func newMockServer(password string) *mockServer {
	m := &mockServer{
		password: password,
		teamID:   "team-1",
		masterID: "master-1",
		lists:    make(map[string][]map[string]interface{}),
		names:    make(map[string]string),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handler))
	return m
}

func (m *mockServer) Close() {
	m.server.Close()
}

func (m *mockServer) URL() string {
	return m.server.URL
}

func (m *mockServer) AddList(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[id] = name
	m.lists[id] = []map[string]interface{}{}
}

func (m *mockServer) AddItem(listID string, item map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[listID] = append(m.lists[listID], item)
}

func (m *mockServer) Commands() []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]interface{}{}, m.commands...)
}

func (m *mockServer) handler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == signInPath && r.Method == http.MethodPost:
		_ = r.ParseForm()
		if r.FormValue("password") == m.password && r.FormValue("action") == "sign-me-in" {
			http.SetCookie(w, &http.Cookie{Name: authCookie, Value: "session", Path: "/"})
		}
		w.WriteHeader(http.StatusOK)
	case r.URL.Path == yourListsPath && r.Method == http.MethodGet:
		if _, err := r.Cookie(authCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = fmt.Fprintf(w, "<script>var g_teamId = %q;\nvar g_masterListUrl = \"/your-lists/list/%s\";</script>", m.teamID, m.masterID)
	case r.URL.Path == yourListsPath && r.Method == http.MethodPost:
		if _, err := r.Cookie(authCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var cmd map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.handleCommand(w, cmd)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *mockServer) handleCommand(w http.ResponseWriter, cmd map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)

	if cmd["teamId"] != m.teamID {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch cmd["command"] {
	case "getOverview":
		var lists []map[string]string
		for id, name := range m.names {
			lists = append(lists, map[string]string{"id": id, "name": name})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"shoppingLists": lists})
	case "getList":
		id, _ := cmd["listId"].(string)
		items, ok := m.lists[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"list": map[string]interface{}{"id": id, "items": items},
		})
	case "insertItem":
		id, _ := cmd["listId"].(string)
		m.nextID++
		item := map[string]interface{}{"id": fmt.Sprintf("item-%d", m.nextID), "value": cmd["value"]}
		if cat, ok := cmd["categoryId"]; ok {
			item["categoryId"] = cat
		}
		m.lists[id] = append(m.lists[id], item)
		_, _ = w.Write([]byte("{}"))
	case "createList":
		m.nextID++
		id := fmt.Sprintf("list-%d", m.nextID)
		m.names[id], _ = cmd["name"].(string)
		m.lists[id] = []map[string]interface{}{}
		_, _ = w.Write([]byte("{}"))
	case "setItemCrossedOff":
		id, _ := cmd["listId"].(string)
		for _, item := range m.lists[id] {
			if item["id"] == cmd["itemId"] {
				item["crossedOff"] = cmd["crossedOff"]
			}
		}
		_, _ = w.Write([]byte("{}"))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newLoggedInBackend(t *testing.T, m *mockServer) *Backend {
	t.Helper()
	b, err := New(Config{Username: "groceries", Password: "secret", BaseURL: m.URL()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// =============================================================================
// Tests
// =============================================================================

func TestNewRequiresUsername(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty username")
	}
}

func TestLoginDiscoversTeamAndMasterList(t *testing.T) {
	m := newMockServer("secret")
	defer m.Close()

	b := newLoggedInBackend(t, m)
	if b.TeamID() != "team-1" {
		t.Errorf("TeamID() = %q, want team-1", b.TeamID())
	}
	if b.masterListID != "master-1" {
		t.Errorf("masterListID = %q, want master-1", b.masterListID)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	m := newMockServer("secret")
	defer m.Close()

	b, err := New(Config{Username: "groceries", Password: "nope", BaseURL: m.URL()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = b.Login(context.Background())
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("Login() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestCommandBeforeLogin(t *testing.T) {
	m := newMockServer("secret")
	defer m.Close()

	b, _ := New(Config{Username: "groceries", BaseURL: m.URL()})
	if _, err := b.ListSummaries(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("ListSummaries() error = %v, want ErrNotLoggedIn", err)
	}
	if len(m.Commands()) != 0 {
		t.Error("no command should reach the server before login")
	}
}

func TestListSummaries(t *testing.T) {
	m := newMockServer("secret")
	defer m.Close()
	m.AddList("l1", "Shopping List")

	b := newLoggedInBackend(t, m)
	lists, err := b.ListSummaries(context.Background())
	if err != nil {
		t.Fatalf("ListSummaries() error = %v", err)
	}
	if len(lists) != 1 || lists[0].ID != "l1" || lists[0].Name != "Shopping List" {
		t.Errorf("ListSummaries() = %+v", lists)
	}
}

func TestListItemsDecodesCategoryPresence(t *testing.T) {
	m := newMockServer("secret")
	defer m.Close()
	m.AddList("l1", "Shopping List")
	m.AddItem("l1", map[string]interface{}{"id": "a", "value": "milk", "categoryId": "dairy"})
	m.AddItem("l1", map[string]interface{}{"id": "b", "value": "bread"})
	m.AddItem("l1", map[string]interface{}{"id": "c", "value": "eggs", "categoryId": nil, "crossedOff": true})

	b := newLoggedInBackend(t, m)
	snap, err := b.ListItems(context.Background(), "l1")
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if len(snap.List.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(snap.List.Items))
	}
	if !snap.List.Items[0].HasCategory("dairy") {
		t.Error("milk should be in dairy")
	}
	if snap.List.Items[1].CategoryID != nil {
		t.Error("bread should have no categoryId field")
	}
	if !snap.List.Items[2].HasCategory("") || !snap.List.Items[2].CrossedOff {
		t.Errorf("eggs = %+v, want explicit null category and crossed off", snap.List.Items[2])
	}
}

func TestCategoryItemsUsesMasterList(t *testing.T) {
	m := newMockServer("secret")
	defer m.Close()
	m.AddList("master-1", "")
	m.AddItem("master-1", map[string]interface{}{"id": "cat-1", "value": "Dairy"})

	b := newLoggedInBackend(t, m)
	snap, err := b.CategoryItems(context.Background())
	if err != nil {
		t.Fatalf("CategoryItems() error = %v", err)
	}
	if len(snap.List.Items) != 1 || snap.List.Items[0].ID != "cat-1" {
		t.Errorf("CategoryItems() = %+v", snap.List.Items)
	}
}

func TestWriteCommands(t *testing.T) {
	m := newMockServer("secret")
	defer m.Close()
	m.AddList("l1", "Shopping List")
	m.AddList("master-1", "")
	m.AddItem("l1", map[string]interface{}{"id": "x", "value": "milk", "crossedOff": true})

	b := newLoggedInBackend(t, m)
	ctx := context.Background()

	if err := b.AddItem(ctx, "l1", "cheese", "dairy"); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if err := b.AddItem(ctx, "l1", "bread", ""); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if err := b.CreateCategory(ctx, "Frozen"); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	if err := b.CreateList(ctx, "Hardware"); err != nil {
		t.Fatalf("CreateList() error = %v", err)
	}
	if err := b.ToggleCrossedOff(ctx, "l1", "x", false); err != nil {
		t.Fatalf("ToggleCrossedOff() error = %v", err)
	}

	cmds := m.Commands()
	want := []string{"insertItem", "insertItem", "insertItem", "createList", "setItemCrossedOff"}
	if len(cmds) != len(want) {
		t.Fatalf("got %d commands, want %d", len(cmds), len(want))
	}
	for i, name := range want {
		if cmds[i]["command"] != name {
			t.Errorf("command %d = %v, want %s", i, cmds[i]["command"], name)
		}
	}
	if cmds[1]["categoryId"] != nil {
		t.Errorf("uncategorized insert should send null categoryId, got %v", cmds[1]["categoryId"])
	}
	if cmds[2]["listId"] != "master-1" {
		t.Errorf("category should be inserted into master list, got %v", cmds[2]["listId"])
	}
	if cmds[4]["crossedOff"] != false {
		t.Errorf("toggle should send crossedOff=false, got %v", cmds[4]["crossedOff"])
	}

	snap, err := b.ListItems(ctx, "l1")
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	if snap.List.Items[0].CrossedOff {
		t.Error("milk should no longer be crossed off")
	}
}

func TestServerErrorPropagates(t *testing.T) {
	m := newMockServer("secret")
	defer m.Close()

	b := newLoggedInBackend(t, m)
	if _, err := b.ListItems(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown list")
	}
}
