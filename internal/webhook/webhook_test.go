package webhook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"grocat/internal/cache"
	"grocat/internal/skill"
	"grocat/internal/testutil"
	"grocat/internal/webhook"
)

func newServer(t *testing.T) (*webhook.Server, *testutil.FakeService) {
	t.Helper()
	svc := testutil.NewFakeService()
	svc.AddList("shop", "Shopping List")
	svc.AddList("hw", "Hardware Store")
	svc.SeedCategory("cat-dairy", "Dairy")

	session, err := skill.Open(context.Background(), svc, "groceries")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s := skill.New(session, cache.New(cache.NewMemoryStore(), svc), "Shopping List")
	return webhook.New(s, nil), svc
}

func post(t *testing.T, srv *webhook.Server, path, body string) (int, webhook.IntentResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out webhook.IntentResponse
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("bad response body %q: %v", data, err)
	}
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestIntentsListed(t *testing.T) {
	srv, _ := newServer(t)

	resp, _ := srv.App().Test(httptest.NewRequest(http.MethodGet, "/intents", nil), -1)
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(skill.IntentAddItem)) {
		t.Errorf("body = %s", body)
	}
}

func TestAddItemRoundTrip(t *testing.T) {
	srv, svc := newServer(t)

	status, out := post(t, srv, "/intents/AddItem", `{"Food":"milk","Category":"dairy"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body = %+v", status, out)
	}
	if out.Intent != "AddItem" || out.Error != "" {
		t.Errorf("response = %+v", out)
	}
	if len(out.Speech) != 2 || out.Speech[1] != "Added milk to Shopping List." {
		t.Errorf("speech = %v", out.Speech)
	}
	if adds := svc.CallsTo("AddItem"); len(adds) != 1 || adds[0].Category != "cat-dairy" {
		t.Errorf("AddItem calls = %+v", adds)
	}
}

func TestMissingSlotIsUnprocessable(t *testing.T) {
	srv, _ := newServer(t)

	status, out := post(t, srv, "/intents/AddItem", `{}`)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", status)
	}
	if !strings.Contains(out.Error, "missing slot") || out.Suggestion == "" {
		t.Errorf("response = %+v", out)
	}
	if len(out.Speech) == 0 {
		t.Error("the apology should be in the speech")
	}
}

func TestListNotFound(t *testing.T) {
	srv, _ := newServer(t)

	status, out := post(t, srv, "/intents/AddItem", `{"Food":"milk","ListName":"garden"}`)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
	if !strings.Contains(out.Error, "list not found") {
		t.Errorf("error = %q", out.Error)
	}
}

func TestUnknownIntent(t *testing.T) {
	srv, _ := newServer(t)

	status, _ := post(t, srv, "/intents/OrderPizza", ``)
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestSimilarListIsNotCreatedOverHTTP(t *testing.T) {
	srv, svc := newServer(t)

	status, out := post(t, srv, "/intents/CreateList", `{"ListName":"hardware"}`)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", status)
	}
	if len(out.Prompts) != 1 || !strings.Contains(out.Prompts[0], "Hardware Store") {
		t.Errorf("prompts = %v", out.Prompts)
	}
	if len(svc.CallsTo("CreateList")) != 0 {
		t.Error("no list may be created without confirmation")
	}
}

func TestRemoteFailureIsBadGateway(t *testing.T) {
	srv, svc := newServer(t)
	svc.FailOn("CreateList", io.ErrUnexpectedEOF)

	status, out := post(t, srv, "/intents/CreateList", `{"ListName":"Pharmacy"}`)
	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	if !strings.Contains(out.Error, "remote call failed") {
		t.Errorf("error = %q", out.Error)
	}
}

func TestBadBody(t *testing.T) {
	srv, _ := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/intents/AddItem", strings.NewReader(`["milk"]`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
