package webdriver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskpilot/runtime"
)

// driverServer is a minimal in-memory WebDriver remote end. It records the
// commands it receives and can be told to report an element as missing.
type driverServer struct {
	*httptest.Server

	mu             sync.Mutex
	commands       []string
	bodies         []map[string]any
	elementMissing bool
}

func newDriverServer(t *testing.T) *driverServer {
	t.Helper()
	ds := &driverServer{}
	ds.Server = httptest.NewServer(http.HandlerFunc(ds.handle))
	t.Cleanup(ds.Server.Close)
	return ds
}

func (ds *driverServer) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
	}

	ds.mu.Lock()
	ds.commands = append(ds.commands, r.Method+" "+r.URL.Path)
	ds.bodies = append(ds.bodies, body)
	missing := ds.elementMissing
	ds.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/session":
		json.NewEncoder(w).Encode(map[string]any{
			"value": map[string]any{"sessionId": "sess-1"},
		})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/session/"):
		json.NewEncoder(w).Encode(map[string]any{"value": nil})
	case strings.HasSuffix(r.URL.Path, "/element"):
		if missing {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{
				"value": map[string]any{"error": "no such element", "message": "no such element: #ghost"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"value": map[string]any{elementKey: "elem-42"},
		})
	default:
		json.NewEncoder(w).Encode(map[string]any{"value": nil})
	}
}

func (ds *driverServer) commandLog() []string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	out := make([]string, len(ds.commands))
	copy(out, ds.commands)
	return out
}

func (ds *driverServer) body(i int) map[string]any {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.bodies[i]
}

func testClient(t *testing.T, ds *driverServer) *Client {
	t.Helper()
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), ds.URL)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPerform_NavigateCreatesSessionLazily(t *testing.T) {
	ds := newDriverServer(t)
	c := testClient(t, ds)

	req := runtime.ActionRequest{Action: runtime.ActionNavigate, Value: "https://google.com"}
	if err := c.Perform(context.Background(), req); err != nil {
		t.Fatalf("Perform(navigate) = %v, expected nil", err)
	}

	commands := ds.commandLog()
	want := []string{"POST /session", "POST /session/sess-1/url"}
	if len(commands) != len(want) || commands[0] != want[0] || commands[1] != want[1] {
		t.Fatalf("commands = %v, expected %v", commands, want)
	}
	if got := ds.body(1)["url"]; got != "https://google.com" {
		t.Errorf("navigate body url = %v, expected the target", got)
	}

	// the session is reused on the next action
	if err := c.Perform(context.Background(), req); err != nil {
		t.Fatalf("second Perform(navigate) = %v, expected nil", err)
	}
	commands = ds.commandLog()
	if len(commands) != 3 || commands[2] != "POST /session/sess-1/url" {
		t.Errorf("commands = %v, expected a single session", commands)
	}
}

func TestPerform_ClickFindsElementFirst(t *testing.T) {
	ds := newDriverServer(t)
	c := testClient(t, ds)

	req := runtime.ActionRequest{
		Action:   runtime.ActionClick,
		Selector: &runtime.ElementSelector{ElementID: "send_button", Kind: runtime.SelectorXPath, Value: `//div[@role="button"]`},
	}
	if err := c.Perform(context.Background(), req); err != nil {
		t.Fatalf("Perform(click) = %v, expected nil", err)
	}

	commands := ds.commandLog()
	want := []string{"POST /session", "POST /session/sess-1/element", "POST /session/sess-1/element/elem-42/click"}
	if len(commands) != len(want) {
		t.Fatalf("commands = %v, expected %v", commands, want)
	}
	for i := range want {
		if commands[i] != want[i] {
			t.Errorf("commands[%d] = %q, expected %q", i, commands[i], want[i])
		}
	}
	find := ds.body(1)
	if find["using"] != "xpath" || find["value"] != `//div[@role="button"]` {
		t.Errorf("find body = %v, expected xpath locator", find)
	}
}

func TestPerform_TypeClearsThenSendsKeys(t *testing.T) {
	ds := newDriverServer(t)
	c := testClient(t, ds)

	req := runtime.ActionRequest{
		Action:   runtime.ActionTypeText,
		Selector: &runtime.ElementSelector{ElementID: "search_box", Kind: runtime.SelectorName, Value: "q"},
		Value:    "python tutorials",
	}
	if err := c.Perform(context.Background(), req); err != nil {
		t.Fatalf("Perform(type) = %v, expected nil", err)
	}

	commands := ds.commandLog()
	want := []string{
		"POST /session",
		"POST /session/sess-1/element",
		"POST /session/sess-1/element/elem-42/clear",
		"POST /session/sess-1/element/elem-42/value",
	}
	if len(commands) != len(want) {
		t.Fatalf("commands = %v, expected %v", commands, want)
	}
	for i := range want {
		if commands[i] != want[i] {
			t.Errorf("commands[%d] = %q, expected %q", i, commands[i], want[i])
		}
	}
	if got := ds.body(3)["text"]; got != "python tutorials" {
		t.Errorf("value body text = %v, expected the typed text", got)
	}
}

func TestPerform_MissingElementFailsWithRemoteReason(t *testing.T) {
	ds := newDriverServer(t)
	ds.elementMissing = true
	c := testClient(t, ds)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := runtime.ActionRequest{
		Action:   runtime.ActionClick,
		Selector: &runtime.ElementSelector{ElementID: "ghost", Kind: runtime.SelectorID, Value: "ghost"},
	}
	err := c.Perform(ctx, req)
	if err == nil {
		t.Fatal("Perform(click) = nil, expected element-not-found error")
	}
	if !strings.Contains(err.Error(), "element not found: ghost") {
		t.Errorf("error = %q, expected element-not-found with the element id", err)
	}
	if !strings.Contains(err.Error(), "no such element") {
		t.Errorf("error = %q, expected the remote reason to be carried", err)
	}
}

func TestPerform_WaitHonoursCancellation(t *testing.T) {
	ds := newDriverServer(t)
	c := testClient(t, ds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Perform(ctx, runtime.ActionRequest{Action: runtime.ActionWait, Timeout: time.Minute})
	if err == nil {
		t.Fatal("Perform(wait) on cancelled context = nil, expected error")
	}
	// wait never talks to the remote end
	if got := len(ds.commandLog()); got != 0 {
		t.Errorf("commands = %d, expected 0", got)
	}
}

func TestPerform_UnsupportedAction(t *testing.T) {
	ds := newDriverServer(t)
	c := testClient(t, ds)

	err := c.Perform(context.Background(), runtime.ActionRequest{Action: runtime.ActionType("hover")})
	if err == nil {
		t.Error("Perform(hover) = nil, expected unsupported-action error")
	}
}

func TestClose_EndsSession(t *testing.T) {
	ds := newDriverServer(t)
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), ds.URL)

	if err := c.Perform(context.Background(), runtime.ActionRequest{Action: runtime.ActionNavigate, Value: "https://example.com"}); err != nil {
		t.Fatalf("Perform(navigate) = %v, expected nil", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() = %v, expected nil", err)
	}

	commands := ds.commandLog()
	last := commands[len(commands)-1]
	if last != "DELETE /session/sess-1" {
		t.Errorf("last command = %q, expected session delete", last)
	}

	// Close with no session is a no-op
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v, expected nil", err)
	}
	if got := len(ds.commandLog()); got != len(commands) {
		t.Errorf("commands after second Close = %d, expected %d", got, len(commands))
	}
}
