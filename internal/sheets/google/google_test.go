package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"reina/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	cfg := Config{
		SpreadsheetID:   "sheet",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	}
	_, err := New(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got: %v", err)
	}
}

func TestLoadCredentials_InlineWins(t *testing.T) {
	got, err := loadCredentials(Config{CredentialsJSON: ` {"type":"service_account"} `, CredentialsFile: "/nope"})
	if err != nil {
		t.Fatalf("loadCredentials() error = %v", err)
	}
	if string(got) != `{"type":"service_account"}` {
		t.Errorf("loadCredentials() = %s", got)
	}
}

type sheetsServer struct {
	mu       sync.Mutex
	requests []string
	written  [][]any
}

func (s *sheetsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","clearedRange":"Expenses!A1:D100"}`))
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.written = vr.Values
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"updatedRange":  "Expenses!A1:D3",
			"updatedRows":   len(vr.Values),
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithHTTPClient(srv.Client()),
		goption.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "sheet-1", "", nil)
}

func TestClient_Export(t *testing.T) {
	server := &sheetsServer{}
	c := newTestClient(t, server)

	expenses := []core.Expense{
		{ID: 1, Amount: core.Money{Cents: 1250}, Category: core.Food, Date: core.NewDate(2025, 3, 1)},
		{ID: 2, Amount: core.Money{Cents: 300}, Category: core.Transport, Date: core.NewDate(2025, 3, 2)},
	}

	res, err := c.Export(context.Background(), expenses)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Rows != 2 {
		t.Errorf("Rows = %d, want 2", res.Rows)
	}
	if res.Range != "Expenses!A1:D3" {
		t.Errorf("Range = %q", res.Range)
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.requests) != 2 {
		t.Fatalf("requests = %v, want clear then update", server.requests)
	}
	if !strings.HasPrefix(server.requests[0], "POST ") || !strings.HasPrefix(server.requests[1], "PUT ") {
		t.Errorf("requests out of order: %v", server.requests)
	}
	if !strings.Contains(server.requests[1], "/v4/spreadsheets/sheet-1/values/") {
		t.Errorf("unexpected update path: %s", server.requests[1])
	}
	if len(server.written) != 3 {
		t.Fatalf("written rows = %d, want 3", len(server.written))
	}
	if server.written[0][0] != "Date" {
		t.Errorf("header = %v", server.written[0])
	}
	if server.written[1][0] != "2025-03-01" || server.written[1][2] != 12.5 {
		t.Errorf("first row = %v", server.written[1])
	}
}

func TestClient_ExportServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	}))

	_, err := c.Export(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "clear") {
		t.Errorf("expected clear error, got: %v", err)
	}
}

func TestClient_ExportWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.Export(context.Background(), nil); err == nil {
		t.Fatal("expected error with nil service")
	}
}
