package driver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"docflow/internal/config"
	"docflow/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Driver.BaseURL = server.URL
	cfg.Driver.Username = "robot"
	cfg.Driver.Password = "secret"
	cfg.Driver.Environment = "TEST"

	client, err := NewClient(&cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func sessionHandler(t *testing.T, next http.HandlerFunc) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode session request: %v", err)
		}
		if req["username"] != "robot" || req["environment"] != "TEST" {
			t.Errorf("unexpected session request: %v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	})
	mux.HandleFunc("DELETE /api/sessions/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if next != nil {
		mux.HandleFunc("/", next)
	}
	return mux
}

func TestAcquireAndRelease(t *testing.T) {
	client := newTestClient(t, sessionHandler(t, nil))
	ctx := context.Background()

	if err := client.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if client.sessionToken != "tok-1" {
		t.Fatalf("expected stored token, got %q", client.sessionToken)
	}
	if err := client.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := client.Release(ctx); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}
}

func TestPerformUnitActionMapsRejection(t *testing.T) {
	client := newTestClient(t, sessionHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/actions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("missing session token, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "article unknown",
		})
	}))
	ctx := context.Background()

	if err := client.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	result, err := client.PerformUnitAction(ctx, UnitAction{Phase: "articles", Key: "ART-1"})
	if err != nil {
		t.Fatalf("unit action: %v", err)
	}
	if result.Success || result.Message != "article unknown" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPerformUnitActionRequiresSession(t *testing.T) {
	client := newTestClient(t, sessionHandler(t, nil))

	_, err := client.PerformUnitAction(context.Background(), UnitAction{Key: "ART-1"})
	if !errors.Is(err, services.ErrDriver) {
		t.Fatalf("expected ErrDriver, got %v", err)
	}
}

func TestPerformUnitActionWrapsHTTPFailures(t *testing.T) {
	client := newTestClient(t, sessionHandler(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal failure", http.StatusInternalServerError)
	}))
	ctx := context.Background()

	if err := client.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := client.PerformUnitAction(ctx, UnitAction{Key: "ART-1"}); !errors.Is(err, services.ErrDriver) {
		t.Fatalf("expected ErrDriver, got %v", err)
	}
}

func TestLedgerEntriesParsesDisplayAmounts(t *testing.T) {
	client := newTestClient(t, sessionHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts/401100/entries" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"position": 1, "document": "FAC-100", "debit": "1 234,56"},
			{"position": 2, "document": "AV-200", "credit": "1 234,56", "tag": "A"},
		})
	}))
	ctx := context.Background()

	if err := client.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	entries, err := client.LedgerEntries(ctx, "401100")
	if err != nil {
		t.Fatalf("ledger entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Debit != 1234.56 {
		t.Fatalf("expected parsed debit, got %v", entries[0].Debit)
	}
	if entries[1].Tag != "A" {
		t.Fatalf("expected tag carried through, got %q", entries[1].Tag)
	}
}

func TestMarkReconciledPostsPositions(t *testing.T) {
	var got []int
	client := newTestClient(t, sessionHandler(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts/401100/reconcile" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Positions []int `json:"positions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode reconcile request: %v", err)
		}
		got = req.Positions
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()

	if err := client.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := client.MarkReconciled(ctx, "401100", []int{1, 2}); err != nil {
		t.Fatalf("mark reconciled: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected positions: %v", got)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.Driver.BaseURL = ""
	if _, err := NewClient(&cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
