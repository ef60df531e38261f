package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"docflow/internal/config"
	"docflow/internal/queue"
)

func newServiceConfig(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.Tasks = true
	cfg.Notifications.Errors = true
	return &cfg
}

func TestNewServiceReturnsNoopWithoutTopic(t *testing.T) {
	svc := NewService(newServiceConfig(""))
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.NotifyTaskStarted(context.Background(), &queue.Task{ID: "t"}); err != nil {
		t.Fatalf("noop notify: %v", err)
	}
}

func TestNotifyTaskFailedSetsHeaders(t *testing.T) {
	var (
		gotTitle    string
		gotPriority string
		gotBody     string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	svc := NewService(newServiceConfig(server.URL))
	task := &queue.Task{ID: "task-1", Kind: queue.KindReceipt}
	if err := svc.NotifyTaskFailed(context.Background(), task, "driver timeout"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if gotTitle != "Docflow - Task Failed" || gotPriority != "high" {
		t.Fatalf("unexpected headers: title=%q priority=%q", gotTitle, gotPriority)
	}
	if gotBody != "Task task-1 (receipt) failed: driver timeout" {
		t.Fatalf("unexpected body: %q", gotBody)
	}
}

func TestNotifyTaskCompletedIncludesReference(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	svc := NewService(newServiceConfig(server.URL))
	task := &queue.Task{ID: "task-2", Kind: queue.KindPurchaseOrder}
	if err := svc.NotifyTaskCompleted(context.Background(), task, "BC-42", 90*time.Second); err != nil {
		t.Fatalf("notify: %v", err)
	}
	want := "Completed purchase_order task task-2 in 1m30s (document BC-42)"
	if gotBody != want {
		t.Fatalf("got %q, want %q", gotBody, want)
	}
}

func TestDisabledCategoriesSkipSends(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	cfg := newServiceConfig(server.URL)
	cfg.Notifications.Tasks = false
	cfg.Notifications.Errors = false
	svc := NewService(cfg)

	ctx := context.Background()
	task := &queue.Task{ID: "t"}
	_ = svc.NotifyTaskStarted(ctx, task)
	_ = svc.NotifyTaskFailed(ctx, task, "boom")
	_ = svc.NotifyOrphanedTasks(ctx, 2)
	if calls.Load() != 0 {
		t.Fatalf("expected no sends, got %d", calls.Load())
	}

	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("test notification must always send, got %d calls", calls.Load())
	}
}

func TestSendReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unknown", http.StatusNotFound)
	}))
	defer server.Close()

	svc := NewService(newServiceConfig(server.URL))
	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
