package results

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"docflow/internal/config"
	"docflow/internal/queue"
	"docflow/internal/services"
)

func newSenderConfig(url, mode string) *config.Config {
	cfg := config.Default()
	cfg.Delivery.Enabled = true
	cfg.Delivery.URL = url
	cfg.Delivery.Mode = mode
	cfg.Delivery.IncludeReport = true
	cfg.Delivery.RetryCount = 3
	cfg.Delivery.RetryDelay = 0
	return &cfg
}

func writeReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report_receipt_1.csv")
	if err := os.WriteFile(path, []byte("phase,key,status,message\n"), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}
	return path
}

func TestFormatBuildsPayloadFromTask(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(5 * time.Minute)
	task := &queue.Task{
		ID:          "task-1",
		Kind:        queue.KindPurchaseOrder,
		Status:      queue.StatusCompleted,
		Requester:   "alice",
		ReportPath:  "/reports/report_purchase_order_1.csv",
		StartedAt:   &started,
		CompletedAt: &completed,
	}

	payload := Format(task, Summary{Total: 4, Succeeded: 4}, "BC-42", "all units processed")
	if payload.TaskID != "task-1" || payload.Kind != "purchase_order" || payload.Status != "completed" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.FinalRef != "BC-42" || payload.Summary.Succeeded != 4 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.ReportPath != task.ReportPath {
		t.Fatalf("expected report path in payload, got %q", payload.ReportPath)
	}
	if payload.StartedAt != "2026-03-01T10:00:00Z" {
		t.Fatalf("unexpected started_at: %s", payload.StartedAt)
	}
}

func TestSendDisabledSkipsWithoutAttempts(t *testing.T) {
	cfg := config.Default()
	cfg.Delivery.Enabled = false
	sender := NewSender(&cfg, nil)

	result, err := sender.Send(context.Background(), Payload{TaskID: "t"}, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !result.Skipped || result.Attempts != 0 {
		t.Fatalf("expected skip with zero attempts, got %+v", result)
	}
}

func TestSendJSONDeliversPayload(t *testing.T) {
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer server.Close()

	cfg := newSenderConfig(server.URL, "json")
	cfg.Delivery.AuthToken = "Bearer tok"
	sender := NewSender(cfg, nil)

	result, err := sender.Send(context.Background(), Payload{TaskID: "task-9", Status: "completed"}, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !result.Delivered || result.Attempts != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got.TaskID != "task-9" {
		t.Fatalf("unexpected payload received: %+v", got)
	}
}

func TestSendRetriesUntilBudgetSpent(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sender := NewSender(newSenderConfig(server.URL, "json"), nil)

	result, err := sender.Send(context.Background(), Payload{TaskID: "t"}, "")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if result.Attempts != 3 || attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got result=%+v server=%d", result, attempts.Load())
	}
}

func TestSendRecoversOnLaterAttempt(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "not yet", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(newSenderConfig(server.URL, "json"), nil)

	result, err := sender.Send(context.Background(), Payload{TaskID: "t"}, "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !result.Delivered || result.Attempts != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSendMultipartCarriesReportFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if r.FormValue("payload") == "" {
			t.Error("missing payload part")
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "report_receipt_1.csv" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
	}))
	defer server.Close()

	sender := NewSender(newSenderConfig(server.URL, "multipart"), nil)

	result, err := sender.Send(context.Background(), Payload{TaskID: "t"}, writeReport(t))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !result.Delivered {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSendBase64EmbedsReport(t *testing.T) {
	var got struct {
		Payload
		Attachment *Attachment `json:"attachment"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer server.Close()

	sender := NewSender(newSenderConfig(server.URL, "base64"), nil)

	if _, err := sender.Send(context.Background(), Payload{TaskID: "t"}, writeReport(t)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Attachment == nil {
		t.Fatal("expected embedded attachment")
	}
	decoded, err := base64.StdEncoding.DecodeString(got.Attachment.Content)
	if err != nil {
		t.Fatalf("decode attachment: %v", err)
	}
	if string(decoded) != "phase,key,status,message\n" {
		t.Fatalf("unexpected attachment content %q", decoded)
	}
}

func TestSendFallsBackToJSONWhenReportMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json fallback, got content type %q", ct)
		}
	}))
	defer server.Close()

	sender := NewSender(newSenderConfig(server.URL, "multipart"), nil)

	result, err := sender.Send(context.Background(), Payload{TaskID: "t"}, filepath.Join(t.TempDir(), "missing.csv"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !result.Delivered {
		t.Fatalf("unexpected result: %+v", result)
	}
}
