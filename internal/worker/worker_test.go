package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"docflow/internal/config"
	"docflow/internal/driver"
	"docflow/internal/pipeline"
	"docflow/internal/queue"
	"docflow/internal/reconcile"
	"docflow/internal/results"
)

type scriptedDriver struct {
	rejectKeys map[string]string
}

func (scriptedDriver) Acquire(context.Context) error { return nil }
func (scriptedDriver) Release(context.Context) error { return nil }

func (d scriptedDriver) PerformUnitAction(_ context.Context, action driver.UnitAction) (driver.UnitResult, error) {
	if msg, ok := d.rejectKeys[action.Key]; ok {
		return driver.UnitResult{Success: false, Message: msg}, nil
	}
	if action.Phase == "finalize" {
		return driver.UnitResult{Success: true, Reference: "BC-100"}, nil
	}
	return driver.UnitResult{Success: true}, nil
}

func (scriptedDriver) LedgerEntries(context.Context, string) ([]reconcile.Entry, error) {
	return nil, nil
}

func (scriptedDriver) MarkReconciled(context.Context, string, []int) error { return nil }

type recordingNotifier struct {
	mu        sync.Mutex
	started   []string
	completed []string
	failed    []string
	orphaned  int
	errors    []string
}

func (r *recordingNotifier) NotifyTaskStarted(_ context.Context, task *queue.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, task.ID)
	return nil
}

func (r *recordingNotifier) NotifyTaskCompleted(_ context.Context, task *queue.Task, _ string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, task.ID)
	return nil
}

func (r *recordingNotifier) NotifyTaskFailed(_ context.Context, task *queue.Task, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, task.ID)
	return nil
}

func (r *recordingNotifier) NotifyOrphanedTasks(_ context.Context, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orphaned = count
	return nil
}

func (r *recordingNotifier) NotifyError(_ context.Context, err error, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, scope)
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

const purchaseCSV = "Numero_DA,Acheteur,Code_Fournisseur,Email_Fournisseur,TEL_Fournisseu,Code_Article,Montant,Marque,Affaire\n" +
	"DA-1,Jean,F01,f01@example.com,0102030405,ART-1,100,AcmeCo,AFF-9\n"

type harness struct {
	store    *queue.Store
	worker   *Worker
	notifier *recordingNotifier
}

func newHarness(t *testing.T, drv driver.Driver, mutate func(*config.Config)) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.ReportDir = filepath.Join(dir, "reports")
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.TaskCooldown = 1
	cfg.Workflow.ErrorRetryInterval = 1
	if mutate != nil {
		mutate(&cfg)
	}

	store, err := queue.OpenPath(filepath.Join(dir, "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	notifier := &recordingNotifier{}
	executor := pipeline.NewExecutor(pipeline.DefaultRegistry(), cfg.Paths.ReportDir, nil)
	sender := results.NewSender(&cfg, nil)
	w := New(&cfg, store, executor, func() (driver.Driver, error) { return drv, nil }, sender, notifier, nil)
	return &harness{store: store, worker: w, notifier: notifier}
}

func enqueueInput(t *testing.T, h *harness, kind queue.Kind, content string) *queue.Task {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	task, err := h.store.Enqueue(context.Background(), kind, path, "test")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return task
}

func runUntil(t *testing.T, h *harness, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		_ = h.worker.Run(ctx)
		close(finished)
	}()

	deadline := time.After(10 * time.Second)
	for !done() {
		select {
		case <-deadline:
			cancel()
			<-finished
			t.Fatal("worker did not reach expected state in time")
		case <-time.After(20 * time.Millisecond):
		}
	}
	cancel()
	<-finished
}

func taskStatus(t *testing.T, h *harness, id string) queue.Status {
	t.Helper()
	task, err := h.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	return task.Status
}

func TestWorkerCompletesTask(t *testing.T) {
	h := newHarness(t, scriptedDriver{}, nil)
	task := enqueueInput(t, h, queue.KindPurchaseOrder, purchaseCSV)

	runUntil(t, h, func() bool { return taskStatus(t, h, task.ID).IsTerminal() })

	loaded, err := h.store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if loaded.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", loaded.Status, loaded.ErrorMessage)
	}
	if loaded.ReportPath == "" {
		t.Fatal("expected report path recorded")
	}

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if len(h.notifier.started) != 1 || len(h.notifier.completed) != 1 {
		t.Fatalf("unexpected notifications: %+v", h.notifier)
	}
}

func TestWorkerFailsTaskOnRejection(t *testing.T) {
	drv := scriptedDriver{rejectKeys: map[string]string{"ART-1": "article unknown"}}
	h := newHarness(t, drv, nil)
	task := enqueueInput(t, h, queue.KindPurchaseOrder, purchaseCSV)

	runUntil(t, h, func() bool { return taskStatus(t, h, task.ID).IsTerminal() })

	loaded, _ := h.store.GetByID(context.Background(), task.ID)
	if loaded.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", loaded.Status)
	}
	if loaded.ErrorMessage == "" {
		t.Fatal("expected failure reason recorded")
	}

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if len(h.notifier.failed) != 1 {
		t.Fatalf("expected failure notification, got %+v", h.notifier)
	}
}

func TestWorkerDeliversResultPayload(t *testing.T) {
	var (
		mu       sync.Mutex
		received []results.Payload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p results.Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
	}))
	defer server.Close()

	h := newHarness(t, scriptedDriver{}, func(cfg *config.Config) {
		cfg.Delivery.Enabled = true
		cfg.Delivery.URL = server.URL
		cfg.Delivery.Mode = "json"
	})
	task := enqueueInput(t, h, queue.KindPurchaseOrder, purchaseCSV)

	runUntil(t, h, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) > 0
	})

	mu.Lock()
	defer mu.Unlock()
	payload := received[0]
	if payload.TaskID != task.ID || payload.Status != "completed" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.FinalRef != "BC-100" || payload.Summary.Succeeded == 0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

// gatedDriver signals when the first unit starts and blocks it until
// released, so a test can cancel the worker mid-task.
type gatedDriver struct {
	scriptedDriver
	started   chan struct{}
	release   chan struct{}
	signalled sync.Once
}

func (d *gatedDriver) PerformUnitAction(ctx context.Context, action driver.UnitAction) (driver.UnitResult, error) {
	d.signalled.Do(func() { close(d.started) })
	select {
	case <-d.release:
	case <-ctx.Done():
		return driver.UnitResult{}, ctx.Err()
	}
	return d.scriptedDriver.PerformUnitAction(ctx, action)
}

func TestWorkerFinishesTaskAfterCancellation(t *testing.T) {
	drv := &gatedDriver{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newHarness(t, drv, nil)
	task := enqueueInput(t, h, queue.KindPurchaseOrder, purchaseCSV)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		_ = h.worker.Run(ctx)
		close(finished)
	}()

	select {
	case <-drv.started:
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("worker never started the task")
	}

	// Cancel while the task is mid-unit, then let the driver proceed.
	// The task must still run to completion.
	cancel()
	close(drv.release)

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}

	loaded, err := h.store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if loaded.Status != queue.StatusCompleted {
		t.Fatalf("expected completed after shutdown, got %s (%s)", loaded.Status, loaded.ErrorMessage)
	}

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if len(h.notifier.completed) != 1 {
		t.Fatalf("expected completion notification, got %+v", h.notifier)
	}
}

func TestWorkerSurfacesOrphans(t *testing.T) {
	h := newHarness(t, scriptedDriver{}, nil)

	orphan := enqueueInput(t, h, queue.KindReceipt, "CodeFrs,BLFrs,DateBC,N_BC,CodeArticle,Quantite\nF01,BL,2026-01-01,BC-1,ART-1,1\n")
	if _, err := h.store.Transition(context.Background(), orphan.ID, queue.StatusProcessing, ""); err != nil {
		t.Fatalf("transition: %v", err)
	}

	runUntil(t, h, func() bool {
		h.notifier.mu.Lock()
		defer h.notifier.mu.Unlock()
		return h.notifier.orphaned == 1
	})

	// Orphans are reported, never resumed.
	if got := taskStatus(t, h, orphan.ID); got != queue.StatusProcessing {
		t.Fatalf("orphan must stay processing, got %s", got)
	}
}
