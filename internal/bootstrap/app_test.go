package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"floroexpress/internal/config"
	"floroexpress/internal/diagnostics"
	"floroexpress/internal/domain"
	"floroexpress/internal/logsink"
	"floroexpress/internal/workflow"
)

// fakeStore keeps settings in memory for App tests.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saves    int
}

// Load returns the stored settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Save replaces the stored settings.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.saves++
	return nil
}

// pushRecorder captures runtime push notifications.
type pushRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *pushRecorder) push(event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[event]++
}

func (r *pushRecorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[event]
}

// testSettings returns fast channel timings and a temporary log store.
func testSettings(t *testing.T) domain.Settings {
	t.Helper()
	settings := DemoSettings(config.DefaultSettings())
	settings.LogStorePath = filepath.Join(t.TempDir(), "logs.db")
	return settings
}

// newTestApp assembles an offline App and shuts it down after the test.
func newTestApp(t *testing.T, settings domain.Settings) (*App, *fakeStore, *pushRecorder) {
	t.Helper()
	store := &fakeStore{settings: settings}
	app := Assemble(Deps{
		Settings: settings,
		Store:    store,
		LogStore: logsink.NewMemStore(settings.LogCap),
		Checker:  diagnostics.NewChecker(),
	})
	recorder := &pushRecorder{}
	app.push = recorder.push
	t.Cleanup(func() { app.Shutdown(context.Background()) })
	return app, store, recorder
}

// waitForState fails the test when cond does not hold within timeout.
func waitForState(t *testing.T, app *App, timeout time.Duration, cond func(domain.WorkflowState) bool) domain.WorkflowState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	state, err := app.waitFor(ctx, "test condition", cond)
	if err != nil {
		t.Fatalf("%v (step %s)", err, state.CurrentStep)
	}
	return state
}

// TestAssembleRunsStartupDiagnostics checks the report is ready after wiring.
func TestAssembleRunsStartupDiagnostics(t *testing.T) {
	app, _, _ := newTestApp(t, testSettings(t))

	report := app.GetDiagnostics()
	if len(report.Items) != 4 {
		t.Fatalf("diagnostic items = %d, want 4", len(report.Items))
	}
	if report.HasFailures {
		t.Fatalf("unexpected failures: %+v", report.Items)
	}
}

// TestLoginWithWrongPasswordReturnsError checks the bound login surface.
func TestLoginWithWrongPasswordReturnsError(t *testing.T) {
	app, _, _ := newTestApp(t, testSettings(t))

	state, err := app.Login("hunter2", "user")
	if !errors.Is(err, workflow.ErrInvalidCredentials) {
		t.Fatalf("error = %v, want %v", err, workflow.ErrInvalidCredentials)
	}
	if state.Authenticated || state.Error == "" {
		t.Fatalf("state = %+v", state)
	}
	if app.Channel.Connected() {
		t.Fatal("channel connected after failed login")
	}

	if _, err := app.Login(workflow.Password, "user"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !app.Channel.Connected() {
		t.Fatal("channel not connected after login")
	}
}

// TestDescribeFileDetectsContentType checks descriptors built from disk.
func TestDescribeFileDetectsContentType(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(path, []byte("Quarterly numbers look good.\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	doc, err := DescribeFile(path)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if doc.Name != "notes.txt" || doc.Type != "text/plain" || doc.Size != 29 || doc.ID == "" {
		t.Fatalf("descriptor = %+v", doc)
	}

	if _, err := DescribeFile(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := DescribeFile(root); err == nil {
		t.Fatal("expected error for directory")
	}
	if _, err := DescribeFile(filepath.Join(root, "missing.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// TestUploadDocumentAnalyzesAndAdvances checks upload through delivery.
func TestUploadDocumentAnalyzesAndAdvances(t *testing.T) {
	app, _, recorder := newTestApp(t, testSettings(t))
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte("Draft report for the board."), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := app.UploadDocument(path); !errors.Is(err, workflow.ErrNotAuthenticated) {
		t.Fatalf("upload before login error = %v", err)
	}

	if _, err := app.Login(workflow.Password, "user"); err != nil {
		t.Fatalf("login: %v", err)
	}
	state, err := app.UploadDocument(path)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if state.CurrentStep != domain.StepAI || state.Document.Name != "report.txt" {
		t.Fatalf("state = %+v", state)
	}

	state = waitForState(t, app, 3*time.Second, func(s domain.WorkflowState) bool {
		return s.CurrentStep == domain.StepDelivery && s.Analysis != nil
	})
	if state.Analysis.FileType != domain.FileTypeText {
		t.Fatalf("file type = %s", state.Analysis.FileType)
	}
	if len(state.Improvements) == 0 {
		t.Fatal("expected improvements from the server")
	}
	if recorder.count(EventWorkflowState) == 0 || recorder.count(EventChannel) == 0 {
		t.Fatalf("push counts = %+v", recorder.counts)
	}
}

// TestFindPrinterShopsListsNearestAndRequestsSuggestion checks the printer step.
func TestFindPrinterShopsListsNearestAndRequestsSuggestion(t *testing.T) {
	app, _, _ := newTestApp(t, testSettings(t))
	if _, err := app.Login(workflow.Password, "user"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := app.FindPrinterShops(nil); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("error = %v, want %v", err, workflow.ErrInvalidTransition)
	}

	if _, err := app.SkipUpload(); err != nil {
		t.Fatalf("skip upload: %v", err)
	}
	if _, err := app.SkipDelivery(); err != nil {
		t.Fatalf("skip delivery: %v", err)
	}

	makati := domain.GeoPoint{Lat: 14.5547, Lng: 121.0244}
	result, err := app.FindPrinterShops(&makati)
	if err != nil {
		t.Fatalf("find shops: %v", err)
	}
	if len(result.Matches) == 0 {
		t.Fatal("expected matches")
	}
	for i := 1; i < len(result.Matches); i++ {
		if result.Matches[i].DistanceKm < result.Matches[i-1].DistanceKm {
			t.Fatalf("matches not sorted: %+v", result.Matches)
		}
	}

	state := waitForState(t, app, 3*time.Second, func(s domain.WorkflowState) bool {
		return s.PrinterShop != nil && s.PrinterShop.Suggested != nil && s.PrinterShop.QRCode != ""
	})
	if state.PrinterShop.Suggested.ID != result.Matches[0].Shop.ID {
		t.Fatalf("suggested %s, nearest %s", state.PrinterShop.Suggested.ID, result.Matches[0].Shop.ID)
	}
}

// TestRunDemoCompletesJourney checks the scripted journey end to end.
func TestRunDemoCompletesJourney(t *testing.T) {
	app, _, _ := newTestApp(t, testSettings(t))
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var names []string
	err := app.RunDemo(ctx, func(step DemoStep) {
		names = append(names, step.Name)
	})
	if err != nil {
		t.Fatalf("run demo: %v (steps %v)", err, names)
	}

	want := []string{"login", "upload", "analysis", "delivery", "shops", "printer", "printed", "arriving", "delivered", "confirmed", "logout"}
	if len(names) != len(want) {
		t.Fatalf("steps = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("steps = %v, want %v", names, want)
		}
	}

	if app.State().Authenticated || app.Channel.Connected() {
		t.Fatal("demo left the session open")
	}
	if len(app.DeliveryCode()) != 6 {
		t.Fatalf("delivery code = %q", app.DeliveryCode())
	}
	if len(app.Logs(logsink.Filter{})) == 0 {
		t.Fatal("expected workflow log entries")
	}
}

// TestRunDemoStopsWhenContextEnds checks cancellation while waiting.
func TestRunDemoStopsWhenContextEnds(t *testing.T) {
	settings := testSettings(t)
	settings.Channel.AIProcess = time.Hour
	app, _, _ := newTestApp(t, settings)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := app.RunDemo(ctx, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want %v", err, context.DeadlineExceeded)
	}
}

// TestSaveSettingsNormalizesAndRefreshesDiagnostics checks persisted settings.
func TestSaveSettingsNormalizesAndRefreshesDiagnostics(t *testing.T) {
	app, store, _ := newTestApp(t, testSettings(t))

	saved, err := app.SaveSettings(domain.Settings{
		LogLevel:     " DEBUG ",
		LogStorePath: filepath.Join(t.TempDir(), "logs.db"),
	})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if saved.LogLevel != "debug" || saved.LogCap != config.DefaultSettings().LogCap {
		t.Fatalf("saved = %+v", saved)
	}
	if store.saves != 1 || store.settings.LogLevel != "debug" {
		t.Fatalf("store = %+v", store.settings)
	}

	loaded, err := app.GetSettings()
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if loaded.Channel.StatusTick == "" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if app.GetDiagnostics().HasFailures {
		t.Fatalf("diagnostics = %+v", app.GetDiagnostics())
	}
}

// TestClearLogsEmptiesTheSink checks log removal through the App.
func TestClearLogsEmptiesTheSink(t *testing.T) {
	app, _, recorder := newTestApp(t, testSettings(t))
	app.Sink.Error("upload failed", errors.New("disk full"), nil)

	if recorder.count(EventLogError) != 1 {
		t.Fatalf("log error pushes = %d, want 1", recorder.count(EventLogError))
	}
	if got := app.ExportLogs(); len(got.Logs) != 1 {
		t.Fatalf("exported = %+v", got)
	}
	if err := app.ClearLogs(); err != nil {
		t.Fatalf("clear logs: %v", err)
	}
	if len(app.Logs(logsink.Filter{})) != 0 {
		t.Fatal("logs not cleared")
	}
}
