package bootstrap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"floroexpress/internal/config"
	"floroexpress/internal/domain"
)

// findItem returns the diagnostic item with id.
func findItem(t *testing.T, report domain.DiagnosticReport, id string) domain.DiagnosticItem {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("diagnostic item %s not found", id)
	return domain.DiagnosticItem{}
}

// TestFixDiagnosticResetsInvalidLocation ensures out-of-range coordinates are replaced.
func TestFixDiagnosticResetsInvalidLocation(t *testing.T) {
	settings := testSettings(t)
	settings.DefaultLocation = domain.GeoPoint{Lat: 120.9, Lng: 14.6}
	app, store, _ := newTestApp(t, settings)

	if findItem(t, app.GetDiagnostics(), "default_location").Status != domain.DiagnosticStatusFail {
		t.Fatal("expected default_location to fail before the fix")
	}

	report, err := app.FixDiagnostic("default_location")
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if store.settings.DefaultLocation != config.DefaultLocation {
		t.Fatalf("saved location = %+v", store.settings.DefaultLocation)
	}
	if item := findItem(t, report, "default_location"); item.Status != domain.DiagnosticStatusPass {
		t.Fatalf("item = %+v", item)
	}
}

// TestFixDiagnosticResetsBrokenSchedules ensures unparsable schedules get defaults.
func TestFixDiagnosticResetsBrokenSchedules(t *testing.T) {
	settings := testSettings(t)
	settings.Channel.StatusTick = "every now and then"
	app, store, _ := newTestApp(t, settings)

	report, err := app.FixDiagnostic(" schedules ")
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	defaults := config.DefaultChannelSettings()
	if store.settings.Channel.StatusTick != defaults.StatusTick || store.settings.Channel.PrintJobsTick != defaults.PrintJobsTick {
		t.Fatalf("saved channel = %+v", store.settings.Channel)
	}
	if item := findItem(t, report, "schedules"); item.Status != domain.DiagnosticStatusPass {
		t.Fatalf("item = %+v", item)
	}
}

// TestFixDiagnosticKeepsValidSchedules ensures working settings are not rewritten.
func TestFixDiagnosticKeepsValidSchedules(t *testing.T) {
	app, store, _ := newTestApp(t, testSettings(t))

	if _, err := app.FixDiagnostic("schedules"); err != nil {
		t.Fatalf("fix: %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("saves = %d, want 0", store.saves)
	}
}

// TestFixDiagnosticCreatesLogDirectory ensures a missing log folder is created in place.
func TestFixDiagnosticCreatesLogDirectory(t *testing.T) {
	settings := testSettings(t)
	logDir := filepath.Join(t.TempDir(), "nested", "logs")
	settings.LogStorePath = filepath.Join(logDir, "floroexpress.db")
	app, store, _ := newTestApp(t, settings)

	if err := os.RemoveAll(logDir); err != nil {
		t.Fatalf("remove log dir: %v", err)
	}
	if _, err := app.FixDiagnostic("log_store"); err != nil {
		t.Fatalf("fix: %v", err)
	}

	info, err := os.Stat(logDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("log dir not created: %v", err)
	}
	if store.saves != 0 || store.settings.LogStorePath != settings.LogStorePath {
		t.Fatalf("log path changed to %s", store.settings.LogStorePath)
	}
}

// TestFixDiagnosticAnalysisNeedsManualConfiguration ensures no silent fix is attempted.
func TestFixDiagnosticAnalysisNeedsManualConfiguration(t *testing.T) {
	app, _, _ := newTestApp(t, testSettings(t))

	report, err := app.FixDiagnostic("analysis_service")
	if !errors.Is(err, ErrManualFix) {
		t.Fatalf("error = %v, want %v", err, ErrManualFix)
	}
	if len(report.Items) == 0 {
		t.Fatal("expected refreshed report alongside the error")
	}
}

// TestFixDiagnosticRejectsUnknownItems ensures ids are validated.
func TestFixDiagnosticRejectsUnknownItems(t *testing.T) {
	app, _, _ := newTestApp(t, testSettings(t))

	for _, id := range []string{"", "printer_driver"} {
		if _, err := app.FixDiagnostic(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}
