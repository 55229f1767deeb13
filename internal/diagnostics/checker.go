package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"floroexpress/internal/channel"
	"floroexpress/internal/domain"
)

// Checker validates the configuration the application depends on.
type Checker struct {
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	now        func() time.Time
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		now:        time.Now,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkAnalysisService(settings.Analysis),
		c.checkLogStore(settings.LogStorePath),
		c.checkDefaultLocation(settings.DefaultLocation),
		c.checkSchedules(settings.Channel),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: c.now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkAnalysisService reports whether document analysis runs online.
func (c *Checker) checkAnalysisService(settings domain.AnalysisSettings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "analysis_service",
		Name: "Analysis service",
	}

	if !settings.Online() {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Analysis service is not configured; documents get offline results."
		item.Hint = "Set analysis.project and analysis.region in settings or FLOROEXPRESS_GCP_PROJECT and FLOROEXPRESS_GCP_REGION."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Using %s in %s/%s", settings.Model, settings.Project, settings.Region)
	return item
}

// checkLogStore validates the log database directory exists and is writable.
func (c *Checker) checkLogStore(path string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "log_store",
		Name: "Log store",
	}

	if strings.TrimSpace(path) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Log store path is empty."
		item.Hint = "Set log_store_path to a file in a writable directory."
		return item
	}

	dir := filepath.Dir(path)
	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create log directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Log directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory for the log database."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable log store: %s", path)
	return item
}

// checkDefaultLocation validates the fallback used when geolocation fails.
func (c *Checker) checkDefaultLocation(point domain.GeoPoint) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "default_location",
		Name: "Default location",
	}

	if !point.Valid() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Invalid coordinates: %.4f, %.4f", point.Lat, point.Lng)
		item.Hint = "Latitude must be within ±90 and longitude within ±180."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Fallback location %.4f, %.4f", point.Lat, point.Lng)
	return item
}

// checkSchedules validates the recurring channel publications.
func (c *Checker) checkSchedules(settings domain.ChannelSettings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "schedules",
		Name: "Channel schedules",
	}

	for _, spec := range []string{settings.StatusTick, settings.PrintJobsTick} {
		if _, err := channel.ParseSchedule(spec); err != nil {
			item.Status = domain.DiagnosticStatusFail
			item.Message = err.Error()
			item.Hint = `Use a five-field cron expression or a descriptor such as "@every 5s".`
			return item
		}
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Status %s, print jobs %s", settings.StatusTick, settings.PrintJobsTick)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	now func() time.Time,
) *Checker {
	return &Checker{
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		now:        now,
	}
}
