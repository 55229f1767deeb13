package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"floroexpress/internal/channel"
	"floroexpress/internal/config"
	"floroexpress/internal/domain"
)

// ErrManualFix is returned for diagnostics that need the user to act.
var ErrManualFix = errors.New("diagnostic requires manual configuration")

// FixDiagnostic applies the remediation for one failed diagnostic item and
// returns the refreshed report.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)

	settingsChanged := false
	var fixErr error

	switch id {
	case "log_store":
		settings, settingsChanged, fixErr = fixLogStore(settings)
	case "default_location":
		settings, settingsChanged = fixDefaultLocation(settings)
	case "schedules":
		settings, settingsChanged = fixSchedules(settings)
	case "analysis_service":
		fixErr = fmt.Errorf("%w: set analysis.project and analysis.region, or %s and %s",
			ErrManualFix, config.EnvGCPProject, config.EnvGCPRegion)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

// fixLogStore creates the configured log directory, falling back to the
// default location when that is impossible.
func fixLogStore(settings domain.Settings) (domain.Settings, bool, error) {
	path := strings.TrimSpace(settings.LogStorePath)
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			return settings, false, nil
		}
	}

	fallback := config.DefaultSettings().LogStorePath
	if err := os.MkdirAll(filepath.Dir(fallback), 0o755); err != nil {
		return settings, false, fmt.Errorf("create log directory: %w", err)
	}
	settings.LogStorePath = fallback
	return settings, true, nil
}

func fixDefaultLocation(settings domain.Settings) (domain.Settings, bool) {
	if settings.DefaultLocation.Valid() {
		return settings, false
	}
	settings.DefaultLocation = config.DefaultLocation
	return settings, true
}

// fixSchedules resets both channel schedules when either fails to parse.
func fixSchedules(settings domain.Settings) (domain.Settings, bool) {
	_, statusErr := channel.ParseSchedule(settings.Channel.StatusTick)
	_, jobsErr := channel.ParseSchedule(settings.Channel.PrintJobsTick)
	if statusErr == nil && jobsErr == nil {
		return settings, false
	}
	defaults := config.DefaultChannelSettings()
	settings.Channel.StatusTick = defaults.StatusTick
	settings.Channel.PrintJobsTick = defaults.PrintJobsTick
	return settings, true
}
