package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wailsapp/mimetype"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"floroexpress/internal/analysis"
	"floroexpress/internal/channel"
	"floroexpress/internal/config"
	"floroexpress/internal/diagnostics"
	"floroexpress/internal/domain"
	"floroexpress/internal/logistics"
	"floroexpress/internal/logsink"
	"floroexpress/internal/printers"
	"floroexpress/internal/workflow"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// Runtime events pushed to the frontend.
const (
	EventWorkflowState = "workflow:state"
	EventChannel       = "channel:event"
	EventLogError      = "log:error"
)

var documentDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Documents",
		Pattern:     "*.pdf;*.doc;*.docx;*.txt;*.json;*.jpg;*.jpeg;*.png;*.gif;*.bmp;*.dwg;*.dxf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// App wires configuration, the channel, the workflow and the UI runtime.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Diagnostics domain.DiagnosticReport
	Machine     *workflow.Machine
	Channel     *channel.Channel
	Sink        *logsink.Sink
	Locator     *printers.Locator
	Tracker     *logistics.Tracker
	Analysis    *analysis.Client

	logger  *zap.Logger
	assets  fs.FS
	checker *diagnostics.Checker
	closers []func() error
	detach  []func()
	push    func(event string, data any)

	mu         sync.Mutex
	runtimeCtx context.Context
	scope      *channel.Scope
	scopeStep  domain.Step
	sessionID  string
}

// Deps are the collaborators Assemble wires together. Zero values get
// offline defaults.
type Deps struct {
	Settings   domain.Settings
	Store      config.Store
	Logger     *zap.Logger
	LogStore   logsink.Store
	Generator  analysis.Generator
	Geolocator printers.Geolocator
	Checker    *diagnostics.Checker
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	return NewWithStore(assets, config.NewYAMLStore(config.DefaultPath()))
}

// NewWithStore builds the application from the settings held by store.
func NewWithStore(assets fs.FS, store config.Store) (*App, error) {
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.ApplyEnv(settings, nil)

	logger, err := logsink.NewLogger(settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	var closers []func() error
	var logStore logsink.Store
	if sqliteStore, err := OpenLogStore(settings); err != nil {
		logger.Warn("durable log store unavailable, keeping logs in memory", zap.Error(err))
		logStore = logsink.NewMemStore(settings.LogCap)
	} else {
		logStore = sqliteStore
	}

	var generator analysis.Generator
	if settings.Analysis.Online() {
		vertex, err := analysis.NewVertexGenerator(context.Background(), settings.Analysis)
		if err != nil {
			logger.Warn("analysis service unavailable, using offline results", zap.Error(err))
		} else {
			generator = vertex
			closers = append(closers, vertex.Close)
		}
	}

	app := Assemble(Deps{
		Settings:  settings,
		Store:     store,
		Logger:    logger,
		LogStore:  logStore,
		Generator: generator,
		Checker:   diagnostics.NewChecker(),
	})
	app.assets = assets
	app.closers = append(app.closers, closers...)

	if err := app.Sink.Load(context.Background()); err != nil {
		logger.Warn("load persisted logs", zap.Error(err))
	}
	return app, nil
}

// OpenLogStore opens the durable log store configured in settings.
func OpenLogStore(settings domain.Settings) (*logsink.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(settings.LogStorePath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return logsink.NewSQLiteStore(settings.LogStorePath, settings.LogCap)
}

// Assemble wires an App from explicit collaborators.
func Assemble(deps Deps) *App {
	settings := config.Normalize(deps.Settings)
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logStore := deps.LogStore
	if logStore == nil {
		logStore = logsink.NewMemStore(settings.LogCap)
	}

	sink := logsink.New(logStore, settings.LogCap, logger)
	locator := printers.NewLocator(printers.DefaultCatalog(), deps.Geolocator, settings.DefaultLocation, logger)
	ch := channel.New(settings.Channel, locator, logger)
	tracker := logistics.NewTracker(ch, logistics.Milestones(settings.Channel.RiderDispatch, settings.Channel.RouteLeg), logger)
	client := analysis.NewClient(deps.Generator, settings.Analysis, logger)

	machine := workflow.NewMachine(workflow.Deps{
		Bus:      ch,
		Analyzer: client,
		Tracker:  tracker,
		Recorder: sink,
		Shops:    locator,
		Destination: func(ctx context.Context) domain.GeoPoint {
			origin, _ := locator.Origin(ctx, nil)
			return origin
		},
		Logger: logger,
	})

	app := &App{
		Settings: settings,
		Store:    deps.Store,
		Machine:  machine,
		Channel:  ch,
		Sink:     sink,
		Locator:  locator,
		Tracker:  tracker,
		Analysis: client,
		logger:   logger,
		checker:  deps.Checker,
		closers:  []func() error{logStore.Close},
	}
	app.push = app.emitRuntime
	if app.checker != nil {
		app.Diagnostics = app.checker.Run(settings)
	}

	app.detach = []func(){
		machine.Subscribe(app.onState),
		ch.Watch(app.onChannelEvent),
		sink.OnError(app.onLogError),
	}
	return app
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "FloroExpress",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown stops background work and releases stores.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	a.runtimeCtx = nil
	scope := a.scope
	a.scope = nil
	a.mu.Unlock()

	if scope != nil {
		scope.Close()
	}
	a.Machine.Close()
	for _, detach := range a.detach {
		detach()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// Login opens a session for role when password matches.
func (a *App) Login(password, role string) (domain.WorkflowState, error) {
	state, err := a.Machine.Dispatch(workflow.Login{Password: password, Role: domain.Role(strings.TrimSpace(role))})
	if err != nil {
		return state, err
	}
	if !state.Authenticated {
		return state, workflow.ErrInvalidCredentials
	}
	return state, nil
}

// Logout closes the session.
func (a *App) Logout() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.Logout{})
}

// PickDocument opens a native file dialog for document selection.
func (a *App) PickDocument() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select document to print",
		Filters: documentDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// UploadDocument describes the file at path and starts its analysis.
func (a *App) UploadDocument(path string) (domain.WorkflowState, error) {
	doc, err := DescribeFile(path)
	if err != nil {
		return a.Machine.State(), err
	}
	return a.Machine.Dispatch(workflow.Upload{Document: doc})
}

// DescribeFile builds a document descriptor from a local file, detecting
// the MIME type from its content.
func DescribeFile(path string) (domain.DocumentDescriptor, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return domain.DocumentDescriptor{}, fmt.Errorf("document path is empty")
	}

	info, err := os.Stat(clean)
	if err != nil {
		return domain.DocumentDescriptor{}, fmt.Errorf("resolve document: %w", err)
	}
	if info.IsDir() {
		return domain.DocumentDescriptor{}, fmt.Errorf("document path is a directory: %s", clean)
	}

	mime, err := mimetype.DetectFile(clean)
	if err != nil {
		return domain.DocumentDescriptor{}, fmt.Errorf("detect document type: %w", err)
	}
	mediaType, _, _ := strings.Cut(mime.String(), ";")

	return domain.DocumentDescriptor{
		ID:           uuid.NewString(),
		Name:         info.Name(),
		Size:         info.Size(),
		Type:         strings.TrimSpace(mediaType),
		LastModified: info.ModTime().UTC(),
		Path:         clean,
	}, nil
}

// ContinueFromAI leaves the AI step.
func (a *App) ContinueFromAI() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.AIContinue{})
}

// SkipUpload goes straight to delivery details.
func (a *App) SkipUpload() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.SkipUpload{})
}

// SubmitDelivery stores the recipient details.
func (a *App) SubmitDelivery(details domain.DeliveryDetails) (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.DeliverySubmit{Details: details})
}

// SkipDelivery leaves the delivery step without details.
func (a *App) SkipDelivery() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.SkipDelivery{})
}

// FindPrinterShops lists shops nearest first and asks the server for its
// suggestion. A nil location means the device position.
func (a *App) FindPrinterShops(location *domain.GeoPoint) (printers.Result, error) {
	state := a.Machine.State()
	if !state.Authenticated {
		return printers.Result{}, workflow.ErrNotAuthenticated
	}
	if state.CurrentStep != domain.StepPrinter {
		return printers.Result{}, workflow.ErrInvalidTransition
	}

	result, err := a.Locator.Nearest(context.Background(), location, 0)
	if err != nil {
		return printers.Result{}, fmt.Errorf("find printer shops: %w", err)
	}

	origin := result.Origin
	if _, err := a.stepScope(state.CurrentStep).Emit(domain.FindPrinterShop{
		UserID:   state.Session.UserID,
		Location: &origin,
	}); err != nil && !errors.Is(err, channel.ErrScopeClosed) {
		return result, fmt.Errorf("request shop suggestion: %w", err)
	}
	return result, nil
}

// SelectPrinterShop books a shop and starts printing.
func (a *App) SelectPrinterShop(shopID string) (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.PrinterSelect{ShopID: shopID})
}

// CheckStatus asks the server to re-publish print and delivery status.
func (a *App) CheckStatus() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.StatusCheck{})
}

// MarkDeliveryReady hands the job to logistics.
func (a *App) MarkDeliveryReady() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.DeliveryReady{})
}

// CompleteDelivery marks the delivery as handed over.
func (a *App) CompleteDelivery() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.DeliveryComplete{})
}

// ConfirmDelivery records the recipient's confirmation.
func (a *App) ConfirmDelivery(confirmation domain.ConfirmationData) (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.ConfirmDelivery{Confirmation: confirmation})
}

// Previous goes back one step.
func (a *App) Previous() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.Previous{})
}

// StartNewJob returns to upload with a clean job.
func (a *App) StartNewJob() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.StartNewJob{})
}

// ClearError dismisses the global error.
func (a *App) ClearError() (domain.WorkflowState, error) {
	return a.Machine.Dispatch(workflow.ClearError{})
}

// State returns the current workflow state.
func (a *App) State() domain.WorkflowState {
	return a.Machine.State()
}

// DeliveryCode returns the handover code of the current delivery.
func (a *App) DeliveryCode() string {
	return a.Tracker.Code()
}

// ChannelEvents returns all channel events with sequence greater than sinceSeq.
func (a *App) ChannelEvents(sinceSeq int64) []channel.Event {
	return a.Channel.Since(sinceSeq)
}

// Logs returns application log entries matching filter.
func (a *App) Logs(filter logsink.Filter) []logsink.Entry {
	return a.Sink.Logs(filter)
}

// ExportLogs returns every retained log entry.
func (a *App) ExportLogs() logsink.Export {
	return a.Sink.Export()
}

// ClearLogs removes every log entry from memory and the durable store.
func (a *App) ClearLogs() error {
	return a.Sink.Clear(context.Background())
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns the startup checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
// Channel and analysis changes apply on the next start.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	normalized.LogLevel = strings.ToLower(strings.TrimSpace(normalized.LogLevel))
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// onState pushes every state change, releases the previous step's channel
// scope and keeps the log session metadata current.
func (a *App) onState(state domain.WorkflowState) {
	a.mu.Lock()
	var stale *channel.Scope
	if a.scope != nil && a.scopeStep != state.CurrentStep {
		stale = a.scope
		a.scope = nil
	}
	switch {
	case state.Authenticated && a.sessionID == "":
		a.sessionID = uuid.NewString()
		a.Sink.SetSession(state.Session.UserID, a.sessionID)
	case !state.Authenticated && a.sessionID != "":
		a.sessionID = ""
		a.Sink.SetSession("", "")
	}
	a.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	a.push(EventWorkflowState, state)
}

func (a *App) onChannelEvent(event channel.Event) {
	a.push(EventChannel, event)
}

func (a *App) onLogError(entry logsink.Entry) {
	a.push(EventLogError, entry)
}

// stepScope returns the channel scope owned by step, opening one if needed.
func (a *App) stepScope(step domain.Step) *channel.Scope {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.scope == nil || a.scopeStep != step {
		if a.scope != nil {
			a.scope.Close()
		}
		a.scope = a.Channel.NewScope()
		a.scopeStep = step
	}
	return a.scope
}

// emitRuntime sends a push notification when the Wails runtime is up.
func (a *App) emitRuntime(event string, data any) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, event, data)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}
