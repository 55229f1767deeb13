package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"floroexpress/internal/channel"
	"floroexpress/internal/domain"
	"floroexpress/internal/logistics"
	"floroexpress/internal/logsink"
)

// handledEvents are the channel publications folded into the state.
var handledEvents = []domain.EventName{
	domain.EventAIProcessComplete,
	domain.EventPrintJobCreated,
	domain.EventPrintJobUpdate,
	domain.EventPrintJobsUpdate,
	domain.EventPrintJobStatusUpdate,
	domain.EventStatusUpdate,
	domain.EventDeliveryUpdate,
	domain.EventRiderAssigned,
	domain.EventDeliveryDetailsConfirmed,
	domain.EventPrinterShopFound,
	domain.EventQRCodeGenerated,
	domain.EventDeliveryConfirmationResponse,
	domain.EventErrorMessage,
}

// Bus is the channel surface the Machine drives.
type Bus interface {
	Connect(session domain.Session) error
	Disconnect()
	On(name domain.EventName, h channel.Handler) *channel.Subscription
	Emit(payload domain.Payload) (channel.Task, error)
}

// Analyzer produces the analysis of one document.
type Analyzer interface {
	Analyze(ctx context.Context, doc domain.DocumentDescriptor) (domain.AnalysisResult, error)
}

// Tracker simulates the delivery run.
type Tracker interface {
	Start(ctx context.Context, route logistics.Route, deliveryID string) string
	Stop()
}

// Recorder stores application log records.
type Recorder interface {
	Record(level logsink.Level, message string, err error, metadata map[string]string) string
}

// ShopDirectory resolves catalog shops by id.
type ShopDirectory interface {
	Shop(id string) (domain.PrinterShop, error)
}

// Deps are the collaborators of a Machine. Only Bus is required.
type Deps struct {
	Bus      Bus
	Analyzer Analyzer
	Tracker  Tracker
	Recorder Recorder
	Shops    ShopDirectory
	// Destination returns where deliveries go. Nil means the pickup point.
	Destination func(ctx context.Context) domain.GeoPoint
	Logger      *zap.Logger
}

// Machine is the single writer of the WorkflowState. Every change goes
// through Dispatch, which applies Reduce under the lock and runs the
// requested effects after releasing it.
type Machine struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu             sync.Mutex
	state          domain.WorkflowState
	subs           []*channel.Subscription
	requests       []channel.Task
	cancelAnalysis context.CancelFunc

	observersMu sync.Mutex
	nextObsID   int
	observers   map[int]func(domain.WorkflowState)
	notifyMu    sync.Mutex
}

// NewMachine creates a machine at the login gate.
func NewMachine(deps Deps) *Machine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		deps:      deps,
		logger:    logger.Named("workflow"),
		now:       time.Now,
		newID:     uuid.NewString,
		observers: make(map[int]func(domain.WorkflowState)),
	}
}

// State returns the current state.
func (m *Machine) State() domain.WorkflowState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dispatch applies action and returns the resulting state. A rejected action
// leaves the state untouched and returns the current state with the error.
func (m *Machine) Dispatch(action Action) (domain.WorkflowState, error) {
	action = m.stamp(action)

	m.mu.Lock()
	next, effects, err := Reduce(m.state, action)
	if err != nil {
		current := m.state
		m.mu.Unlock()
		return current, err
	}
	next.Revision = m.state.Revision + 1
	m.state = next
	m.mu.Unlock()

	m.notify()
	for _, effect := range effects {
		m.run(effect)
	}
	return next, nil
}

// Subscribe registers an observer called with the latest state after every
// change. The returned func removes it.
func (m *Machine) Subscribe(fn func(domain.WorkflowState)) func() {
	m.observersMu.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = fn
	m.observersMu.Unlock()

	return func() {
		m.observersMu.Lock()
		delete(m.observers, id)
		m.observersMu.Unlock()
	}
}

// Close stops background work and disconnects the channel.
func (m *Machine) Close() {
	m.run(CancelAnalysis{})
	m.run(CancelRequests{})
	m.run(StopTracking{})
	m.run(Disconnect{})
}

// stamp fills identifiers and clock readings the pure reducer cannot make.
func (m *Machine) stamp(action Action) Action {
	switch a := action.(type) {
	case Login:
		if a.UserID == "" {
			a.UserID = m.newID()
		}
		if a.Now.IsZero() {
			a.Now = m.now().UTC()
		}
		return a
	case Upload:
		if a.Document.ID == "" {
			a.Document.ID = m.newID()
		}
		return a
	case PrinterSelect:
		if a.Now.IsZero() {
			a.Now = m.now().UTC()
		}
		if a.Shop == nil && m.deps.Shops != nil {
			if shop, err := m.deps.Shops.Shop(a.ShopID); err == nil {
				a.Shop = &shop
			}
		}
		return a
	case ConfirmDelivery:
		if a.Now.IsZero() {
			a.Now = m.now().UTC()
		}
		return a
	default:
		return action
	}
}

// notify hands the latest state to every observer. Deliveries are
// serialized so an observer never sees revisions go backwards.
func (m *Machine) notify() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	state := m.State()
	m.observersMu.Lock()
	observers := make([]func(domain.WorkflowState), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.observersMu.Unlock()

	for _, fn := range observers {
		m.safeCall(fn, state)
	}
}

func (m *Machine) safeCall(fn func(domain.WorkflowState), state domain.WorkflowState) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("state observer panicked", zap.Any("panic", r))
		}
	}()
	fn(state)
}

// run carries out one effect.
func (m *Machine) run(effect Effect) {
	switch e := effect.(type) {
	case Connect:
		m.connect(e.Session)
	case Disconnect:
		m.disconnect()
	case Emit:
		m.emit(e.Payload)
	case CancelRequests:
		m.mu.Lock()
		requests := m.requests
		m.requests = nil
		m.mu.Unlock()
		for _, task := range requests {
			task.Cancel()
		}
	case Analyze:
		m.analyze(e.Document)
	case CancelAnalysis:
		m.mu.Lock()
		cancel := m.cancelAnalysis
		m.cancelAnalysis = nil
		m.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	case StartTracking:
		m.startTracking(e)
	case StopTracking:
		if m.deps.Tracker != nil {
			m.deps.Tracker.Stop()
		}
	case Log:
		m.record(e)
	}
}

// connect subscribes to the handled events before opening the channel so
// that no early publication is missed.
func (m *Machine) connect(session domain.Session) {
	subs := make([]*channel.Subscription, 0, len(handledEvents))
	for _, name := range handledEvents {
		subs = append(subs, m.deps.Bus.On(name, m.receive))
	}
	m.mu.Lock()
	m.subs = subs
	m.mu.Unlock()

	if err := m.deps.Bus.Connect(session); err != nil {
		m.logger.Error("connect channel", zap.Error(err))
		m.record(Log{Level: logsink.LevelError, Message: "Channel connection failed", Action: "connect"})
		_, _ = m.Dispatch(SetError{Message: "Could not connect to the server"})
	}
}

func (m *Machine) disconnect() {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	m.deps.Bus.Disconnect()
}

// emit sends a request and keeps its response chain until the job ends.
func (m *Machine) emit(payload domain.Payload) {
	task, err := m.deps.Bus.Emit(payload)
	if err != nil {
		m.logger.Warn("emit failed", zap.String("event", string(payload.EventName())), zap.Error(err))
		return
	}
	if task == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.requests[:0]
	for _, t := range m.requests {
		select {
		case <-t.Done():
		default:
			pending = append(pending, t)
		}
	}
	m.requests = append(pending, task)
}

// receive folds a channel publication into the state.
func (m *Machine) receive(event channel.Event) {
	if _, err := m.Dispatch(Received{Payload: event.Payload}); err != nil {
		m.logger.Debug("event not applied", zap.String("event", string(event.Name)), zap.Error(err))
	}
}

// analyze runs the analyzer in the background; a newer upload or a cancel
// effect stops it.
func (m *Machine) analyze(doc domain.DocumentDescriptor) {
	if m.deps.Analyzer == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	previous := m.cancelAnalysis
	m.cancelAnalysis = cancel
	m.mu.Unlock()
	if previous != nil {
		previous()
	}

	go func() {
		defer cancel()
		result, err := m.deps.Analyzer.Analyze(ctx, doc)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			m.logger.Error("analyze document", zap.String("document", doc.Name), zap.Error(err))
			_, _ = m.Dispatch(SetError{Message: "Document analysis failed"})
			return
		}
		if ctx.Err() != nil {
			return
		}
		if _, err := m.Dispatch(AIComplete{DocumentID: doc.ID, Result: result}); err != nil {
			m.logger.Debug("analysis result dropped", zap.Error(err))
		}
	}()
}

func (m *Machine) startTracking(e StartTracking) {
	if m.deps.Tracker == nil {
		return
	}
	ctx := context.Background()
	to := e.From
	if m.deps.Destination != nil {
		to = m.deps.Destination(ctx)
	}
	code := m.deps.Tracker.Start(ctx, logistics.Route{From: e.From, To: to}, e.DeliveryID)
	m.logger.Info("delivery tracking started", zap.String("delivery_id", e.DeliveryID), zap.String("handover_code", code))
}

func (m *Machine) record(e Log) {
	if m.deps.Recorder == nil {
		return
	}
	metadata := map[string]string{
		logsink.MetaComponent: "workflow",
		logsink.MetaAction:    e.Action,
	}
	for k, v := range e.Metadata {
		metadata[k] = v
	}
	m.deps.Recorder.Record(e.Level, e.Message, nil, metadata)
}

// NewMachineForTests creates a machine with a fixed clock and id source.
func NewMachineForTests(deps Deps, now func() time.Time, newID func() string) *Machine {
	m := NewMachine(deps)
	if now != nil {
		m.now = now
	}
	if newID != nil {
		m.newID = newID
	}
	return m
}
