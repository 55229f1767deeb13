package channel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"floroexpress/internal/domain"
	"floroexpress/internal/printers"
)

// ErrNotConnected is returned when emitting on a disconnected channel.
var ErrNotConnected = errors.New("channel not connected")

// ErrAlreadyConnected is returned when connecting twice.
var ErrAlreadyConnected = errors.New("channel already connected")

// scheduleParser accepts five-field cron specs and @every descriptors.
var scheduleParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ParseSchedule validates a recurring publication schedule.
func ParseSchedule(spec string) (cron.Schedule, error) {
	clean := strings.TrimSpace(spec)
	if clean == "" {
		return nil, fmt.Errorf("schedule is required")
	}
	schedule, err := scheduleParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", clean, err)
	}
	return schedule, nil
}

// Handler receives one published event.
type Handler func(Event)

// ShopFinder resolves the printer shops nearest to a location.
type ShopFinder interface {
	Nearest(ctx context.Context, from *domain.GeoPoint, limit int) (printers.Result, error)
}

// Subscription is the handle returned by On and Once.
type Subscription struct {
	ch     *Channel
	name   domain.EventName
	fn     Handler
	once   bool
	active atomic.Bool
}

// Unsubscribe removes the handler. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.ch == nil {
		return
	}
	s.ch.Off(s.name, s)
}

// Channel is an in-memory publish/subscribe transport that stands in for a
// server connection. Requests sent with Emit produce delayed responses.
type Channel struct {
	settings domain.ChannelSettings
	shops    ShopFinder
	logger   *zap.Logger
	history  *History
	now      func() time.Time
	newID    func(prefix string) string

	mu        sync.Mutex
	connected bool
	session   domain.Session
	handlers  map[domain.EventName][]*Subscription
	watchers  []*Subscription
	tasks     map[*timerTask]struct{}
	cron      *cron.Cron
	sim       simState
}

// New creates a disconnected channel.
func New(settings domain.ChannelSettings, shops ShopFinder, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		settings: settings,
		shops:    shops,
		logger:   logger.Named("channel"),
		history:  NewHistory(settings.HistorySize),
		now:      time.Now,
		newID:    shortID,
		handlers: make(map[domain.EventName][]*Subscription),
		tasks:    make(map[*timerTask]struct{}),
	}
}

// Connect opens the channel for session, publishes login and starts the
// recurring background publications.
func (c *Channel) Connect(session domain.Session) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	scheduler := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithChain(cron.Recover(cronLogger{c.logger.Sugar()})),
	)
	if _, err := scheduler.AddFunc(c.settings.StatusTick, c.tickStatus); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("status schedule: %w", err)
	}
	if session.Role == domain.RoleUser {
		if _, err := scheduler.AddFunc(c.settings.PrintJobsTick, c.tickPrintJobs); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("print jobs schedule: %w", err)
		}
	}

	c.connected = true
	c.session = session
	c.sim = newSimState()
	c.cron = scheduler
	scheduler.Start()
	c.mu.Unlock()

	c.logger.Info("connected", zap.String("user_id", session.UserID), zap.String("role", string(session.Role)))

	_, err := c.Emit(domain.Login{UserID: session.UserID, Role: session.Role})
	return err
}

// Disconnect closes the channel, drops all subscriptions and identity and
// cancels every pending response.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.session = domain.Session{}
	for _, subs := range c.handlers {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}
	c.handlers = make(map[domain.EventName][]*Subscription)
	tasks := c.tasks
	c.tasks = make(map[*timerTask]struct{})
	scheduler := c.cron
	c.cron = nil
	c.mu.Unlock()

	if scheduler != nil {
		scheduler.Stop()
	}
	for task := range tasks {
		task.Cancel()
	}
	c.logger.Info("disconnected")
}

// Connected reports whether the channel is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Session returns the connected identity.
func (c *Channel) Session() (domain.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.connected
}

// On registers a persistent handler. Handlers of one name run in
// registration order.
func (c *Channel) On(name domain.EventName, h Handler) *Subscription {
	return c.subscribe(name, h, false)
}

// Once registers a handler removed after its first invocation.
func (c *Channel) Once(name domain.EventName, h Handler) *Subscription {
	return c.subscribe(name, h, true)
}

// Off removes one handler.
func (c *Channel) Off(name domain.EventName, sub *Subscription) {
	if sub == nil {
		return
	}
	sub.active.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = without(c.handlers[name], sub)
	if len(c.handlers[name]) == 0 {
		delete(c.handlers, name)
	}
	c.watchers = without(c.watchers, sub)
}

// Watch registers an observer of every publication. Watchers survive
// Disconnect; the returned func removes it.
func (c *Channel) Watch(h Handler) func() {
	sub := &Subscription{ch: c, fn: h}
	sub.active.Store(true)

	c.mu.Lock()
	c.watchers = append(c.watchers, sub)
	c.mu.Unlock()

	return func() { c.Off("", sub) }
}

// Emit sends a request. The request itself is published to handlers of its
// own name and the simulated server response is scheduled. The returned task
// cancels the pending response.
func (c *Channel) Emit(payload domain.Payload) (Task, error) {
	if payload == nil {
		return nil, errors.New("channel: nil payload")
	}
	if !c.publish(payload) {
		return nil, ErrNotConnected
	}
	c.logger.Debug("emit", zap.String("event", string(payload.EventName())))

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	return c.startLocked(c.respondLocked(payload)), nil
}

// Push publishes a server-originated payload to subscribers.
func (c *Channel) Push(payload domain.Payload) error {
	if payload == nil {
		return errors.New("channel: nil payload")
	}
	if !c.publish(payload) {
		return ErrNotConnected
	}
	return nil
}

// Since returns published events after seq.
func (c *Channel) Since(seq int64) []Event {
	return c.history.Since(seq)
}

func (c *Channel) subscribe(name domain.EventName, h Handler, once bool) *Subscription {
	sub := &Subscription{ch: c, name: name, fn: h, once: once}
	sub.active.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[name] = append(c.handlers[name], sub)
	return sub
}

// publish records payload and delivers it. It reports false when the
// channel is disconnected.
func (c *Channel) publish(payload domain.Payload) bool {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return false
	}
	name := payload.EventName()
	event := c.history.Append(payload, c.now())

	var targets []*Subscription
	kept := c.handlers[name][:0:0]
	for _, sub := range c.handlers[name] {
		if sub.once {
			if sub.active.CompareAndSwap(true, false) {
				targets = append(targets, sub)
			}
			continue
		}
		kept = append(kept, sub)
		targets = append(targets, sub)
	}
	if len(kept) == 0 {
		delete(c.handlers, name)
	} else {
		c.handlers[name] = kept
	}
	watchers := append([]*Subscription(nil), c.watchers...)
	c.mu.Unlock()

	for _, sub := range targets {
		if sub.once || sub.active.Load() {
			c.invoke(sub.fn, event)
		}
	}
	for _, sub := range watchers {
		if sub.active.Load() {
			c.invoke(sub.fn, event)
		}
	}
	return true
}

// invoke runs one handler and contains its panics.
func (c *Channel) invoke(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked",
				zap.String("event", string(event.Name)),
				zap.Any("panic", r),
			)
		}
	}()
	h(event)
}

// startLocked runs steps in order on a cancellable goroutine.
func (c *Channel) startLocked(steps []step) Task {
	if len(steps) == 0 {
		return finishedTask()
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &timerTask{cancel: cancel, done: make(chan struct{})}
	c.tasks[task] = struct{}{}

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.tasks, task)
			c.mu.Unlock()
			cancel()
			close(task.done)
		}()

		for _, s := range steps {
			if !sleep(ctx, s.delay) {
				return
			}
			if !c.Connected() {
				return
			}
			if !s.run(ctx) {
				return
			}
		}
	}()
	return task
}

func without(subs []*Subscription, target *Subscription) []*Subscription {
	out := subs[:0:0]
	for _, sub := range subs {
		if sub != target {
			out = append(out, sub)
		}
	}
	return out
}

// shortID returns prefix followed by eight uppercase hex characters.
func shortID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(raw[:8])
}

// cronLogger adapts zap to the scheduler's logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
