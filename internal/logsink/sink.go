package logsink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Sink is the application log: a capped in-memory buffer mirrored to a
// durable Store and to the process logger. Records are never modified.
type Sink struct {
	store  Store
	cap    int
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu        sync.RWMutex
	entries   []Entry
	defaults  map[string]string
	observers map[int64]func(Entry)
	nextObs   int64
}

// New creates a sink retaining at most cap entries. store may be nil.
func New(store Store, cap int, logger *zap.Logger) *Sink {
	if cap <= 0 {
		cap = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		store:     store,
		cap:       cap,
		logger:    logger.Named("app"),
		now:       time.Now,
		newID:     uuid.NewString,
		defaults:  map[string]string{},
		observers: map[int64]func(Entry){},
	}
}

// Load fills the memory buffer from the durable store.
func (s *Sink) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	entries, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = trim(append(entries, s.entries...), s.cap)
	return nil
}

// SetSession sets metadata defaults used when a record omits them.
// Empty values remove the default.
func (s *Sink) SetSession(userID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setDefault(MetaUserID, userID)
	s.setDefault(MetaSessionID, sessionID)
}

func (s *Sink) setDefault(key, value string) {
	if value == "" {
		delete(s.defaults, key)
		return
	}
	s.defaults[key] = value
}

// Record appends one entry and returns its id. ERROR records are also
// handed to every OnError observer.
func (s *Sink) Record(level Level, message string, err error, metadata map[string]string) string {
	entry := s.newEntry(level, message, err, metadata)

	s.mu.Lock()
	s.entries = trim(append(s.entries, entry), s.cap)
	var observers []func(Entry)
	if level == LevelError {
		observers = lo.Values(s.observers)
	}
	s.mu.Unlock()

	if s.store != nil {
		if storeErr := s.store.Append(context.Background(), entry); storeErr != nil {
			s.logger.Warn("persist log entry", zap.String("id", entry.ID), zap.Error(storeErr))
		}
	}
	s.mirror(entry, err)

	for _, fn := range observers {
		s.notify(fn, entry)
	}
	return entry.ID
}

// Error records an ERROR entry.
func (s *Sink) Error(message string, err error, metadata map[string]string) string {
	return s.Record(LevelError, message, err, metadata)
}

// Warn records a WARN entry.
func (s *Sink) Warn(message string, metadata map[string]string) string {
	return s.Record(LevelWarn, message, nil, metadata)
}

// Info records an INFO entry.
func (s *Sink) Info(message string, metadata map[string]string) string {
	return s.Record(LevelInfo, message, nil, metadata)
}

// Debug records a DEBUG entry.
func (s *Sink) Debug(message string, metadata map[string]string) string {
	return s.Record(LevelDebug, message, nil, metadata)
}

// OnError registers an observer of ERROR records and returns its remover.
func (s *Sink) OnError(fn func(Entry)) func() {
	s.mu.Lock()
	s.nextObs++
	id := s.nextObs
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// Logs returns the newest entries matching f, oldest first.
func (s *Sink) Logs(f Filter) []Entry {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.RLock()
	matched := lo.Filter(s.entries, func(e Entry, _ int) bool { return f.match(e) })
	s.mu.RUnlock()

	return trim(matched, limit)
}

// Len returns the number of retained entries.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Export snapshots every retained entry.
func (s *Sink) Export() Export {
	s.mu.RLock()
	logs := append([]Entry(nil), s.entries...)
	s.mu.RUnlock()

	return s.export(logs)
}

// ExportMatching snapshots the entries Logs(f) would return.
func (s *Sink) ExportMatching(f Filter) Export {
	return s.export(s.Logs(f))
}

func (s *Sink) export(logs []Entry) Export {
	return Export{
		Logs:       logs,
		ExportTime: s.now().UTC(),
		TotalCount: len(logs),
	}
}

// JSON renders the export as indented JSON.
func (e Export) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export logs: %w", err)
	}
	return data, nil
}

// Clear drops every entry from memory and the durable store.
func (s *Sink) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	return s.store.Clear(ctx)
}

func (s *Sink) newEntry(level Level, message string, err error, metadata map[string]string) Entry {
	meta := make(map[string]string, len(metadata)+4)
	for k, v := range metadata {
		meta[k] = v
	}

	s.mu.RLock()
	for k, v := range s.defaults {
		if meta[k] == "" {
			meta[k] = v
		}
	}
	s.mu.RUnlock()

	for _, key := range []string{MetaComponent, MetaAction, MetaUserID, MetaSessionID} {
		if meta[key] == "" {
			meta[key] = unknown
		}
	}

	entry := Entry{
		ID:        s.newID(),
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
		Level:     level,
		Message:   message,
		Metadata:  meta,
	}
	if err != nil {
		entry.Error = &ErrorInfo{Name: fmt.Sprintf("%T", err), Message: err.Error()}
	}
	return entry
}

// mirror forwards entry to the process logger at the matching level.
func (s *Sink) mirror(entry Entry, err error) {
	fields := []zap.Field{
		zap.String("log_id", entry.ID),
		zap.String("component", entry.Metadata[MetaComponent]),
		zap.String("action", entry.Metadata[MetaAction]),
		zap.String("user_id", entry.Metadata[MetaUserID]),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	switch entry.Level {
	case LevelError:
		s.logger.Error(entry.Message, fields...)
	case LevelWarn:
		s.logger.Warn(entry.Message, fields...)
	case LevelDebug:
		s.logger.Debug(entry.Message, fields...)
	default:
		s.logger.Info(entry.Message, fields...)
	}
}

func (s *Sink) notify(fn func(Entry), entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("error observer panicked", zap.Any("panic", r))
		}
	}()
	fn(entry)
}
