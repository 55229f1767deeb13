package logistics

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"floroexpress/internal/domain"
)

// Delivery progress statuses reported by the tracker.
const (
	StatusAssigned  = "assigned"
	StatusPickedUp  = "picked_up"
	StatusInTransit = "in_transit"
	StatusArriving  = "arriving"
)

// etaPerPercent converts remaining progress into an arrival estimate:
// 25 minutes remain when the rider is assigned at 25%.
const etaPerPercent = 20 * time.Second

// Rider describes the courier assigned to every simulated delivery.
type Rider struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Vehicle string `json:"vehicle"`
	Plate   string `json:"plate"`
	Phone   string `json:"phone"`
}

// DefaultRider is the simulated courier.
var DefaultRider = Rider{
	ID:      "R-2023-12345",
	Name:    "Arnel Santos",
	Vehicle: "Motorcycle",
	Plate:   "ABC 123",
	Phone:   "+63 (917) 123-4567",
}

// Milestone is one progress report of the delivery.
type Milestone struct {
	Delay    time.Duration
	Progress int
	Status   string
	Details  string
}

// Milestones returns the delivery timeline: the rider is assigned after
// first, then each following milestone is one leg later.
func Milestones(first, leg time.Duration) []Milestone {
	return []Milestone{
		{Delay: first, Progress: 25, Status: StatusAssigned, Details: "Rider Arnel assigned to your delivery"},
		{Delay: leg, Progress: 50, Status: StatusPickedUp, Details: "Documents picked up from printer"},
		{Delay: leg, Progress: 75, Status: StatusInTransit, Details: "Rider en route to delivery location"},
		{Delay: leg, Progress: 90, Status: StatusArriving, Details: "Rider arriving at delivery location"},
	}
}

// Route is the straight line a rider travels.
type Route struct {
	From domain.GeoPoint `json:"from"`
	To   domain.GeoPoint `json:"to"`
}

// At returns the interpolated position for progress in [0,1].
func (r Route) At(progress float64) domain.GeoPoint {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return domain.GeoPoint{
		Lat: r.From.Lat + (r.To.Lat-r.From.Lat)*progress,
		Lng: r.From.Lng + (r.To.Lng-r.From.Lng)*progress,
	}
}

// Publisher delivers server-originated payloads.
type Publisher interface {
	Push(payload domain.Payload) error
}

// Tracker simulates one delivery at a time and publishes its progress as
// delivery_update payloads.
type Tracker struct {
	pub        Publisher
	milestones []Milestone
	now        func() time.Time
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	code   string
}

// NewTracker creates an idle tracker.
func NewTracker(pub Publisher, milestones []Milestone, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		pub:        pub,
		milestones: milestones,
		now:        time.Now,
		logger:     logger.Named("logistics"),
	}
}

// Start begins tracking a delivery, replacing any tracking in progress.
// It returns the handover code the recipient verifies with the rider.
func (t *Tracker) Start(ctx context.Context, route Route, deliveryID string) string {
	t.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	code := DeliveryCode()

	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.code = code
	t.mu.Unlock()

	t.logger.Info("tracking started", zap.String("delivery_id", deliveryID))
	go func() {
		defer close(done)
		defer cancel()
		t.run(ctx, route, deliveryID)
	}()
	return code
}

// Stop cancels tracking in progress. No update is published after Stop
// returns, except one already being delivered.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed when the most recent tracking ends. It returns nil before
// the first Start.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Code returns the handover code of the current delivery.
func (t *Tracker) Code() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.code
}

func (t *Tracker) run(ctx context.Context, route Route, deliveryID string) {
	for _, m := range t.milestones {
		timer := time.NewTimer(m.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		location := route.At(float64(m.Progress) / 100)
		eta := t.now().Add(time.Duration(100-m.Progress) * etaPerPercent).UTC()
		err := t.pub.Push(domain.DeliveryUpdate{
			DeliveryID:    deliveryID,
			Status:        m.Status,
			Details:       m.Details,
			Progress:      m.Progress,
			RiderLocation: &location,
			ETA:           &eta,
		})
		if err != nil {
			t.logger.Warn("tracking stopped", zap.String("delivery_id", deliveryID), zap.Error(err))
			return
		}
	}
}

// DeliveryCode returns a six-character uppercase handover code.
func DeliveryCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:6])
}
