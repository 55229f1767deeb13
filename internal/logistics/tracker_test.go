package logistics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floroexpress/internal/domain"
)

// fakePublisher records pushed payloads.
type fakePublisher struct {
	mu      sync.Mutex
	updates []domain.DeliveryUpdate
	err     error
}

func (p *fakePublisher) Push(payload domain.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.updates = append(p.updates, payload.(domain.DeliveryUpdate))
	return nil
}

func (p *fakePublisher) snapshot() []domain.DeliveryUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.DeliveryUpdate(nil), p.updates...)
}

var testRoute = Route{
	From: domain.GeoPoint{Lat: 14.5995, Lng: 120.9842},
	To:   domain.GeoPoint{Lat: 14.6995, Lng: 121.0842},
}

func waitDone(t *testing.T, tracker *Tracker) {
	t.Helper()
	select {
	case <-tracker.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracking did not finish")
	}
}

func TestRouteAt(t *testing.T) {
	assert.Equal(t, testRoute.From, testRoute.At(0))
	assert.Equal(t, testRoute.To, testRoute.At(1))
	assert.Equal(t, testRoute.To, testRoute.At(3))

	mid := testRoute.At(0.5)
	assert.InDelta(t, 14.6495, mid.Lat, 1e-9)
	assert.InDelta(t, 121.0342, mid.Lng, 1e-9)
}

func TestTrackerPublishesMilestones(t *testing.T) {
	pub := &fakePublisher{}
	tracker := NewTracker(pub, Milestones(time.Millisecond, time.Millisecond), nil)

	code := tracker.Start(context.Background(), testRoute, "DEL1")
	waitDone(t, tracker)

	assert.Len(t, code, 6)
	assert.Equal(t, code, tracker.Code())

	updates := pub.snapshot()
	require.Len(t, updates, 4)
	wantProgress := []int{25, 50, 75, 90}
	wantStatus := []string{StatusAssigned, StatusPickedUp, StatusInTransit, StatusArriving}
	for i, update := range updates {
		assert.Equal(t, "DEL1", update.DeliveryID)
		assert.Equal(t, wantProgress[i], update.Progress)
		assert.Equal(t, wantStatus[i], update.Status)
		require.NotNil(t, update.RiderLocation)
		require.NotNil(t, update.ETA)
	}
	assert.True(t, updates[3].ETA.Before(*updates[0].ETA))
	assert.InDelta(t, testRoute.At(0.9).Lat, updates[3].RiderLocation.Lat, 1e-9)
}

func TestTrackerStopCancelsRemainingMilestones(t *testing.T) {
	pub := &fakePublisher{}
	tracker := NewTracker(pub, Milestones(time.Millisecond, time.Hour), nil)

	tracker.Start(context.Background(), testRoute, "DEL1")
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	tracker.Stop()
	waitDone(t, tracker)
	assert.Len(t, pub.snapshot(), 1)
}

func TestTrackerRestartReplacesDelivery(t *testing.T) {
	pub := &fakePublisher{}
	tracker := NewTracker(pub, Milestones(time.Hour, time.Hour), nil)

	tracker.Start(context.Background(), testRoute, "DEL1")
	first := tracker.Done()
	tracker.Start(context.Background(), testRoute, "DEL2")

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("first tracking was not cancelled")
	}
	tracker.Stop()
}

func TestTrackerStopsWhenPublisherRefuses(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel not connected")}
	tracker := NewTracker(pub, Milestones(time.Millisecond, time.Millisecond), nil)

	tracker.Start(context.Background(), testRoute, "DEL1")
	waitDone(t, tracker)
	assert.Empty(t, pub.snapshot())
}

func TestDeliveryCode(t *testing.T) {
	code := DeliveryCode()
	assert.Regexp(t, `^[0-9A-F]{6}$`, code)
}
