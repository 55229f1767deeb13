package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"floroexpress/internal/domain"
	"floroexpress/internal/printers"
)

// testSettings keeps every simulated delay short and silences the
// recurring publications.
func testSettings() domain.ChannelSettings {
	return domain.ChannelSettings{
		LoginAck:        5 * time.Millisecond,
		AIProcess:       20 * time.Millisecond,
		DeliveryAck:     5 * time.Millisecond,
		ShopSearch:      5 * time.Millisecond,
		QRCode:          5 * time.Millisecond,
		ShopConfirm:     5 * time.Millisecond,
		DeliveryConfirm: 5 * time.Millisecond,
		PrintDuration:   10 * time.Millisecond,
		RiderDispatch:   5 * time.Millisecond,
		StatusTick:      "@every 1h",
		PrintJobsTick:   "@every 1h",
		HistorySize:     100,
	}
}

// fakeShops returns a fixed search result.
type fakeShops struct {
	result printers.Result
	err    error
}

// Nearest returns the injected result.
func (f *fakeShops) Nearest(context.Context, *domain.GeoPoint, int) (printers.Result, error) {
	return f.result, f.err
}

// recorder collects every publication seen by a watcher.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) named(name domain.EventName) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, event := range r.events {
		if event.Name == name {
			out = append(out, event)
		}
	}
	return out
}

func (r *recorder) names() []domain.EventName {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventName, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Name)
	}
	return out
}

// newTestChannel returns a connected channel and a recorder watching it.
func newTestChannel(t *testing.T, shops ShopFinder) (*Channel, *recorder) {
	t.Helper()
	ch := New(testSettings(), shops, nil)
	rec := &recorder{}
	ch.Watch(rec.handle)
	if err := ch.Connect(domain.Session{UserID: "u-1", Role: domain.RoleUser}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(ch.Disconnect)
	return ch, rec
}

// waitForEvents polls until at least n events of name were published.
func waitForEvents(t *testing.T, rec *recorder, name domain.EventName, n int) []Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := rec.named(name); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s events, saw %v", n, name, rec.names())
	return nil
}

// TestEmitWhileDisconnected checks requests are refused without a connection.
func TestEmitWhileDisconnected(t *testing.T) {
	ch := New(testSettings(), nil, nil)
	if _, err := ch.Emit(domain.DocumentUploaded{DocumentID: "d1"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("emit error = %v, want %v", err, ErrNotConnected)
	}
	if err := ch.Push(domain.ErrorMessage{Message: "x"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("push error = %v, want %v", err, ErrNotConnected)
	}
	if got := ch.Since(0); len(got) != 0 {
		t.Fatalf("history = %+v, want empty", got)
	}
}

// TestConnectPublishesLoginAndUsers checks the connect handshake.
func TestConnectPublishesLoginAndUsers(t *testing.T) {
	ch, rec := newTestChannel(t, nil)

	logins := rec.named(domain.EventLogin)
	if len(logins) != 1 {
		t.Fatalf("login events = %d, want 1", len(logins))
	}
	login := logins[0].Payload.(domain.Login)
	if login.UserID != "u-1" || login.Role != domain.RoleUser {
		t.Fatalf("login payload = %+v", login)
	}

	users := waitForEvents(t, rec, domain.EventUsersUpdate, 1)
	if got := len(users[0].Payload.(domain.UsersUpdate).Users); got != 3 {
		t.Fatalf("users = %d, want 3", got)
	}

	session, ok := ch.Session()
	if !ok || session.UserID != "u-1" {
		t.Fatalf("session = %+v, connected = %v", session, ok)
	}
	if err := ch.Connect(session); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second connect error = %v, want %v", err, ErrAlreadyConnected)
	}
}

// TestConnectRejectsInvalidSchedule checks schedule validation.
func TestConnectRejectsInvalidSchedule(t *testing.T) {
	settings := testSettings()
	settings.StatusTick = "every five seconds"
	ch := New(settings, nil, nil)

	if err := ch.Connect(domain.Session{UserID: "u", Role: domain.RoleUser}); err == nil {
		t.Fatal("expected schedule error")
	}
	if ch.Connected() {
		t.Fatal("channel should stay disconnected")
	}
}

// TestHandlersRunInRegistrationOrder checks delivery order for one name.
func TestHandlersRunInRegistrationOrder(t *testing.T) {
	ch, _ := newTestChannel(t, nil)

	var order []int
	ch.On(domain.EventErrorMessage, func(Event) { order = append(order, 1) })
	ch.On(domain.EventErrorMessage, func(Event) { order = append(order, 2) })
	ch.On(domain.EventErrorMessage, func(Event) { order = append(order, 3) })

	if err := ch.Push(domain.ErrorMessage{Message: "boom"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}
}

// TestOnceAndUnsubscribe checks one-shot and removed handlers.
func TestOnceAndUnsubscribe(t *testing.T) {
	ch, _ := newTestChannel(t, nil)

	onceCalls, persistentCalls := 0, 0
	ch.Once(domain.EventErrorMessage, func(Event) { onceCalls++ })
	sub := ch.On(domain.EventErrorMessage, func(Event) { persistentCalls++ })

	_ = ch.Push(domain.ErrorMessage{Message: "1"})
	_ = ch.Push(domain.ErrorMessage{Message: "2"})
	sub.Unsubscribe()
	sub.Unsubscribe()
	_ = ch.Push(domain.ErrorMessage{Message: "3"})

	if onceCalls != 1 {
		t.Fatalf("once calls = %d, want 1", onceCalls)
	}
	if persistentCalls != 2 {
		t.Fatalf("persistent calls = %d, want 2", persistentCalls)
	}
}

// TestEmitPublishesRequestToSameNameHandlers checks request echo.
func TestEmitPublishesRequestToSameNameHandlers(t *testing.T) {
	ch, _ := newTestChannel(t, nil)

	var seen domain.DeliveryDetailsSubmitted
	ch.On(domain.EventDeliveryDetailsSubmitted, func(e Event) {
		seen = e.Payload.(domain.DeliveryDetailsSubmitted)
	})

	if _, err := ch.Emit(domain.DeliveryDetailsSubmitted{Details: domain.DeliveryDetails{Address: "Unit 1"}}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if seen.Details.Address != "Unit 1" {
		t.Fatalf("echo = %+v", seen)
	}
}

// TestDocumentUploadedYieldsOneAIProcessComplete checks the upload round trip.
func TestDocumentUploadedYieldsOneAIProcessComplete(t *testing.T) {
	ch, rec := newTestChannel(t, nil)

	task, err := ch.Emit(domain.DocumentUploaded{DocumentID: "doc-1", FileName: "report.pdf"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
	time.Sleep(30 * time.Millisecond)

	completes := rec.named(domain.EventAIProcessComplete)
	if len(completes) != 1 {
		t.Fatalf("ai_process_complete events = %d, want 1", len(completes))
	}
	payload := completes[0].Payload.(domain.AIProcessComplete)
	if len(payload.Improvements) == 0 {
		t.Fatal("expected non-empty improvements")
	}
	if payload.DocumentID != "doc-1" {
		t.Fatalf("document id = %q", payload.DocumentID)
	}

	created := waitForEvents(t, rec, domain.EventPrintJobCreated, 1)
	job := created[0].Payload.(domain.PrintJobCreated)
	if job.JobID == "" || job.FileName != "report.pdf" || job.UserID != "u-1" {
		t.Fatalf("print job = %+v", job)
	}
}

// TestDisconnectCancelsPendingResponses checks no publication after disconnect.
func TestDisconnectCancelsPendingResponses(t *testing.T) {
	ch, rec := newTestChannel(t, nil)

	task, err := ch.Emit(domain.DocumentUploaded{DocumentID: "doc-1", FileName: "a.txt"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	ch.On(domain.EventAIProcessComplete, func(Event) { t.Error("handler survived disconnect") })
	ch.Disconnect()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task was not cancelled")
	}
	time.Sleep(40 * time.Millisecond)

	if got := rec.named(domain.EventAIProcessComplete); len(got) != 0 {
		t.Fatalf("published after disconnect: %+v", got)
	}
	if _, ok := ch.Session(); ok {
		t.Fatal("identity should be cleared")
	}
}

// TestTaskCancelStopsChain checks explicit cancellation of one response.
func TestTaskCancelStopsChain(t *testing.T) {
	ch, rec := newTestChannel(t, nil)

	task, err := ch.Emit(domain.DocumentUploaded{DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	task.Cancel()
	<-task.Done()
	time.Sleep(40 * time.Millisecond)

	if got := rec.named(domain.EventAIProcessComplete); len(got) != 0 {
		t.Fatalf("cancelled task published: %+v", got)
	}
	if !ch.Connected() {
		t.Fatal("cancel must not disconnect")
	}
}

// TestScopeCloseCancelsTasks checks screen-lifetime cleanup.
func TestScopeCloseCancelsTasks(t *testing.T) {
	ch, rec := newTestChannel(t, nil)
	scope := ch.NewScope()

	task, err := scope.Emit(domain.DeliveryDetailsSubmitted{})
	if err != nil {
		t.Fatalf("scope emit: %v", err)
	}
	scope.Close()
	<-task.Done()
	time.Sleep(20 * time.Millisecond)

	if got := rec.named(domain.EventDeliveryDetailsConfirmed); len(got) != 0 {
		t.Fatalf("scope task published: %+v", got)
	}
	if _, err := scope.Emit(domain.DeliveryDetailsSubmitted{}); !errors.Is(err, ErrScopeClosed) {
		t.Fatalf("emit after close = %v, want %v", err, ErrScopeClosed)
	}
}

// TestFindPrinterShopPublishesShopThenQRCode checks the shop search chain.
func TestFindPrinterShopPublishesShopThenQRCode(t *testing.T) {
	shop := domain.PrinterShop{ID: "PS001", Name: "EasyPrint Manila Branch"}
	ch, rec := newTestChannel(t, &fakeShops{result: printers.Result{
		Matches: []printers.Match{{Shop: shop, DistanceKm: 1.5}},
	}})

	if _, err := ch.Emit(domain.FindPrinterShop{UserID: "u-1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	found := waitForEvents(t, rec, domain.EventPrinterShopFound, 1)
	payload := found[0].Payload.(domain.PrinterShopFound)
	if payload.Shop.ID != "PS001" || payload.DistanceKm != 1.5 {
		t.Fatalf("shop found = %+v", payload)
	}
	qr := waitForEvents(t, rec, domain.EventQRCodeGenerated, 1)
	if qr[0].Seq <= found[0].Seq {
		t.Fatal("qr code must follow the shop")
	}
	if qr[0].Payload.(domain.QRCodeGenerated).QRCode == "" {
		t.Fatal("expected qr code")
	}
}

// TestFindPrinterShopWithoutShopsPublishesError checks the empty catalog path.
func TestFindPrinterShopWithoutShopsPublishesError(t *testing.T) {
	ch, rec := newTestChannel(t, &fakeShops{err: errors.New("catalog offline")})

	if _, err := ch.Emit(domain.FindPrinterShop{}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	waitForEvents(t, rec, domain.EventErrorMessage, 1)
	time.Sleep(20 * time.Millisecond)
	if got := rec.named(domain.EventQRCodeGenerated); len(got) != 0 {
		t.Fatalf("qr code published without a shop: %+v", got)
	}
}

// TestConfirmPrinterShopRunsPrintChain checks print and dispatch sequence.
func TestConfirmPrinterShopRunsPrintChain(t *testing.T) {
	ch, rec := newTestChannel(t, nil)

	if _, err := ch.Emit(domain.ConfirmPrinterShop{ShopID: "PS001", JobID: "JOB1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	waitForEvents(t, rec, domain.EventDeliveryUpdate, 1)

	statusUpdate := rec.named(domain.EventPrintJobStatusUpdate)
	if len(statusUpdate) != 1 {
		t.Fatalf("status updates = %d, want 1", len(statusUpdate))
	}
	confirmed := statusUpdate[0].Payload.(domain.PrintJobStatusUpdate)
	if confirmed.Status != domain.PrintStatusConfirmed || confirmed.ShopID != "PS001" || confirmed.EstimatedTime != ShopEstimatedTime {
		t.Fatalf("status update = %+v", confirmed)
	}

	updates := rec.named(domain.EventPrintJobUpdate)
	if len(updates) != 2 {
		t.Fatalf("print job updates = %d, want 2", len(updates))
	}
	if got := updates[0].Payload.(domain.PrintJobUpdate); got.Status != domain.PrintStatusPrinting || got.JobID != "JOB1" {
		t.Fatalf("first update = %+v", got)
	}
	if got := updates[1].Payload.(domain.PrintJobUpdate); got.Status != domain.PrintStatusCompleted || got.Progress != 100 {
		t.Fatalf("second update = %+v", got)
	}

	riders := rec.named(domain.EventRiderAssigned)
	if len(riders) != 1 || riders[0].Payload.(domain.RiderAssigned).RiderID != RiderID {
		t.Fatalf("rider events = %+v", riders)
	}
}

// TestStatusRequestsEchoSimulatedState checks status re-publication.
func TestStatusRequestsEchoSimulatedState(t *testing.T) {
	ch, rec := newTestChannel(t, nil)

	if _, err := ch.Emit(domain.DeliveryDetailsSubmitted{Details: domain.DeliveryDetails{DeliveryID: "DEL1"}}); err != nil {
		t.Fatalf("emit details: %v", err)
	}
	if _, err := ch.Emit(domain.PrintStatusRequest{UserID: "u-1"}); err != nil {
		t.Fatalf("emit print status: %v", err)
	}
	if _, err := ch.Emit(domain.DeliveryStatusRequest{UserID: "u-1"}); err != nil {
		t.Fatalf("emit delivery status: %v", err)
	}

	printUpdate := waitForEvents(t, rec, domain.EventPrintJobUpdate, 1)[0].Payload.(domain.PrintJobUpdate)
	if printUpdate.Status != domain.PrintStatusPending {
		t.Fatalf("print status = %q, want pending", printUpdate.Status)
	}
	delivery := waitForEvents(t, rec, domain.EventDeliveryUpdate, 1)[0].Payload.(domain.DeliveryUpdate)
	if delivery.Status != domain.DeliveryStatusPending || delivery.DeliveryID != "DEL1" {
		t.Fatalf("delivery update = %+v", delivery)
	}
}

// TestHandlerPanicIsContained checks one bad handler does not stop others.
func TestHandlerPanicIsContained(t *testing.T) {
	ch, _ := newTestChannel(t, nil)

	called := false
	ch.On(domain.EventErrorMessage, func(Event) { panic("bad handler") })
	ch.On(domain.EventErrorMessage, func(Event) { called = true })

	if err := ch.Push(domain.ErrorMessage{Message: "x"}); err != nil {
		t.Fatalf("push: %v", err)
	}
	if !called {
		t.Fatal("second handler was not called")
	}
}

// TestStatusTickPublishesWhileConnected checks the recurring heartbeat.
func TestStatusTickPublishesWhileConnected(t *testing.T) {
	settings := testSettings()
	settings.StatusTick = "@every 1s"
	ch := New(settings, nil, nil)
	rec := &recorder{}
	ch.Watch(rec.handle)
	if err := ch.Connect(domain.Session{UserID: "u", Role: domain.RolePrinter}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer ch.Disconnect()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && len(rec.named(domain.EventStatusUpdate)) == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	updates := rec.named(domain.EventStatusUpdate)
	if len(updates) == 0 {
		t.Fatal("expected a status_update")
	}
	if got := updates[0].Payload.(domain.StatusUpdate).Status; got != "Processing" {
		t.Fatalf("status = %q", got)
	}
}

// TestParseSchedule checks accepted schedule forms.
func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"@every 5s", "*/5 * * * *", "@hourly"} {
		if _, err := ParseSchedule(spec); err != nil {
			t.Fatalf("ParseSchedule(%q) error = %v", spec, err)
		}
	}
	for _, spec := range []string{"", "soon"} {
		if _, err := ParseSchedule(spec); err == nil {
			t.Fatalf("ParseSchedule(%q) expected error", spec)
		}
	}
}
