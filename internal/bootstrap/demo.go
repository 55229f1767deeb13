package bootstrap

import (
	"context"
	"fmt"
	"time"

	"floroexpress/internal/domain"
	"floroexpress/internal/logistics"
	"floroexpress/internal/workflow"
)

// DemoStep is one milestone of a scripted journey.
type DemoStep struct {
	Name   string               `json:"name"`
	Detail string               `json:"detail,omitempty"`
	State  domain.WorkflowState `json:"state"`
}

// DemoDocument is the descriptor uploaded by RunDemo.
var DemoDocument = domain.DocumentDescriptor{
	Name: "quarterly_report.pdf",
	Size: 245760,
	Type: "application/pdf",
}

// DemoAddress is where RunDemo sends the print.
const DemoAddress = "Unit 1205, Ayala Tower One, Makati City"

// DemoSettings shortens every simulated delay of base so a full journey
// finishes within seconds.
func DemoSettings(base domain.Settings) domain.Settings {
	ch := base.Channel
	ch.LoginAck = 50 * time.Millisecond
	ch.AIProcess = 300 * time.Millisecond
	ch.DeliveryAck = 100 * time.Millisecond
	ch.ShopSearch = 200 * time.Millisecond
	ch.QRCode = 100 * time.Millisecond
	ch.ShopConfirm = 200 * time.Millisecond
	ch.DeliveryConfirm = 200 * time.Millisecond
	ch.PrintDuration = time.Second
	ch.RiderDispatch = 200 * time.Millisecond
	ch.RouteLeg = 250 * time.Millisecond
	ch.StatusTick = "@every 1s"
	ch.PrintJobsTick = "@every 1s"
	base.Channel = ch
	return base
}

// RunDemo walks one job from login to confirmed handover, calling report
// after every milestone. It stops at the first failure or when ctx ends.
func (a *App) RunDemo(ctx context.Context, report func(DemoStep)) error {
	if report == nil {
		report = func(DemoStep) {}
	}
	step := func(name, detail string, state domain.WorkflowState) {
		report(DemoStep{Name: name, Detail: detail, State: state})
	}

	state, err := a.Login(workflow.Password, string(domain.RoleUser))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	step("login", state.Session.UserID, state)

	doc := DemoDocument
	doc.LastModified = time.Now().UTC()
	if state, err = a.Machine.Dispatch(workflow.Upload{Document: doc}); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	step("upload", doc.Name, state)

	state, err = a.waitFor(ctx, "document analysis", func(s domain.WorkflowState) bool {
		return s.CurrentStep == domain.StepDelivery
	})
	if err != nil {
		return err
	}
	step("analysis", fmt.Sprintf("%d improvements", len(state.Improvements)), state)

	if state, err = a.SubmitDelivery(domain.DeliveryDetails{Address: DemoAddress}); err != nil {
		return fmt.Errorf("submit delivery: %w", err)
	}
	step("delivery", DemoAddress, state)

	result, err := a.FindPrinterShops(nil)
	if err != nil {
		return err
	}
	if len(result.Matches) > 0 {
		nearest := result.Matches[0]
		step("shops", fmt.Sprintf("nearest %s at %.1f km", nearest.Shop.Name, nearest.DistanceKm), state)
	}

	state, err = a.waitFor(ctx, "shop suggestion", func(s domain.WorkflowState) bool {
		return s.PrinterShop != nil && s.PrinterShop.Suggested != nil
	})
	if err != nil {
		return err
	}
	suggested := state.PrinterShop.Suggested

	if state, err = a.SelectPrinterShop(suggested.ID); err != nil {
		return fmt.Errorf("select printer shop: %w", err)
	}
	step("printer", suggested.Name, state)

	state, err = a.waitFor(ctx, "printing", func(s domain.WorkflowState) bool {
		return s.CurrentStep == domain.StepLogistics
	})
	if err != nil {
		return err
	}
	step("printed", state.Snapshot().PrintStatus, state)

	state, err = a.waitFor(ctx, "rider arrival", func(s domain.WorkflowState) bool {
		return s.Snapshot().DeliveryStatus == logistics.StatusArriving
	})
	if err != nil {
		return err
	}
	step("arriving", state.Snapshot().Details, state)

	if state, err = a.CompleteDelivery(); err != nil {
		return fmt.Errorf("complete delivery: %w", err)
	}
	step("delivered", a.DeliveryCode(), state)

	if _, err = a.ConfirmDelivery(domain.ConfirmationData{QRScanned: true, Rating: 5}); err != nil {
		return fmt.Errorf("confirm delivery: %w", err)
	}
	state, err = a.waitFor(ctx, "delivery confirmation", func(s domain.WorkflowState) bool {
		return s.Confirmation != nil && s.Confirmation.Confirmed
	})
	if err != nil {
		return err
	}
	step("confirmed", state.Confirmation.Response, state)

	if state, err = a.Logout(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	step("logout", "", state)
	return nil
}

// waitFor blocks until cond holds for the workflow state. A global error
// message ends the wait.
func (a *App) waitFor(ctx context.Context, what string, cond func(domain.WorkflowState) bool) (domain.WorkflowState, error) {
	updates := make(chan domain.WorkflowState, 1)
	unsubscribe := a.Machine.Subscribe(func(s domain.WorkflowState) {
		select {
		case updates <- s:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	state := a.Machine.State()
	for {
		if cond(state) {
			return state, nil
		}
		if state.Error != "" {
			return state, fmt.Errorf("waiting for %s: %s", what, state.Error)
		}
		select {
		case <-ctx.Done():
			return state, fmt.Errorf("waiting for %s: %w", what, ctx.Err())
		case state = <-updates:
		}
	}
}
