package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"floroexpress/internal/domain"
	"floroexpress/internal/logsink"
)

// Password is the fixed demo credential.
const Password = "demo123"

// Status texts shown on the tracking screens.
const (
	StatusAIProcessing     = "AI Processing"
	StatusPrinting         = "Printing in Progress"
	StatusReadyForDelivery = "Ready for Delivery"
	StatusRiderAssigned    = "Rider assigned"
	StatusDelivered        = "Delivered"

	incorrectPassword = "Incorrect password"
	initialPrintETA   = time.Hour
)

// DefaultRiderLocation is where a rider waits before pickup.
var DefaultRiderLocation = domain.GeoPoint{Lat: 14.5995, Lng: 120.9842}

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrInvalidTransition    = errors.New("invalid workflow transition")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnknownRole          = errors.New("unknown role")
	ErrAddressRequired      = errors.New("delivery address is required")
	ErrShopRequired         = errors.New("printer shop is required")
	ErrVerificationRequired = errors.New("confirmation needs a QR scan, a signature or a 6-digit PIN")
)

// Reduce applies action to state and returns the next state with the side
// effects to run. On error the returned state is the input state and no
// effect is requested. Reduce never mutates values reachable from state.
func Reduce(state domain.WorkflowState, action Action) (domain.WorkflowState, []Effect, error) {
	switch a := action.(type) {
	case SetError:
		next := state
		next.Error = a.Message
		return next, nil, nil
	case ClearError:
		next := state
		next.Error = ""
		return next, nil, nil
	case Login:
		return login(state, a)
	}

	if !state.Authenticated {
		if _, ok := action.(Received); ok {
			return state, nil, nil
		}
		return state, nil, ErrNotAuthenticated
	}

	switch a := action.(type) {
	case Logout:
		return logout(state)
	case Upload:
		return upload(state, a)
	case SkipUpload:
		return move(state, domain.StepUpload, domain.StepDelivery, "skip_upload")
	case AIComplete:
		return aiComplete(state, a)
	case AIContinue:
		return move(state, domain.StepAI, domain.StepDelivery, "ai_continue")
	case DeliverySubmit:
		return deliverySubmit(state, a)
	case SkipDelivery:
		return move(state, domain.StepDelivery, domain.StepPrinter, "skip_delivery")
	case PrinterSelect:
		return printerSelect(state, a)
	case StatusCheck:
		return statusCheck(state)
	case DeliveryReady:
		return deliveryReady(state)
	case DeliveryComplete:
		return deliveryComplete(state)
	case ConfirmDelivery:
		return confirmDelivery(state, a)
	case Previous:
		return previous(state)
	case StartNewJob:
		return startNewJob(state)
	case Received:
		return received(state, a.Payload)
	default:
		return state, nil, fmt.Errorf("unsupported action %T", action)
	}
}

func login(state domain.WorkflowState, a Login) (domain.WorkflowState, []Effect, error) {
	if state.Authenticated {
		return state, nil, ErrInvalidTransition
	}
	next := state
	if a.Password != Password {
		next.Error = incorrectPassword
		return next, []Effect{logEffect(logsink.LevelWarn, "login", "Login failed", nil)}, nil
	}

	role := a.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return state, nil, fmt.Errorf("%w: %q", ErrUnknownRole, a.Role)
	}

	session := domain.Session{UserID: a.UserID, Role: role, StartedAt: a.Now}
	next.Authenticated = true
	next.Session = &session
	next.CurrentStep = domain.StepUpload
	return next, []Effect{
		Connect{Session: session},
		logEffect(logsink.LevelInfo, "login", "User logged in", map[string]string{
			logsink.MetaUserID: a.UserID,
			"role":             string(role),
		}),
	}, nil
}

func logout(state domain.WorkflowState) (domain.WorkflowState, []Effect, error) {
	userID := state.Session.UserID
	return domain.WorkflowState{}, []Effect{
		CancelAnalysis{},
		CancelRequests{},
		StopTracking{},
		Disconnect{},
		logEffect(logsink.LevelInfo, "logout", "User logged out", map[string]string{logsink.MetaUserID: userID}),
	}, nil
}

func upload(state domain.WorkflowState, a Upload) (domain.WorkflowState, []Effect, error) {
	if state.CurrentStep != domain.StepUpload && state.CurrentStep != domain.StepAI {
		return state, nil, ErrInvalidTransition
	}

	doc := a.Document
	next := state
	next.Document = &doc
	next.Analysis = nil
	next.Improvements = nil
	next.Analyzing = true
	next.CurrentStep = domain.StepAI
	next.Status = patched(state, domain.StatusPatch{Status: ptr(StatusAIProcessing), Progress: ptr(0)})

	return next, []Effect{
		CancelAnalysis{},
		CancelRequests{},
		Analyze{Document: doc},
		Emit{Payload: domain.DocumentUploaded{DocumentID: doc.ID, FileName: doc.Name}},
		logEffect(logsink.LevelInfo, "upload", "Document uploaded", map[string]string{
			"documentId": doc.ID,
			"fileName":   doc.Name,
			"fileType":   doc.Type,
		}),
	}, nil
}

func aiComplete(state domain.WorkflowState, a AIComplete) (domain.WorkflowState, []Effect, error) {
	if state.Document == nil || state.Document.ID != a.DocumentID {
		return state, nil, nil
	}

	result := a.Result
	next := state
	next.Analysis = &result
	next.Analyzing = false

	level := logsink.LevelInfo
	message := "Document analysis completed"
	if result.Fallback {
		level = logsink.LevelWarn
		message = "Document analysis used fallback result"
	}
	return next, []Effect{logEffect(level, "analyze", message, map[string]string{
		"documentId": a.DocumentID,
		"fileType":   string(result.FileType),
	})}, nil
}

func deliverySubmit(state domain.WorkflowState, a DeliverySubmit) (domain.WorkflowState, []Effect, error) {
	if state.CurrentStep != domain.StepDelivery {
		return state, nil, ErrInvalidTransition
	}
	details := a.Details
	details.Address = strings.TrimSpace(details.Address)
	details.AlternateRecipient = strings.TrimSpace(details.AlternateRecipient)
	if details.Address == "" {
		return state, nil, ErrAddressRequired
	}

	next := state
	next.Delivery = &details
	next.CurrentStep = domain.StepPrinter
	return next, []Effect{
		Emit{Payload: domain.DeliveryDetailsSubmitted{Details: details}},
		logEffect(logsink.LevelInfo, "delivery_submit", "Delivery details submitted", nil),
	}, nil
}

func printerSelect(state domain.WorkflowState, a PrinterSelect) (domain.WorkflowState, []Effect, error) {
	if state.CurrentStep != domain.StepPrinter {
		return state, nil, ErrInvalidTransition
	}
	shopID := strings.TrimSpace(a.ShopID)
	if shopID == "" {
		return state, nil, ErrShopRequired
	}

	selection := domain.ShopSelection{}
	if state.PrinterShop != nil {
		selection = *state.PrinterShop
	}
	selection.SelectedShopID = shopID
	selection.Shop = nil
	if a.Shop != nil {
		shop := *a.Shop
		selection.Shop = &shop
	}

	job := domain.PrintJob{}
	if state.PrintJob != nil {
		job = *state.PrintJob
	}
	job.ShopID = shopID
	job.Status = domain.PrintStatusPending
	job.UpdatedAt = a.Now

	eta := a.Now.Add(initialPrintETA)
	rider := DefaultRiderLocation

	next := state
	next.PrinterShop = &selection
	next.PrintJob = &job
	next.Status = patched(state, domain.StatusPatch{
		Status:         ptr(StatusPrinting),
		Progress:       ptr(0),
		PrintStatus:    ptr(domain.PrintStatusPrinting),
		DeliveryStatus: ptr(domain.DeliveryStatusPending),
		RiderLocation:  &rider,
		ETA:            &eta,
	})
	next.CurrentStep = domain.StepStatus

	return next, []Effect{
		Emit{Payload: domain.ConfirmPrinterShop{ShopID: shopID, JobID: job.JobID}},
		logEffect(logsink.LevelInfo, "printer_select", "Printer shop selected", map[string]string{"shopId": shopID}),
	}, nil
}

func statusCheck(state domain.WorkflowState) (domain.WorkflowState, []Effect, error) {
	if state.CurrentStep != domain.StepStatus && state.CurrentStep != domain.StepLogistics {
		return state, nil, ErrInvalidTransition
	}
	userID := state.Session.UserID
	return state, []Effect{
		Emit{Payload: domain.PrintStatusRequest{UserID: userID}},
		Emit{Payload: domain.DeliveryStatusRequest{UserID: userID}},
	}, nil
}

func deliveryReady(state domain.WorkflowState) (domain.WorkflowState, []Effect, error) {
	switch state.CurrentStep {
	case domain.StepLogistics:
		return state, nil, nil
	case domain.StepStatus:
	default:
		return state, nil, ErrInvalidTransition
	}

	next := state
	next.CurrentStep = domain.StepLogistics
	next.Status = patched(state, domain.StatusPatch{
		Status:         ptr(StatusReadyForDelivery),
		DeliveryStatus: ptr(domain.DeliveryStatusReady),
	})

	deliveryID := ""
	if state.Delivery != nil {
		deliveryID = state.Delivery.DeliveryID
	}
	return next, []Effect{
		StartTracking{From: pickupPoint(state), DeliveryID: deliveryID},
		logEffect(logsink.LevelInfo, "delivery_ready", "Delivery handed to logistics", nil),
	}, nil
}

func deliveryComplete(state domain.WorkflowState) (domain.WorkflowState, []Effect, error) {
	if state.CurrentStep != domain.StepLogistics {
		return state, nil, ErrInvalidTransition
	}

	next := state
	next.CurrentStep = domain.StepComplete
	next.Status = patched(state, domain.StatusPatch{
		Status:         ptr(StatusDelivered),
		Progress:       ptr(100),
		DeliveryStatus: ptr(domain.DeliveryStatusCompleted),
	})
	return next, []Effect{
		StopTracking{},
		logEffect(logsink.LevelInfo, "delivery_complete", "Delivery completed", nil),
	}, nil
}

func confirmDelivery(state domain.WorkflowState, a ConfirmDelivery) (domain.WorkflowState, []Effect, error) {
	if state.CurrentStep != domain.StepComplete {
		return state, nil, ErrInvalidTransition
	}
	if !a.Confirmation.Verified() {
		return state, nil, ErrVerificationRequired
	}

	confirmation := a.Confirmation
	if confirmation.DeliveryID == "" && state.Delivery != nil {
		confirmation.DeliveryID = state.Delivery.DeliveryID
	}
	confirmation.ReceivedAt = a.Now

	next := state
	next.Confirmation = &confirmation
	return next, []Effect{
		Emit{Payload: domain.ConfirmDelivery{DeliveryID: confirmation.DeliveryID, Confirmation: confirmation}},
		logEffect(logsink.LevelInfo, "confirm_delivery", "Delivery confirmation submitted", map[string]string{
			"deliveryId": confirmation.DeliveryID,
		}),
	}, nil
}

func previous(state domain.WorkflowState) (domain.WorkflowState, []Effect, error) {
	// Going back is possible from ai up to printer selection.
	i := state.CurrentStep.Index()
	if i < domain.StepAI.Index() || i > domain.StepPrinter.Index() {
		return state, nil, ErrInvalidTransition
	}

	next := state
	next.CurrentStep = domain.Steps[i-1]
	var effects []Effect
	if state.CurrentStep == domain.StepAI && state.Analyzing {
		next.Analyzing = false
		effects = append(effects, CancelAnalysis{})
	}
	return next, effects, nil
}

func startNewJob(state domain.WorkflowState) (domain.WorkflowState, []Effect, error) {
	next := domain.WorkflowState{
		Authenticated: true,
		Session:       state.Session,
		CurrentStep:   domain.StepUpload,
		Error:         state.Error,
		Revision:      state.Revision,
	}
	return next, []Effect{
		CancelAnalysis{},
		CancelRequests{},
		StopTracking{},
		logEffect(logsink.LevelInfo, "start_new_job", "Started a new job", nil),
	}, nil
}

// received folds a channel payload into the state. Payloads that do not
// concern the current journey are ignored.
func received(state domain.WorkflowState, payload domain.Payload) (domain.WorkflowState, []Effect, error) {
	next := state
	switch p := payload.(type) {
	case domain.AIProcessComplete:
		if state.Document == nil || (p.DocumentID != "" && p.DocumentID != state.Document.ID) {
			return state, nil, nil
		}
		next.Improvements = append([]string(nil), p.Improvements...)
		if state.CurrentStep == domain.StepAI {
			next.CurrentStep = domain.StepDelivery
		}

	case domain.PrintJobCreated:
		next.PrintJob = &domain.PrintJob{
			JobID:    p.JobID,
			FileName: p.FileName,
			Status:   domain.PrintStatusPending,
		}

	case domain.PrintJobUpdate:
		return printUpdate(state, p)

	case domain.PrintJobsUpdate:
		for _, job := range p.Jobs {
			if state.PrintJob != nil && job.JobID == state.PrintJob.JobID {
				return printUpdate(state, job)
			}
		}
		return state, nil, nil

	case domain.PrintJobStatusUpdate:
		job := domain.PrintJob{}
		if state.PrintJob != nil {
			job = *state.PrintJob
		}
		job.ShopID = p.ShopID
		job.Status = p.Status
		job.EstimatedTime = p.EstimatedTime
		next.PrintJob = &job

	case domain.StatusUpdate:
		if p.Status == domain.PrintStatusCompleted {
			return deliveryReady(state)
		}
		if state.Status == nil {
			return state, nil, nil
		}
		next.Status = patched(state, domain.StatusPatch{Progress: ptr(p.Progress)})

	case domain.DeliveryUpdate:
		if p.DeliveryID != "" && state.Delivery != nil && state.Delivery.DeliveryID != "" && p.DeliveryID != state.Delivery.DeliveryID {
			return state, nil, nil
		}
		patch := domain.StatusPatch{DeliveryStatus: ptr(p.Status), RiderLocation: p.RiderLocation, ETA: p.ETA}
		if p.Details != "" {
			patch.Details = ptr(p.Details)
		}
		if p.Progress > 0 {
			patch.Progress = ptr(p.Progress)
		}
		next.Status = patched(state, patch)

	case domain.RiderAssigned:
		next.Status = patched(state, domain.StatusPatch{
			RiderID: ptr(p.RiderID),
			Status:  ptr(StatusRiderAssigned),
		})

	case domain.DeliveryDetailsConfirmed:
		details := domain.DeliveryDetails{}
		if state.Delivery != nil {
			details = *state.Delivery
		}
		details.DeliveryID = p.DeliveryID
		next.Delivery = &details

	case domain.PrinterShopFound:
		selection := domain.ShopSelection{}
		if state.PrinterShop != nil {
			selection = *state.PrinterShop
		}
		shop := p.Shop
		selection.Suggested = &shop
		selection.DistanceKm = p.DistanceKm
		next.PrinterShop = &selection

	case domain.QRCodeGenerated:
		selection := domain.ShopSelection{}
		if state.PrinterShop != nil {
			selection = *state.PrinterShop
		}
		selection.QRCode = p.QRCode
		next.PrinterShop = &selection

	case domain.DeliveryConfirmationResponse:
		if state.Confirmation == nil {
			return state, nil, nil
		}
		confirmation := *state.Confirmation
		confirmation.Confirmed = p.Success
		next.Confirmation = &confirmation
		next.Status = patched(state, domain.StatusPatch{Details: ptr(p.Message)})

	case domain.ErrorMessage:
		next.Error = p.Message
		return next, []Effect{logEffect(logsink.LevelError, "channel_error", p.Message, nil)}, nil

	default:
		return state, nil, nil
	}
	return next, nil, nil
}

// printUpdate merges a job update; completion at the status step hands the
// job over to logistics.
func printUpdate(state domain.WorkflowState, p domain.PrintJobUpdate) (domain.WorkflowState, []Effect, error) {
	next := state
	if state.PrintJob != nil {
		if p.JobID != "" && state.PrintJob.JobID != "" && p.JobID != state.PrintJob.JobID {
			return state, nil, nil
		}
		job := *state.PrintJob
		job.Status = p.Status
		job.Progress = p.Progress
		next.PrintJob = &job
	}

	patch := domain.StatusPatch{PrintStatus: ptr(p.Status), Progress: ptr(p.Progress)}
	if p.EstimatedCompletion != nil {
		patch.ETA = p.EstimatedCompletion
	}
	next.Status = patched(state, patch)

	if p.Status == domain.PrintStatusCompleted && state.CurrentStep == domain.StepStatus {
		return deliveryReady(next)
	}
	return next, nil, nil
}

// move is a plain transition between two adjacent steps.
func move(state domain.WorkflowState, from, to domain.Step, action string) (domain.WorkflowState, []Effect, error) {
	if state.CurrentStep != from {
		return state, nil, ErrInvalidTransition
	}
	next := state
	next.CurrentStep = to
	return next, []Effect{logEffect(logsink.LevelDebug, action, fmt.Sprintf("Moved from %s to %s", from, to), nil)}, nil
}

// pickupPoint is where the rider collects the print.
func pickupPoint(state domain.WorkflowState) domain.GeoPoint {
	if state.PrinterShop != nil && state.PrinterShop.Shop != nil {
		return state.PrinterShop.Shop.Location
	}
	if state.Status != nil && state.Status.RiderLocation != nil {
		return *state.Status.RiderLocation
	}
	return DefaultRiderLocation
}

func patched(state domain.WorkflowState, p domain.StatusPatch) *domain.StatusSnapshot {
	snapshot := state.Snapshot().Merge(p)
	return &snapshot
}

func logEffect(level logsink.Level, action, message string, metadata map[string]string) Log {
	return Log{Level: level, Message: message, Action: action, Metadata: metadata}
}

func ptr[T any](v T) *T {
	return &v
}
