package workflow

import (
	"time"

	"floroexpress/internal/domain"
)

// Action is one input to Reduce: a user action or a received channel event.
type Action interface {
	action()
}

// Login checks the password and opens a session. UserID and Now are filled
// in by the Machine when empty.
type Login struct {
	Password string
	Role     domain.Role
	UserID   string
	Now      time.Time
}

// Logout closes the session and discards the journey.
type Logout struct{}

// Upload stores a new document and starts its analysis.
type Upload struct {
	Document domain.DocumentDescriptor
}

// SkipUpload jumps from the upload step straight to delivery details.
type SkipUpload struct{}

// AIComplete stores the local analysis of a document.
type AIComplete struct {
	DocumentID string
	Result     domain.AnalysisResult
}

// AIContinue leaves the AI step manually.
type AIContinue struct{}

// DeliverySubmit stores the recipient details.
type DeliverySubmit struct {
	Details domain.DeliveryDetails
}

// SkipDelivery leaves the delivery step without details.
type SkipDelivery struct{}

// PrinterSelect books a shop. Shop is nil when the id is not in the catalog.
type PrinterSelect struct {
	ShopID string
	Shop   *domain.PrinterShop
	Now    time.Time
}

// StatusCheck asks the channel to re-publish print and delivery status.
type StatusCheck struct{}

// DeliveryReady hands the printed job over to logistics.
type DeliveryReady struct{}

// DeliveryComplete marks the delivery as handed over.
type DeliveryComplete struct{}

// ConfirmDelivery records the recipient's confirmation.
type ConfirmDelivery struct {
	Confirmation domain.ConfirmationData
	Now          time.Time
}

// Previous goes back one step on the editable part of the journey.
type Previous struct{}

// StartNewJob discards the job data and returns to upload.
type StartNewJob struct{}

// SetError shows a global error without moving the workflow.
type SetError struct {
	Message string
}

// ClearError dismisses the global error.
type ClearError struct{}

// Received applies a payload published on the channel.
type Received struct {
	Payload domain.Payload
}

func (Login) action()            {}
func (Logout) action()           {}
func (Upload) action()           {}
func (SkipUpload) action()       {}
func (AIComplete) action()       {}
func (AIContinue) action()       {}
func (DeliverySubmit) action()   {}
func (SkipDelivery) action()     {}
func (PrinterSelect) action()    {}
func (StatusCheck) action()      {}
func (DeliveryReady) action()    {}
func (DeliveryComplete) action() {}
func (ConfirmDelivery) action()  {}
func (Previous) action()         {}
func (StartNewJob) action()      {}
func (SetError) action()         {}
func (ClearError) action()       {}
func (Received) action()         {}
