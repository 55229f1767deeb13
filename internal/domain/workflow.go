package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Step is one screen of the print-and-deliver journey.
type Step string

const (
	StepUpload    Step = "upload"
	StepAI        Step = "ai"
	StepDelivery  Step = "delivery"
	StepPrinter   Step = "printer"
	StepStatus    Step = "status"
	StepLogistics Step = "logistics"
	StepComplete  Step = "complete"
)

// Steps lists every step in journey order.
var Steps = []Step{
	StepUpload,
	StepAI,
	StepDelivery,
	StepPrinter,
	StepStatus,
	StepLogistics,
	StepComplete,
}

// Index returns the position of s in Steps, or -1.
func (s Step) Index() int {
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}

// Print and delivery status values shared by the channel and the workflow.
const (
	PrintStatusPending   = "pending"
	PrintStatusConfirmed = "confirmed"
	PrintStatusPrinting  = "printing"
	PrintStatusCompleted = "printing_completed"

	DeliveryStatusPending   = "pending"
	DeliveryStatusReady     = "ready"
	DeliveryStatusCompleted = "completed"
)

// FileType is the analysis category of an uploaded document.
type FileType string

const (
	FileTypeText      FileType = "Text Document"
	FileTypePicture   FileType = "Picture"
	FileTypeBlueprint FileType = "Blueprint"
	FileTypeScanned   FileType = "Scanned Document"
	FileTypeSecure    FileType = "Secure Document"
)

// DocumentDescriptor describes one uploaded file.
type DocumentDescriptor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	LastModified time.Time `json:"lastModified"`
	Path         string    `json:"path,omitempty"`
}

// Improvements accepts either a single statement or a list in JSON.
type Improvements []string

// UnmarshalJSON decodes a string or an array of strings.
func (i *Improvements) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*i = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "\"") {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		single = strings.TrimSpace(single)
		if single == "" {
			*i = nil
			return nil
		}
		*i = Improvements{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("improvements: %w", err)
	}
	*i = Improvements(list)
	return nil
}

// AnalysisResult is the normalized reply of the Analysis Client.
type AnalysisResult struct {
	FileType     FileType          `json:"fileType"`
	Analysis     string            `json:"analysis"`
	Improvements Improvements      `json:"improvements"`
	Settings     map[string]string `json:"settings"`
	Fallback     bool              `json:"fallback"`
}

// DeliveryDetails is captured on the delivery step.
type DeliveryDetails struct {
	Address            string `json:"address"`
	AlternateRecipient string `json:"alternateRecipient,omitempty"`
	DeliveryID         string `json:"deliveryId,omitempty"`
}

// StatusSnapshot is the latest merged view of tracking fields.
type StatusSnapshot struct {
	Status         string     `json:"status,omitempty"`
	Details        string     `json:"details,omitempty"`
	Progress       int        `json:"progress"`
	PrintStatus    string     `json:"printStatus,omitempty"`
	DeliveryStatus string     `json:"deliveryStatus,omitempty"`
	RiderID        string     `json:"riderId,omitempty"`
	RiderLocation  *GeoPoint  `json:"riderLocation,omitempty"`
	ETA            *time.Time `json:"eta,omitempty"`
}

// StatusPatch carries only the fields an update sets.
type StatusPatch struct {
	Status         *string
	Details        *string
	Progress       *int
	PrintStatus    *string
	DeliveryStatus *string
	RiderID        *string
	RiderLocation  *GeoPoint
	ETA            *time.Time
}

// Merge returns a copy of s with every field set in p overwritten.
func (s StatusSnapshot) Merge(p StatusPatch) StatusSnapshot {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Details != nil {
		s.Details = *p.Details
	}
	if p.Progress != nil {
		s.Progress = *p.Progress
	}
	if p.PrintStatus != nil {
		s.PrintStatus = *p.PrintStatus
	}
	if p.DeliveryStatus != nil {
		s.DeliveryStatus = *p.DeliveryStatus
	}
	if p.RiderID != nil {
		s.RiderID = *p.RiderID
	}
	if p.RiderLocation != nil {
		loc := *p.RiderLocation
		s.RiderLocation = &loc
	}
	if p.ETA != nil {
		eta := *p.ETA
		s.ETA = &eta
	}
	return s
}

// PrintJob tracks the job created for the current document.
type PrintJob struct {
	JobID         string    `json:"jobId,omitempty"`
	FileName      string    `json:"fileName,omitempty"`
	ShopID        string    `json:"shopId,omitempty"`
	Status        string    `json:"status,omitempty"`
	Progress      int       `json:"progress"`
	EstimatedTime string    `json:"estimatedTime,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ShopSelection records the printer step's outcome.
type ShopSelection struct {
	SelectedShopID string       `json:"selectedShopId,omitempty"`
	Shop           *PrinterShop `json:"shop,omitempty"`
	Suggested      *PrinterShop `json:"suggested,omitempty"`
	DistanceKm     float64      `json:"distanceKm,omitempty"`
	QRCode         string       `json:"qrCode,omitempty"`
}

// ConfirmationData is what the recipient provides at handover.
// At least one verification method must be present.
type ConfirmationData struct {
	DeliveryID string    `json:"deliveryId,omitempty"`
	QRScanned  bool      `json:"qrScanned"`
	Signature  string    `json:"signature,omitempty"`
	PIN        string    `json:"pin,omitempty"`
	Rating     int       `json:"rating,omitempty"`
	Response   string    `json:"response,omitempty"`
	Confirmed  bool      `json:"confirmed"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Verified reports whether a QR scan, a signature or a 6-digit PIN is present.
func (c ConfirmationData) Verified() bool {
	if c.QRScanned || strings.TrimSpace(c.Signature) != "" {
		return true
	}
	if len(c.PIN) != 6 {
		return false
	}
	for _, r := range c.PIN {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// WorkflowState is everything the orchestrator owns for one journey.
type WorkflowState struct {
	Authenticated bool                `json:"authenticated"`
	Session       *Session            `json:"session,omitempty"`
	CurrentStep   Step                `json:"currentStep"`
	Document      *DocumentDescriptor `json:"document,omitempty"`
	Analysis      *AnalysisResult     `json:"analysis,omitempty"`
	Improvements  []string            `json:"improvements,omitempty"`
	Analyzing     bool                `json:"analyzing"`
	Delivery      *DeliveryDetails    `json:"delivery,omitempty"`
	PrinterShop   *ShopSelection      `json:"printerShop,omitempty"`
	Status        *StatusSnapshot     `json:"status,omitempty"`
	PrintJob      *PrintJob           `json:"printJob,omitempty"`
	Confirmation  *ConfirmationData   `json:"confirmation,omitempty"`
	Error         string              `json:"error,omitempty"`
	Revision      int64               `json:"revision"`
}

// Snapshot returns the status snapshot, or a zero one.
func (s WorkflowState) Snapshot() StatusSnapshot {
	if s.Status == nil {
		return StatusSnapshot{}
	}
	return *s.Status
}
