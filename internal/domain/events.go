package domain

import "time"

// EventName names one message kind on the simulated channel.
type EventName string

const (
	EventLogin                        EventName = "login"
	EventUsersUpdate                  EventName = "users_update"
	EventDocumentUploaded             EventName = "document_uploaded"
	EventAIProcessComplete            EventName = "ai_process_complete"
	EventPrintJobCreated              EventName = "print_job_created"
	EventPrintJobUpdate               EventName = "print_job_update"
	EventPrintJobsUpdate              EventName = "print_jobs_update"
	EventStatusUpdate                 EventName = "status_update"
	EventDeliveryUpdate               EventName = "delivery_update"
	EventRiderAssigned                EventName = "rider_assigned"
	EventDeliveryDetailsSubmitted     EventName = "delivery_details_submitted"
	EventDeliveryDetailsConfirmed     EventName = "delivery_details_confirmed"
	EventFindPrinterShop              EventName = "find_printer_shop"
	EventPrinterShopFound             EventName = "printer_shop_found"
	EventQRCodeGenerated              EventName = "qr_code_generated"
	EventConfirmPrinterShop           EventName = "confirm_printer_shop"
	EventPrintJobStatusUpdate         EventName = "print_job_status_update"
	EventConfirmDelivery              EventName = "confirm_delivery"
	EventDeliveryConfirmationResponse EventName = "delivery_confirmation_response"
	EventErrorMessage                 EventName = "error_message"
	EventRequestPrintStatus           EventName = "request_print_status"
	EventRequestDeliveryStatus        EventName = "request_delivery_status"
)

// Payload is implemented by every channel message body. The concrete type
// determines the event name.
type Payload interface {
	EventName() EventName
}

// Login announces a connected identity.
type Login struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// UserSummary is one entry of a users_update broadcast.
type UserSummary struct {
	ID   int    `json:"id"`
	Role string `json:"role"`
}

// UsersUpdate lists the participants known to the server.
type UsersUpdate struct {
	Users []UserSummary `json:"users"`
}

// DocumentUploaded requests AI processing for a document.
type DocumentUploaded struct {
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
}

// AIProcessComplete carries server-side improvements for a document.
type AIProcessComplete struct {
	DocumentID   string   `json:"documentId,omitempty"`
	Improvements []string `json:"improvements"`
}

// PrintJobCreated announces the job allocated for an upload.
type PrintJobCreated struct {
	JobID    string `json:"jobId"`
	UserID   string `json:"userId"`
	FileName string `json:"fileName"`
}

// PrintJobUpdate reports print progress for one job.
type PrintJobUpdate struct {
	JobID               string     `json:"jobId,omitempty"`
	Status              string     `json:"status"`
	Progress            int        `json:"progress"`
	EstimatedCompletion *time.Time `json:"estimatedCompletion,omitempty"`
}

// PrintJobsUpdate is the periodic job list broadcast.
type PrintJobsUpdate struct {
	Jobs []PrintJobUpdate `json:"jobs"`
}

// StatusUpdate is the periodic processing heartbeat.
type StatusUpdate struct {
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliveryUpdate reports delivery progress.
type DeliveryUpdate struct {
	DeliveryID    string     `json:"deliveryId,omitempty"`
	Status        string     `json:"status"`
	Details       string     `json:"details,omitempty"`
	Progress      int        `json:"progress,omitempty"`
	RiderLocation *GeoPoint  `json:"riderLocation,omitempty"`
	ETA           *time.Time `json:"eta,omitempty"`
}

// RiderAssigned announces the rider taking the delivery.
type RiderAssigned struct {
	RiderID   string `json:"riderId"`
	RiderName string `json:"riderName,omitempty"`
}

// DeliveryDetailsSubmitted sends the recipient details to the server.
type DeliveryDetailsSubmitted struct {
	Details DeliveryDetails `json:"details"`
}

// DeliveryDetailsConfirmed acknowledges submitted delivery details.
type DeliveryDetailsConfirmed struct {
	Success    bool   `json:"success"`
	DeliveryID string `json:"deliveryId"`
}

// FindPrinterShop asks for the nearest shop to a location.
type FindPrinterShop struct {
	UserID   string    `json:"userId,omitempty"`
	Location *GeoPoint `json:"location,omitempty"`
}

// PrinterShopFound answers FindPrinterShop.
type PrinterShopFound struct {
	Shop       PrinterShop `json:"shop"`
	DistanceKm float64     `json:"distance"`
	Warning    string      `json:"warning,omitempty"`
}

// QRCodeGenerated carries the handover code of a shop booking.
type QRCodeGenerated struct {
	QRCode string `json:"qrCode"`
}

// ConfirmPrinterShop books the selected shop for the current job.
type ConfirmPrinterShop struct {
	ShopID string `json:"shopId"`
	JobID  string `json:"jobId,omitempty"`
}

// PrintJobStatusUpdate answers ConfirmPrinterShop.
type PrintJobStatusUpdate struct {
	Status        string `json:"status"`
	ShopID        string `json:"shopId"`
	EstimatedTime string `json:"estimatedTime"`
}

// ConfirmDelivery reports the recipient's handover confirmation.
type ConfirmDelivery struct {
	DeliveryID   string           `json:"deliveryId,omitempty"`
	Confirmation ConfirmationData `json:"confirmation"`
}

// DeliveryConfirmationResponse answers ConfirmDelivery.
type DeliveryConfirmationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorMessage is a server-pushed error for the global banner.
type ErrorMessage struct {
	Message string `json:"message"`
}

// PrintStatusRequest asks the server to re-publish print status.
type PrintStatusRequest struct {
	UserID string `json:"userId,omitempty"`
}

// DeliveryStatusRequest asks the server to re-publish delivery status.
type DeliveryStatusRequest struct {
	UserID string `json:"userId,omitempty"`
}

func (Login) EventName() EventName                        { return EventLogin }
func (UsersUpdate) EventName() EventName                  { return EventUsersUpdate }
func (DocumentUploaded) EventName() EventName             { return EventDocumentUploaded }
func (AIProcessComplete) EventName() EventName            { return EventAIProcessComplete }
func (PrintJobCreated) EventName() EventName              { return EventPrintJobCreated }
func (PrintJobUpdate) EventName() EventName               { return EventPrintJobUpdate }
func (PrintJobsUpdate) EventName() EventName              { return EventPrintJobsUpdate }
func (StatusUpdate) EventName() EventName                 { return EventStatusUpdate }
func (DeliveryUpdate) EventName() EventName               { return EventDeliveryUpdate }
func (RiderAssigned) EventName() EventName                { return EventRiderAssigned }
func (DeliveryDetailsSubmitted) EventName() EventName     { return EventDeliveryDetailsSubmitted }
func (DeliveryDetailsConfirmed) EventName() EventName     { return EventDeliveryDetailsConfirmed }
func (FindPrinterShop) EventName() EventName              { return EventFindPrinterShop }
func (PrinterShopFound) EventName() EventName             { return EventPrinterShopFound }
func (QRCodeGenerated) EventName() EventName              { return EventQRCodeGenerated }
func (ConfirmPrinterShop) EventName() EventName           { return EventConfirmPrinterShop }
func (PrintJobStatusUpdate) EventName() EventName         { return EventPrintJobStatusUpdate }
func (ConfirmDelivery) EventName() EventName              { return EventConfirmDelivery }
func (DeliveryConfirmationResponse) EventName() EventName { return EventDeliveryConfirmationResponse }
func (ErrorMessage) EventName() EventName                 { return EventErrorMessage }
func (PrintStatusRequest) EventName() EventName           { return EventRequestPrintStatus }
func (DeliveryStatusRequest) EventName() EventName        { return EventRequestDeliveryStatus }
