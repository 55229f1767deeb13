package workflow

import (
	"floroexpress/internal/domain"
	"floroexpress/internal/logsink"
)

// Effect is a side effect requested by Reduce and carried out by the Machine.
type Effect interface {
	effect()
}

// Connect opens the channel for a session.
type Connect struct {
	Session domain.Session
}

// Disconnect closes the channel.
type Disconnect struct{}

// Emit sends a request on the channel.
type Emit struct {
	Payload domain.Payload
}

// CancelRequests cancels the pending response chains of the current job.
type CancelRequests struct{}

// Analyze starts the analysis of a document, replacing any running one.
type Analyze struct {
	Document domain.DocumentDescriptor
}

// CancelAnalysis stops the running analysis, if any.
type CancelAnalysis struct{}

// StartTracking dispatches the rider from a pickup point.
type StartTracking struct {
	From       domain.GeoPoint
	DeliveryID string
}

// StopTracking ends the delivery simulation.
type StopTracking struct{}

// Log records an application log entry.
type Log struct {
	Level    logsink.Level
	Message  string
	Action   string
	Metadata map[string]string
}

func (Connect) effect()        {}
func (Disconnect) effect()     {}
func (Emit) effect()           {}
func (CancelRequests) effect() {}
func (Analyze) effect()        {}
func (CancelAnalysis) effect() {}
func (StartTracking) effect()  {}
func (StopTracking) effect()   {}
func (Log) effect()            {}
