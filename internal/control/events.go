package control

import "github.com/visualix/visualix/internal/events"

// TypeCancelRequested is published when a run accepts a cancel request.
const TypeCancelRequested = "control_cancel_requested"

// CancelRequestedEvent signals a cancel request.
type CancelRequestedEvent struct {
	events.BaseEvent
	Reason string `json:"reason,omitempty"`
}

// NewCancelRequestedEvent creates the event for jobID.
func NewCancelRequestedEvent(jobID, reason string) CancelRequestedEvent {
	return CancelRequestedEvent{
		BaseEvent: events.NewBaseEvent(TypeCancelRequested, jobID),
		Reason:    reason,
	}
}
