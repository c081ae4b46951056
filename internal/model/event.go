package model

// Request lifecycle event names published after a committed change.
const (
	EventRequestCreated       = "request.created"
	EventRequestInfoRequested = "request.info_requested"
	EventRequestResent        = "request.resent"
	EventRequestApproved      = "request.approved"
	EventRequestRejected      = "request.rejected"
	EventRequestDeleted       = "request.deleted"
)

// RequestEvent is pushed to live clients. Branch decides who receives it.
type RequestEvent struct {
	Event     string        `json:"event"`
	RequestID uint          `json:"request_id"`
	Branch    string        `json:"branch"`
	Status    RequestStatus `json:"status,omitempty"`
}
