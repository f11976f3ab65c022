package domain

// Status is the lifecycle state of a support email.
// An empty Status means the record has never been triaged and is treated as pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusToSend    Status = "to_send"
	StatusResponded Status = "responded"
	StatusResolved  Status = "resolved"
	StatusArchived  Status = "archived"
)

// UpdatableStatuses are the values accepted by a manual status update.
var UpdatableStatuses = []Status{StatusPending, StatusResponded, StatusResolved, StatusArchived}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusToSend, StatusResponded, StatusResolved, StatusArchived:
		return true
	}
	return false
}

// IsOpen reports whether the email still awaits a reply.
func (s Status) IsOpen() bool {
	return s == "" || s == StatusPending || s == StatusToSend
}

func (s Status) rank() int {
	switch s {
	case StatusResponded:
		return 1
	case StatusResolved:
		return 2
	case StatusArchived:
		return 3
	default:
		return 0
	}
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// moving forward: pending -> responded -> resolved, anything -> archived.
// Re-applying the current status is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsOpen() && next.IsOpen() {
		return true
	}
	return next.rank() > s.rank()
}
