package leave

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

const (
	EntryHold    = "hold"
	EntryRelease = "release"
	EntryDebit   = "debit"
)

const (
	EventSubmitted     = "leave.submitted"
	EventLevelApproved = "leave.level_approved"
	EventApproved      = "leave.approved"
	EventRejected      = "leave.rejected"
	EventCancelled     = "leave.cancelled"
)

const (
	entityApplication = "leave_application"
	entityLeaveType   = "leave_type"
)
