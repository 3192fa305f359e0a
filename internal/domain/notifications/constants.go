package notifications

const (
	RelatedLeaveApplication = "leave_application"
)

const (
	TitleLeaveSubmitted     = "New leave application awaiting approval"
	TitleLeaveLevelApproved = "Leave application awaiting your approval"
	TitleLeaveApproved      = "Leave application approved"
	TitleLeaveRejected      = "Leave application rejected"
	TitleLeaveCancelled     = "Leave application cancelled"
)
