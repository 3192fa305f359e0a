package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"elms/internal/domain/access"
)

type LeaveType struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	MaxDays            decimal.Decimal `json:"maxDays"`
	RequiresAttachment bool            `json:"requiresAttachment"`
	ApplicableTo       []string        `json:"applicableTo"`
	Active             bool            `json:"active"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// AppliesTo reports whether role may apply for this type. An empty list means every role.
func (t LeaveType) AppliesTo(role string) bool {
	if len(t.ApplicableTo) == 0 {
		return true
	}
	role = access.NormalizeRole(role)
	for _, candidate := range t.ApplicableTo {
		if access.NormalizeRole(candidate) == role {
			return true
		}
	}
	return false
}

type BalanceKey struct {
	UserID      string `json:"userId"`
	LeaveTypeID string `json:"leaveTypeId"`
	Year        int    `json:"year"`
}

type Balance struct {
	ID string `json:"id"`
	BalanceKey
	LeaveTypeName string          `json:"leaveTypeName,omitempty"`
	TotalDays     decimal.Decimal `json:"totalDays"`
	UsedDays      decimal.Decimal `json:"usedDays"`
	PendingDays   decimal.Decimal `json:"pendingDays"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (b Balance) Available() decimal.Decimal {
	return b.TotalDays.Sub(b.UsedDays).Sub(b.PendingDays)
}

type BalanceEntry struct {
	BalanceID     string
	ApplicationID string
	Kind          string
	Days          decimal.Decimal
}

type Application struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	ApplicantName string          `json:"applicantName,omitempty"`
	LeaveTypeID   string          `json:"leaveTypeId"`
	LeaveTypeName string          `json:"leaveTypeName,omitempty"`
	StartDate     time.Time       `json:"startDate"`
	EndDate       time.Time       `json:"endDate"`
	Days          decimal.Decimal `json:"days"`
	Reason        string          `json:"reason"`
	Attachment    string          `json:"attachment,omitempty"`
	Status        string          `json:"status"`
	CurrentLevel  int             `json:"currentLevel"`
	DecidedAt     *time.Time      `json:"decidedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Approvals     []Approval      `json:"approvals,omitempty"`
}

// BalanceKey charges an application to the calendar year it starts in.
func (a Application) BalanceKey() BalanceKey {
	return BalanceKey{UserID: a.UserID, LeaveTypeID: a.LeaveTypeID, Year: a.StartDate.Year()}
}

type Approval struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"applicationId"`
	ApproverID    string     `json:"approverId,omitempty"`
	Level         int        `json:"level"`
	Status        string     `json:"status"`
	Comments      string     `json:"comments"`
	ActedBy       string     `json:"actedBy,omitempty"`
	ActedAt       *time.Time `json:"actedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Person is the slice of a directory user the workflow needs.
type Person struct {
	ID           string
	Email        string
	FullName     string
	Role         string
	DepartmentID string
	Active       bool
}

type ApplicationFilter struct {
	UserID       string
	Status       string
	LeaveTypeID  string
	DepartmentID string
	Limit        int
	Offset       int
}

type ApplicationList struct {
	Items []Application `json:"items"`
	Total int           `json:"total"`
}

// PendingQuery selects approval rows an actor can act on.
type PendingQuery struct {
	UserID       string
	DepartmentID string
	Levels       []int
	Override     bool
	Limit        int
	Offset       int
}

type PendingApproval struct {
	Application
	Level      int    `json:"level"`
	ApprovalID string `json:"approvalId"`
}

type SubmitInput struct {
	LeaveTypeID string
	StartDate   time.Time
	EndDate     time.Time
	StartHalf   bool
	EndHalf     bool
	// Days is derived from the dates when nil.
	Days       *decimal.Decimal
	Reason     string
	Attachment *Upload
}

type Upload struct {
	FileName string
	Data     []byte
}

type LeaveTypeInput struct {
	Name               string
	Description        string
	MaxDays            decimal.Decimal
	RequiresAttachment bool
	ApplicableTo       []string
	Active             *bool
}
