package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

type LeaveFilter struct {
	From         *time.Time
	To           *time.Time
	DepartmentID string
	Status       string
	LeaveTypeID  string
	Limit        int
	Offset       int
}

type LeaveRow struct {
	ApplicationID  string          `json:"applicationId"`
	UserID         string          `json:"userId"`
	ApplicantName  string          `json:"applicantName"`
	ApplicantEmail string          `json:"applicantEmail"`
	DepartmentName string          `json:"departmentName"`
	LeaveTypeName  string          `json:"leaveTypeName"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	Days           decimal.Decimal `json:"days"`
	Status         string          `json:"status"`
	CurrentLevel   int             `json:"currentLevel"`
	CreatedAt      time.Time       `json:"createdAt"`
	DecidedAt      *time.Time      `json:"decidedAt,omitempty"`
}

type LeaveReport struct {
	Items    []LeaveRow     `json:"items"`
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

type BalanceRow struct {
	UserID         string          `json:"userId"`
	FullName       string          `json:"fullName"`
	DepartmentName string          `json:"departmentName"`
	LeaveTypeName  string          `json:"leaveTypeName"`
	Year           int             `json:"year"`
	TotalDays      decimal.Decimal `json:"totalDays"`
	UsedDays       decimal.Decimal `json:"usedDays"`
	PendingDays    decimal.Decimal `json:"pendingDays"`
	Available      decimal.Decimal `json:"available"`
}

type JobRun struct {
	ID          string         `json:"id"`
	JobType     string         `json:"jobType"`
	Status      string         `json:"status"`
	Details     map[string]any `json:"details"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

type JobRunFilter struct {
	JobType     string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
}

// Export is a rendered report file.
type Export struct {
	FileName    string
	ContentType string
	Data        []byte
}
