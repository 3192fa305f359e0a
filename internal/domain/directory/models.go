package directory

import "time"

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Role         string    `json:"role"`
	DepartmentID string    `json:"departmentId,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Department struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	HeadID    string    `json:"headId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserFilter struct {
	DepartmentID string
	Role         string
	Status       string
	Limit        int
	Offset       int
}

type CreateUserInput struct {
	Email        string
	FullName     string
	Password     string
	Role         string
	DepartmentID string
}

// UpdateUserInput changes only the non-nil fields.
type UpdateUserInput struct {
	FullName     *string
	Role         *string
	DepartmentID *string
	Status       *string
}
