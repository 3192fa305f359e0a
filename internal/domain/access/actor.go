package access

// ActorContext identifies who performs a core operation. It is built from a
// verified token by the transport layer and passed explicitly to services.
type ActorContext struct {
	UserID       string
	Role         string
	DepartmentID string
}

func (a ActorContext) Valid() bool {
	return a.UserID != "" && a.Role != ""
}
