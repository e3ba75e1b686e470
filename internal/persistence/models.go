package persistence

import "time"

// Job sources.
const (
	SourceInternal = "internal"
	SourceExternal = "external"
)

// Employee represents a cleaner or crew member jobs can be assigned to.
type Employee struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Color     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Job represents a scheduled cleaning job or an imported external appointment.
type Job struct {
	ID             string
	Title          string
	Description    string
	ClientName     string
	Address        string
	Start          time.Time
	End            *time.Time
	EmployeeID     *string
	EventType      string
	Status         string
	PriceCents     int64
	Confirmed      *bool
	Source         string
	Feed           string
	ExternalUID    *string
	RecurrenceRule *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
