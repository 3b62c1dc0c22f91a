package member

import (
	"database/sql"
	"time"
)

// Status is the membership state of a cooperative associate.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

// Member represents a cooperative associate (cooperado).
type Member struct {
	ID              int64
	AssociateNumber string // Unique, printed on member cards
	Name            string
	Email           string
	Status          Status
	EnrolledAt      time.Time
	PlanID          sql.NullInt64 // At most one active plan at a time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (m *Member) IsActive() bool {
	return m.Status == StatusActive
}

func (m *Member) IsSuspended() bool {
	return m.Status == StatusSuspended
}
