package models

import (
	"gorm.io/datatypes"
)

// ChangeStatus is the position of a Change in the review workflow.
type ChangeStatus int

const (
	StatusCreated             ChangeStatus = 0
	StatusInProgress          ChangeStatus = 1
	StatusAwaitingReview      ChangeStatus = 2
	StatusInReview            ChangeStatus = 3
	StatusAwaitingAdminReview ChangeStatus = 4
	StatusInAdminReview       ChangeStatus = 5
	StatusPublished           ChangeStatus = 6
)

var statusNames = map[ChangeStatus]string{
	StatusCreated:             "Created",
	StatusInProgress:          "In Progress",
	StatusAwaitingReview:      "Awaiting Review",
	StatusInReview:            "In Review",
	StatusAwaitingAdminReview: "Awaiting Admin Review",
	StatusInAdminReview:       "In Admin Review",
	StatusPublished:           "Published",
}

// String returns the display name of the status.
func (s ChangeStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether s is a known status.
func (s ChangeStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ChangeAction is the kind of mutation a Change proposes.
type ChangeAction string

const (
	ChangeActionCreate ChangeAction = "Create"
	ChangeActionUpdate ChangeAction = "Update"
	ChangeActionDelete ChangeAction = "Delete"
)

// Valid reports whether a is a known action.
func (a ChangeAction) Valid() bool {
	switch a {
	case ChangeActionCreate, ChangeActionUpdate, ChangeActionDelete:
		return true
	}
	return false
}

// Change is a proposed mutation against a domain entity. The patch in Update
// is applied to the live row only when the change is published.
type Change struct {
	Base
	ContentType string            `gorm:"not null;index" json:"content_type"`
	ObjectID    *string           `gorm:"type:uuid;index" json:"object_id"`
	Action      ChangeAction      `gorm:"not null" json:"action"`
	Status      ChangeStatus      `gorm:"not null;default:0;index" json:"status"`
	Previous    datatypes.JSONMap `json:"previous"`
	Update      datatypes.JSONMap `json:"update"`
	UserID      *string           `gorm:"type:uuid;index" json:"user_id"`

	User *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Logs []ApprovalLog `gorm:"foreignKey:ChangeID" json:"logs,omitempty"`
}

// StatusName returns the display name of the change's status.
func (c *Change) StatusName() string {
	return c.Status.String()
}

// IsPublished reports whether the change has reached its terminal state.
func (c *Change) IsPublished() bool {
	return c.Status == StatusPublished
}
