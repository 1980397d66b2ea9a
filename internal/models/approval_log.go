package models

import (
	"errors"
	"time"

	"casei/internal/uuid"

	"gorm.io/gorm"
)

// ErrApprovalLogImmutable is returned by hooks when code tries to rewrite history.
var ErrApprovalLogImmutable = errors.New("approval logs are immutable")

// ApprovalAction is the action recorded by an ApprovalLog entry.
type ApprovalAction int

const (
	ApprovalCreate  ApprovalAction = 1
	ApprovalEdit    ApprovalAction = 2
	ApprovalSubmit  ApprovalAction = 3
	ApprovalReview  ApprovalAction = 4
	ApprovalPublish ApprovalAction = 5
	ApprovalReject  ApprovalAction = 6
	ApprovalClaim   ApprovalAction = 7
	ApprovalUnclaim ApprovalAction = 8
)

// String returns the lowercase action name.
func (a ApprovalAction) String() string {
	switch a {
	case ApprovalCreate:
		return "create"
	case ApprovalEdit:
		return "edit"
	case ApprovalSubmit:
		return "submit"
	case ApprovalReview:
		return "review"
	case ApprovalPublish:
		return "publish"
	case ApprovalReject:
		return "reject"
	case ApprovalClaim:
		return "claim"
	case ApprovalUnclaim:
		return "unclaim"
	}
	return "unknown"
}

// ApprovalLog is an append-only audit entry for a Change. Ordering by Date
// gives the authoritative history.
type ApprovalLog struct {
	ID       string         `gorm:"type:uuid;primaryKey" json:"id"`
	ChangeID string         `gorm:"type:uuid;not null;index" json:"change_id"`
	UserID   *string        `gorm:"type:uuid;index" json:"user_id"`
	Action   ApprovalAction `gorm:"not null" json:"action"`
	Notes    string         `json:"notes"`
	Date     time.Time      `gorm:"not null;index" json:"date"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// BeforeCreate assigns the id and timestamp.
func (l *ApprovalLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New()
	}
	if l.Date.IsZero() {
		l.Date = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate rejects any modification of a written entry.
func (l *ApprovalLog) BeforeUpdate(tx *gorm.DB) error {
	return ErrApprovalLogImmutable
}

// BeforeDelete rejects deletion of a written entry.
func (l *ApprovalLog) BeforeDelete(tx *gorm.DB) error {
	return ErrApprovalLogImmutable
}
