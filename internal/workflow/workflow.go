// Package workflow defines the legal status transitions of a change request.
// It holds no state and does no I/O; services apply its decisions inside a
// database transaction.
package workflow

import (
	"fmt"
	"strings"

	apperrors "casei/internal/errors"
	"casei/internal/models"
)

// Transition is a reviewer or author action on a change.
type Transition string

const (
	Submit  Transition = "submit"
	Claim   Transition = "claim"
	Unclaim Transition = "unclaim"
	Review  Transition = "review"
	Reject  Transition = "reject"
	Publish Transition = "publish"
)

// Actor carries the facts about the acting user that transitions depend on.
type Actor struct {
	UserID  string
	IsAdmin bool
	// ClaimedBy is the user holding the latest claim on the change, if any.
	ClaimedBy string
}

type rule struct {
	from      []models.ChangeStatus
	log       models.ApprovalAction
	next      func(models.ChangeStatus) models.ChangeStatus
	authorize func(models.ChangeStatus, Actor) error
}

func to(s models.ChangeStatus) func(models.ChangeStatus) models.ChangeStatus {
	return func(models.ChangeStatus) models.ChangeStatus { return s }
}

func adminOnly(_ models.ChangeStatus, a Actor) error {
	if !a.IsAdmin {
		return apperrors.ErrNotAdmin
	}
	return nil
}

var rules = map[Transition]rule{
	Submit: {
		from: []models.ChangeStatus{models.StatusCreated, models.StatusInProgress},
		log:  models.ApprovalSubmit,
		next: to(models.StatusAwaitingReview),
	},
	Claim: {
		from: []models.ChangeStatus{models.StatusAwaitingReview, models.StatusAwaitingAdminReview},
		log:  models.ApprovalClaim,
		next: func(s models.ChangeStatus) models.ChangeStatus { return s + 1 },
		authorize: func(s models.ChangeStatus, a Actor) error {
			if s == models.StatusAwaitingAdminReview {
				return adminOnly(s, a)
			}
			return nil
		},
	},
	Unclaim: {
		from: []models.ChangeStatus{models.StatusInReview, models.StatusInAdminReview},
		log:  models.ApprovalUnclaim,
		next: func(s models.ChangeStatus) models.ChangeStatus { return s - 1 },
		authorize: func(_ models.ChangeStatus, a Actor) error {
			if !a.IsAdmin && a.ClaimedBy != a.UserID {
				return apperrors.ErrNotClaimant
			}
			return nil
		},
	},
	Review: {
		from: []models.ChangeStatus{models.StatusInReview},
		log:  models.ApprovalReview,
		next: to(models.StatusAwaitingAdminReview),
	},
	Reject: {
		from: []models.ChangeStatus{models.StatusInReview, models.StatusInAdminReview},
		log:  models.ApprovalReject,
		next: to(models.StatusInProgress),
		authorize: func(s models.ChangeStatus, a Actor) error {
			if s == models.StatusInAdminReview {
				return adminOnly(s, a)
			}
			return nil
		},
	},
	Publish: {
		from:      []models.ChangeStatus{models.StatusInAdminReview},
		log:       models.ApprovalPublish,
		next:      to(models.StatusPublished),
		authorize: adminOnly,
	},
}

// Step is the outcome of a permitted transition.
type Step struct {
	From models.ChangeStatus
	To   models.ChangeStatus
	Log  models.ApprovalAction
}

// Next validates a transition from the given status and returns the
// resulting status and the approval log action to record.
func Next(t Transition, from models.ChangeStatus, actor Actor) (Step, error) {
	r, ok := rules[t]
	if !ok {
		return Step{}, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown action %q", t))
	}
	if !contains(r.from, from) {
		return Step{}, apperrors.WithMessage(apperrors.ErrInvalidTransition, statusMessage(r.from))
	}
	if r.authorize != nil {
		if err := r.authorize(from, actor); err != nil {
			return Step{}, err
		}
	}
	return Step{From: from, To: r.next(from), Log: r.log}, nil
}

// Allowed returns the transitions the actor may take from the given status.
func Allowed(from models.ChangeStatus, actor Actor) []Transition {
	var out []Transition
	for _, t := range []Transition{Submit, Claim, Unclaim, Review, Reject, Publish} {
		if _, err := Next(t, from, actor); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// Editable reports whether the change payload may still be edited.
func Editable(s models.ChangeStatus) bool {
	return s == models.StatusCreated || s == models.StatusInProgress
}

// SuccessMessage is the message returned after a change moves to a status.
func SuccessMessage(s models.ChangeStatus) string {
	return fmt.Sprintf("Change object has been moved to the '%s' stage.", s)
}

func statusMessage(accepted []models.ChangeStatus) string {
	names := make([]string, len(accepted))
	for i, s := range accepted {
		names[i] = "'" + s.String() + "'"
	}
	return "action failed because status was not one of [" + strings.Join(names, ", ") + "]"
}

func contains(list []models.ChangeStatus, s models.ChangeStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
