package visits

import (
	"time"
)

type VisitStatus string

const (
	VisitStatusPending     VisitStatus = "pending"
	VisitStatusApproved    VisitStatus = "approved"
	VisitStatusCompleted   VisitStatus = "completed"
	VisitStatusIncomplete  VisitStatus = "incomplete"
	VisitStatusRejected    VisitStatus = "rejected"
	VisitStatusRescheduled VisitStatus = "rescheduled"
)

var transitions = map[VisitStatus][]VisitStatus{
	VisitStatusPending: {
		VisitStatusApproved, VisitStatusRejected, VisitStatusCompleted,
		VisitStatusIncomplete, VisitStatusRescheduled,
	},
	VisitStatusApproved: {
		VisitStatusCompleted, VisitStatusIncomplete, VisitStatusRejected, VisitStatusRescheduled,
	},
}

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitStatusPending, VisitStatusApproved, VisitStatusCompleted,
		VisitStatusIncomplete, VisitStatusRejected, VisitStatusRescheduled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a visitor may move a visit from s to next.
// Completed, incomplete, rejected and rescheduled visits are final.
func (s VisitStatus) CanTransitionTo(next VisitStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s VisitStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// AssignedVisitor is frozen onto the visit at creation.
type AssignedVisitor struct {
	VisitorID   string `json:"visitorId"`
	VisitorName string `json:"visitorName"`
}

type Visit struct {
	ID              string            `json:"id"`
	QuotationID     string            `json:"quotationId"`
	DealerID        string            `json:"dealerId"`
	Date            string            `json:"date"`
	Time            string            `json:"time"`
	Location        string            `json:"location"`
	LocationLink    string            `json:"locationLink,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	Status          VisitStatus       `json:"status"`
	Feedback        string            `json:"feedback,omitempty"`
	RejectionReason string            `json:"rejectionReason,omitempty"`
	Length          *float64          `json:"length,omitempty"`
	Width           *float64          `json:"width,omitempty"`
	Height          *float64          `json:"height,omitempty"`
	Images          []string          `json:"images"`
	Visitors        []AssignedVisitor `json:"visitors"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// AssignedTo reports whether visitorID is one of the visit's visitors.
func (v Visit) AssignedTo(visitorID string) bool {
	for _, a := range v.Visitors {
		if a.VisitorID == visitorID {
			return true
		}
	}
	return false
}

const scheduleLayout = "2006-01-02 15:04"

// ScheduledAt parses the visit date and time. ok is false when either is
// malformed.
func (v Visit) ScheduledAt() (time.Time, bool) {
	t, err := time.Parse(scheduleLayout, v.Date+" "+v.Time)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// StatusSummary is the current visit state of one quotation.
type StatusSummary struct {
	QuotationID string      `json:"quotationId"`
	Status      VisitStatus `json:"status,omitempty"`
	VisitID     string      `json:"visitId,omitempty"`
	VisitCount  int         `json:"visitCount"`
}
