package model

import (
	"time"
)

// BookingStatus is the closed set of booking lifecycle states. Transitions
// between them happen exclusively through conditional updates in the bookings
// repository; no caller mutates Status directly.
type BookingStatus string

const (
	StatusCreated        BookingStatus = "CREATED"
	StatusWaitingPayment BookingStatus = "WAITING_PAYMENT"
	StatusChecking       BookingStatus = "CHECKING"
	StatusConfirmed      BookingStatus = "CONFIRMED"
	StatusRejected       BookingStatus = "REJECTED"
	StatusCancelled      BookingStatus = "CANCELLED"
)

// Terminal reports whether a booking in this status can never change again.
func (s BookingStatus) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// NonTerminalStatuses lists every status that keeps a slot taken. A taken
// slot has exactly one booking in one of these statuses referencing it.
func NonTerminalStatuses() []BookingStatus {
	return []BookingStatus{StatusCreated, StatusWaitingPayment, StatusChecking, StatusConfirmed}
}

// Actor identifies who requested a cancellation, for notification routing.
type Actor string

const (
	ActorUser  Actor = "user"
	ActorAdmin Actor = "admin"
)

type Booking struct {
	ID            string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID        int64         `json:"user_id" bson:"user_id" validate:"required"`
	SlotID        string        `json:"slot_id" bson:"slot_id" validate:"required,mongodb"`
	Story         string        `json:"story" bson:"story"`
	Participants  string        `json:"participants" bson:"participants"`
	Photos        []string      `json:"photos" bson:"photos"`
	Questions     []string      `json:"questions" bson:"questions"`
	NumQuestions  int           `json:"num_questions" bson:"num_questions"`
	Amount        int64         `json:"amount" bson:"amount"`
	Status        BookingStatus `json:"status" bson:"status"`
	AdminMsgRef   string        `json:"admin_msg_ref,omitempty" bson:"admin_msg_ref,omitempty"`
	HoldExpiresAt time.Time     `json:"hold_expires_at" bson:"hold_expires_at"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
}

// Intake is the payload collected by the intake dialogue before a slot is
// claimed. Amount is not part of it: price is read at reservation time.
type Intake struct {
	Story        string   `json:"story" validate:"required,min=1,max=4000"`
	Participants string   `json:"participants" validate:"required,min=1,max=1000"`
	Photos       []string `json:"photos" validate:"required,min=1,dive,required"`
	Questions    []string `json:"questions" validate:"required,min=1,dive,required"`
	Phone        string   `json:"phone" validate:"omitempty,e164"`
}

// BookingDetail is a booking joined with its slot and owning user, as shown
// to admins during payment review.
type BookingDetail struct {
	Booking *Booking `json:"booking"`
	Slot    *Slot    `json:"slot"`
	User    *User    `json:"user"`
}

// UnlockOutcome describes what a manual slot unlock actually released.
type UnlockOutcome string

const (
	UnlockAlreadyFree        UnlockOutcome = "already_free"
	UnlockReleasedStale      UnlockOutcome = "released_stale"
	UnlockCancelledUnpaid    UnlockOutcome = "cancelled_unpaid"
	UnlockRejectedUnverified UnlockOutcome = "rejected_unverified"
	UnlockCancelledConfirmed UnlockOutcome = "cancelled_confirmed"
)
