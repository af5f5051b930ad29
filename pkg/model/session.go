package model

import "time"

// IntakeStep is the closed set of dialogue steps the intake session walks
// through before the reservation protocol is invoked.
type IntakeStep string

const (
	StepStory        IntakeStep = "story"
	StepParticipants IntakeStep = "participants"
	StepPhotos       IntakeStep = "photos"
	StepQuestions    IntakeStep = "questions"
	StepPhone        IntakeStep = "phone"
	StepSelectDate   IntakeStep = "select_date"
	StepSelectTime   IntakeStep = "select_time"
	StepReceipt      IntakeStep = "waiting_receipt"
	StepDone         IntakeStep = "done"
)

// Session holds one user's dialogue position and the intake fields collected
// so far. It is ephemeral state with explicit expiry, not booking history.
type Session struct {
	UserID       int64      `json:"user_id"`
	Username     string     `json:"username,omitempty"`
	Name         string     `json:"name,omitempty"`
	Step         IntakeStep `json:"step"`
	Story        string     `json:"story,omitempty"`
	Participants string     `json:"participants,omitempty"`
	Photos       []string   `json:"photos,omitempty"`
	Questions    []string   `json:"questions,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	SelectedDate string     `json:"selected_date,omitempty"`
	Amount       int64      `json:"amount,omitempty"`
	BookingID    string     `json:"booking_id,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
