package model

import "time"

// Date and time-of-day layouts used everywhere a slot is parsed or rendered.
const (
	SlotDateLayout = "2006-01-02"
	SlotTimeLayout = "15:04"
)

// Slot is a single bookable (date, time) unit. The (Date, TimeOfDay) pair is
// unique; Taken flips only through the conditional claim/release operations
// in the slots repository.
type Slot struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Date      string    `json:"date" bson:"date" validate:"required,slot_date"`
	TimeOfDay string    `json:"time" bson:"time" validate:"required,slot_time"`
	Taken     bool      `json:"taken" bson:"taken"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
