package model

import "time"

// User is a client known to the service. The ID is the identity assigned by
// the messaging platform, so it doubles as the primary key.
type User struct {
	ID        int64     `json:"id" bson:"_id" validate:"required"`
	Username  string    `json:"username,omitempty" bson:"username,omitempty"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
