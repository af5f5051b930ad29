package notify

// Event types published to the notification topic. The delivery worker that
// consumes them renders messages for the chat platform.
const (
	EventBookingReserved  = "booking.reserved"
	EventReceiptSubmitted = "booking.receipt_submitted"
	EventBookingApproved  = "booking.approved"
	EventBookingRejected  = "booking.rejected"
	EventBookingCancelled = "booking.cancelled"
	EventHoldExpired      = "booking.hold_expired"
)

// Audience constants select the recipient side of an event.
const (
	AudienceUser  = "user"
	AudienceAdmin = "admin"
)

// Envelope is the payload written to Kafka for every notification.
type Envelope struct {
	Audience   string `json:"audience"`
	ChatID     int64  `json:"chat_id"`
	Event      string `json:"event"`
	MessageRef string `json:"message_ref,omitempty"`
	EditRef    string `json:"edit_ref,omitempty"`
	Payload    any    `json:"payload,omitempty"`
}

// BookingEvent carries the booking fields the delivery worker needs to render
// a notification without a read back into the bookings collection.
type BookingEvent struct {
	BookingID string `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
