package model

// Setting is a single named value in the settings collection.
// Values are stored as strings, like the key/value table they model.
type Setting struct {
	Key   string `json:"key" bson:"_id"`
	Value string `json:"value" bson:"value"`
}

const (
	// SettingPricePerQuestion is the price setting the service consults when
	// computing a booking amount.
	SettingPricePerQuestion = "price_per_question"

	// SettingAdminChatID is the destination chat for admin notifications.
	// Reconfigurable at runtime; the env value only seeds it.
	SettingAdminChatID = "admin_chat_id"
)
