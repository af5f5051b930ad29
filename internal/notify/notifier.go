package notify

import "context"

// Notifier is the outbound messaging port. Implementations are best-effort:
// the booking state machine never rolls back a transition because a
// notification failed to go out.
type Notifier interface {
	// NotifyUser sends an event addressed to the given user's chat.
	NotifyUser(ctx context.Context, userID int64, event string, payload any) error

	// NotifyAdmin sends an event to the admin chat and returns a durable
	// message reference for later edits.
	NotifyAdmin(ctx context.Context, event string, payload any) (string, error)

	// EditAdmin updates a previously sent admin message in place, so the
	// review card reflects the final verdict instead of duplicating it.
	EditAdmin(ctx context.Context, messageRef string, event string, payload any) error

	// SetAdminChat retargets admin notifications at runtime.
	SetAdminChat(chatID int64)
}
