package models

import "time"

type NotificationPreference struct {
	UserID              string    `json:"user_id"`
	EmailAnnouncements  bool      `json:"email_announcements"`
	EmailReplies        bool      `json:"email_replies"`
	EmailMentions       bool      `json:"email_mentions"`
	EmailDirectMessages bool      `json:"email_direct_messages"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultNotificationPreference is what a member without a settings row gets.
func DefaultNotificationPreference(userID string) NotificationPreference {
	return NotificationPreference{
		UserID:              userID,
		EmailAnnouncements:  true,
		EmailReplies:        true,
		EmailMentions:       true,
		EmailDirectMessages: true,
	}
}

// Allows reports whether email is wanted for the category. Unknown categories
// never email.
func (p NotificationPreference) Allows(c Category) bool {
	switch c {
	case CategoryAnnouncement:
		return p.EmailAnnouncements
	case CategoryReply:
		return p.EmailReplies
	case CategoryMention:
		return p.EmailMentions
	case CategoryDirectMessage:
		return p.EmailDirectMessages
	case CategoryUnknown:
		return false
	}
	return false
}
