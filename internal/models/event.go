package models

import "strings"

// Category is the kind of community event a notification describes.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryAnnouncement
	CategoryReply
	CategoryMention
	CategoryDirectMessage
)

// Categories lists every known category.
var Categories = []Category{
	CategoryAnnouncement,
	CategoryReply,
	CategoryMention,
	CategoryDirectMessage,
}

func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "announcement", "announcements":
		return CategoryAnnouncement
	case "reply", "replies":
		return CategoryReply
	case "mention", "mentions":
		return CategoryMention
	case "direct_message", "message", "dm":
		return CategoryDirectMessage
	default:
		return CategoryUnknown
	}
}

func (c Category) String() string {
	switch c {
	case CategoryAnnouncement:
		return "announcement"
	case CategoryReply:
		return "reply"
	case CategoryMention:
		return "mention"
	case CategoryDirectMessage:
		return "direct_message"
	default:
		return "unknown"
	}
}

const (
	DefaultTitle   = "Akita Connect"
	DefaultMessage = "You have a new notification"
	DefaultLink    = "/"
)

// NotificationEvent is a view of the row whose insert fired the webhook.
type NotificationEvent struct {
	UserID   string
	Category Category
	// RawType keeps the original type string for logs.
	RawType  string
	Title    string
	Message  string
	Link     string
	RecordID string
}

// WithDefaults fills empty display fields with generic text.
func (e NotificationEvent) WithDefaults() NotificationEvent {
	if e.Title == "" {
		e.Title = DefaultTitle
	}
	if e.Message == "" {
		e.Message = DefaultMessage
	}
	if e.Link == "" {
		e.Link = DefaultLink
	}
	return e
}

func (e NotificationEvent) PushMessage() PushMessage {
	return PushMessage{Title: e.Title, Body: e.Message, URL: e.Link}
}
