package models

import "time"

type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"keys_p256dh"` // standard base64 of the raw key
	Auth      string    `json:"keys_auth"`   // standard base64 of the raw secret
	CreatedAt time.Time `json:"created_at"`
}

// PushMessage is the JSON document the service worker receives after decryption.
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}
