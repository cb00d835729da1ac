package models

import "time"

// Avatar is the metadata record of an avatar together with its content.
// Content is the raw image; encoding/json renders it as base64.
type Avatar struct {
	ID          string    `json:"id"`
	ForeignID   string    `json:"foreign_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	MD5         string    `json:"md5"`
	Content     []byte    `json:"content"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// NewAvatar is the input of an avatar creation. Content holds the decoded
// bytes.
type NewAvatar struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// DeletedAvatar is returned after an avatar has been removed.
type DeletedAvatar struct {
	ID string `json:"id"`
}
