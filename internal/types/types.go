package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	Helped       int       `json:"helped"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type HelpRequest struct {
	Id          int       `json:"id"`
	ExternalId  string    `json:"external_id"`
	OwnerId     int       `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	GithubLink  string    `json:"github_link,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type ChatMessage struct {
	Id        int       `json:"id,omitempty"`
	RoomId    string    `json:"room_id"`
	UserId    int       `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
