package database

import "time"

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	Helped       int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type HelpRequest struct {
	Id          int
	ExternalId  string
	OwnerId     int
	Title       string
	Description string
	GithubLink  string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Message struct {
	Id        int
	RoomId    int
	UserId    int
	Username  string
	Content   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRequestParams struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	GithubLink  string `json:"github_link"`
	OwnerId     int    `json:"-"`
	ExternalId  string `json:"external_id"`
}
