package database

import "time"

type CampusRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	FindAccountByUsername(username string) (Account, error)
	IncrementHelpedCount(username string) error
	CreateRequest(params CreateRequestParams) (HelpRequest, error)
	GetRequestByExternalId(externalId string) (HelpRequest, error)
	ListRequests() ([]HelpRequest, error)
	DeleteRequest(id int) error
	AppendMessage(msg Message) (Message, error)
	ListMessages(roomId int) ([]Message, error)
	LastMessageTime(roomId int) (time.Time, error)
}
