package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockCampusRepository struct {
	mock.Mock
}

func (m *MockCampusRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockCampusRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockCampusRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockCampusRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockCampusRepository) FindAccountByUsername(username string) (Account, error) {
	args := m.Called(username)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockCampusRepository) IncrementHelpedCount(username string) error {
	args := m.Called(username)
	return args.Error(0)
}
func (m *MockCampusRepository) CreateRequest(params CreateRequestParams) (HelpRequest, error) {
	args := m.Called(params)
	return args.Get(0).(HelpRequest), args.Error(1)
}
func (m *MockCampusRepository) GetRequestByExternalId(externalId string) (HelpRequest, error) {
	args := m.Called(externalId)
	return args.Get(0).(HelpRequest), args.Error(1)
}
func (m *MockCampusRepository) ListRequests() ([]HelpRequest, error) {
	args := m.Called()
	return args.Get(0).([]HelpRequest), args.Error(1)
}
func (m *MockCampusRepository) DeleteRequest(id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockCampusRepository) AppendMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockCampusRepository) ListMessages(roomId int) ([]Message, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockCampusRepository) LastMessageTime(roomId int) (time.Time, error) {
	args := m.Called(roomId)
	return args.Get(0).(time.Time), args.Error(1)
}
