package database

import (
	"database/sql"
	"fmt"
	"time"
)

func (db *PgCampusRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, helped, created_at, updated_at) "+
			"VALUES ($1, $2, $3, 0, $4, $4) RETURNING id, username, email, helped",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Helped,
	)

	return a, err
}

func (db *PgCampusRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, helped, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Helped,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgCampusRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, helped, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.Helped,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgCampusRepository) FindAccountByUsername(username string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, helped, created_at, updated_at FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.Helped,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

// IncrementHelpedCount bumps the reputation counter for username by one as a
// single conditional update. Returns sql.ErrNoRows if no such account exists.
func (db *PgCampusRepository) IncrementHelpedCount(username string) error {
	res, err := db.conn.Exec(
		"UPDATE accounts SET helped = helped + 1, updated_at = $2 WHERE username = $1",
		username,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (db *PgCampusRepository) CreateRequest(params CreateRequestParams) (HelpRequest, error) {
	res := db.conn.QueryRow(
		"INSERT INTO help_requests (external_id, owner_id, title, description, github_link, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, 'open', $6, $6) "+
			"RETURNING id, external_id, owner_id, title, description, github_link, status, created_at, updated_at",
		params.ExternalId,
		params.OwnerId,
		params.Title,
		params.Description,
		params.GithubLink,
		time.Now().UTC(),
	)

	var req HelpRequest
	err := res.Scan(
		&req.Id,
		&req.ExternalId,
		&req.OwnerId,
		&req.Title,
		&req.Description,
		&req.GithubLink,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)

	return req, err
}

func (db *PgCampusRepository) GetRequestByExternalId(externalId string) (HelpRequest, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, owner_id, title, description, github_link, status, created_at, updated_at "+
			"FROM help_requests WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var req HelpRequest
	err := row.Scan(
		&req.Id,
		&req.ExternalId,
		&req.OwnerId,
		&req.Title,
		&req.Description,
		&req.GithubLink,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)

	return req, err
}

func (db *PgCampusRepository) ListRequests() ([]HelpRequest, error) {
	rows, err := db.conn.Query(
		"SELECT id, external_id, owner_id, title, description, github_link, status, created_at, updated_at " +
			"FROM help_requests ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests = make([]HelpRequest, 0)
	for rows.Next() {
		var req HelpRequest
		if err = rows.Scan(
			&req.Id,
			&req.ExternalId,
			&req.OwnerId,
			&req.Title,
			&req.Description,
			&req.GithubLink,
			&req.Status,
			&req.CreatedAt,
			&req.UpdatedAt,
		); err != nil {
			break
		}

		requests = append(requests, req)
	}

	return requests, err
}

// DeleteRequest removes the request and its chat history in one transaction.
func (db *PgCampusRepository) DeleteRequest(id int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM messages WHERE room_id = $1", id)
	if err != nil {
		return err
	}

	res, err := tx.Exec("DELETE FROM help_requests WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	return tx.Commit()
}

func (db *PgCampusRepository) AppendMessage(msg Message) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (room_id, user_id, username, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id",
		msg.RoomId,
		msg.UserId,
		msg.Username,
		msg.Content,
		msg.CreatedAt,
	)

	if err := res.Scan(&msg.Id); err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	return msg, nil
}

func (db *PgCampusRepository) ListMessages(roomId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_id, user_id, username, content, created_at FROM messages "+
			"WHERE room_id = $1 ORDER BY created_at ASC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Username, &msg.Content, &msg.CreatedAt); err != nil {
			break
		}

		messages = append(messages, msg)
	}

	return messages, err
}

// LastMessageTime returns the newest stored message timestamp for the room,
// or the zero time if the room has no messages yet.
func (db *PgCampusRepository) LastMessageTime(roomId int) (time.Time, error) {
	row := db.conn.QueryRow(
		"SELECT COALESCE(MAX(created_at), 'epoch'::timestamptz) FROM messages WHERE room_id = $1",
		roomId,
	)

	var ts time.Time
	if err := row.Scan(&ts); err != nil {
		return time.Time{}, err
	}

	if ts.Unix() == 0 {
		return time.Time{}, nil
	}

	return ts, nil
}
