package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"mychat/models"
)

var ErrNoRows = errors.New("no rows found")

type DB struct {
	conn *sqlx.DB
}

func New(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			account TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			nickname TEXT NOT NULL,
			avatar TEXT NOT NULL,
			create_time TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS friendships (
			user_id TEXT NOT NULL,
			friend_id TEXT NOT NULL,
			create_time TIMESTAMP NOT NULL,
			UNIQUE(user_id, friend_id)
		)`,
		`CREATE TABLE IF NOT EXISTS friend_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			create_time TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			create_time TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			UNIQUE(group_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content TEXT NOT NULL,
			send_time INTEGER NOT NULL,
			is_group INTEGER NOT NULL DEFAULT 0,
			type INTEGER NOT NULL DEFAULT 0,
			sender_name TEXT NOT NULL DEFAULT '',
			sender_avatar TEXT NOT NULL DEFAULT '',
			file_name TEXT NOT NULL DEFAULT '',
			file_size INTEGER NOT NULL DEFAULT 0,
			delivered INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, delivered, send_time)`,
		`CREATE INDEX IF NOT EXISTS idx_friendships_user ON friendships(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_receiver ON friend_requests(receiver_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_members_group ON group_members(group_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// User methods

func (db *DB) CreateUser(u *models.User, plainPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		"INSERT INTO users (id, account, password, nickname, avatar, create_time) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID, u.Account, string(hashed), u.Nickname, u.Avatar, u.CreateTime,
	)
	return err
}

func (db *DB) FindUserByAccount(account string) (*models.User, error) {
	var u models.User
	err := db.conn.Get(&u, "SELECT * FROM users WHERE account = ?", account)
	if err == sql.ErrNoRows {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) FindUserByID(id string) (*models.User, error) {
	var u models.User
	err := db.conn.Get(&u, "SELECT * FROM users WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CheckPassword verifies plain against the stored bcrypt hash.
func (db *DB) CheckPassword(u *models.User, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

func (db *DB) UpdatePassword(userID, plainPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec("UPDATE users SET password = ? WHERE id = ?", string(hashed), userID)
	return err
}

func (db *DB) UpdateUserInfo(userID, nickname, avatar string) error {
	result, err := db.conn.Exec(
		"UPDATE users SET nickname = ?, avatar = ? WHERE id = ?",
		nickname, avatar, userID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

// Friendship methods

func (db *DB) AreFriends(userID, friendID string) (bool, error) {
	var count int
	err := db.conn.Get(&count,
		"SELECT COUNT(*) FROM friendships WHERE user_id = ? AND friend_id = ?",
		userID, friendID,
	)
	return count > 0, err
}

// AddFriendship inserts one directed edge; existing edges are kept as is.
func (db *DB) AddFriendship(userID, friendID string) error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO friendships (user_id, friend_id, create_time) VALUES (?, ?, ?)",
		userID, friendID, time.Now().UTC(),
	)
	return err
}

func (db *DB) FriendIDs(userID string) ([]string, error) {
	var ids []string
	err := db.conn.Select(&ids, "SELECT friend_id FROM friendships WHERE user_id = ?", userID)
	return ids, err
}

// Friends returns the full user rows of userID's friends.
func (db *DB) Friends(userID string) ([]models.User, error) {
	var users []models.User
	err := db.conn.Select(&users, `
		SELECT u.* FROM users u
		JOIN friendships f ON f.friend_id = u.id
		WHERE f.user_id = ?`, userID)
	return users, err
}

// Friend request methods

func (db *DB) HasPendingRequest(senderID, receiverID string) (bool, error) {
	var count int
	err := db.conn.Get(&count,
		"SELECT COUNT(*) FROM friend_requests WHERE sender_id = ? AND receiver_id = ? AND status = ?",
		senderID, receiverID, models.RequestPending,
	)
	return count > 0, err
}

func (db *DB) CreateFriendRequest(senderID, receiverID string) error {
	_, err := db.conn.Exec(
		"INSERT INTO friend_requests (sender_id, receiver_id, status, create_time) VALUES (?, ?, ?, ?)",
		senderID, receiverID, models.RequestPending, time.Now().UTC(),
	)
	return err
}

func (db *DB) PendingRequestsFor(receiverID string) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := db.conn.Select(&reqs,
		"SELECT * FROM friend_requests WHERE receiver_id = ? AND status = ? ORDER BY create_time ASC",
		receiverID, models.RequestPending,
	)
	return reqs, err
}

// ResolveFriendRequest moves the pending request senderID->receiverID to a
// terminal status. ErrNoRows means there was no pending request to action.
func (db *DB) ResolveFriendRequest(senderID, receiverID string, status int) error {
	result, err := db.conn.Exec(
		"UPDATE friend_requests SET status = ? WHERE sender_id = ? AND receiver_id = ? AND status = ?",
		status, senderID, receiverID, models.RequestPending,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

// Group methods

func (db *DB) CreateGroup(g *models.Group, memberIDs []string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO chat_groups (id, name, owner_id, create_time) VALUES (?, ?, ?, ?)",
		g.ID, g.Name, g.OwnerID, g.CreateTime,
	); err != nil {
		return err
	}

	for _, uid := range memberIDs {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)",
			g.ID, uid,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) GroupsFor(userID string) ([]models.Group, error) {
	var groups []models.Group
	err := db.conn.Select(&groups, `
		SELECT g.* FROM chat_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?`, userID)
	return groups, err
}

func (db *DB) GroupMemberIDs(groupID string) ([]string, error) {
	var ids []string
	err := db.conn.Select(&ids, "SELECT user_id FROM group_members WHERE group_id = ?", groupID)
	return ids, err
}

func (db *DB) GroupMembers(groupID string) ([]models.User, error) {
	var users []models.User
	err := db.conn.Select(&users, `
		SELECT u.* FROM users u
		JOIN group_members m ON m.user_id = u.id
		WHERE m.group_id = ?`, groupID)
	return users, err
}

// Message methods

func (db *DB) SaveMessage(m *models.Message) error {
	_, err := db.conn.Exec(`
		INSERT INTO messages
			(id, sender_id, receiver_id, content, send_time, is_group, type,
			 sender_name, sender_avatar, file_name, file_size, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.SendTime, m.IsGroup, m.Type,
		m.SenderName, m.SenderAvatar, m.FileName, m.FileSize, m.Delivered,
	)
	return err
}

// UndeliveredMessages returns queued direct messages for userID in ascending
// send-time order, the order they are replayed in on login.
func (db *DB) UndeliveredMessages(userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := db.conn.Select(&msgs, `
		SELECT * FROM messages
		WHERE receiver_id = ? AND is_group = 0 AND delivered = 0
		ORDER BY send_time ASC`, userID)
	return msgs, err
}

func (db *DB) MarkDelivered(messageID string) error {
	_, err := db.conn.Exec("UPDATE messages SET delivered = 1 WHERE id = ?", messageID)
	return err
}

func (db *DB) GetMessage(messageID string) (*models.Message, error) {
	var m models.Message
	err := db.conn.Get(&m, "SELECT * FROM messages WHERE id = ?", messageID)
	if err == sql.ErrNoRows {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
