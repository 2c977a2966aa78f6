package models

import "time"

// Message content types.
const (
	MsgText     int32 = 0
	MsgImage    int32 = 1
	MsgFile     int32 = 2
	MsgAIStream int32 = 3
)

// Friend request states.
const (
	RequestPending  int = 0
	RequestAccepted int = 1
	RequestRejected int = 2
)

type User struct {
	ID         string    `db:"id"`
	Account    string    `db:"account"`
	Password   string    `db:"password"` // bcrypt hash
	Nickname   string    `db:"nickname"`
	Avatar     string    `db:"avatar"` // "#RRGGBB" color
	CreateTime time.Time `db:"create_time"`
}

type Friendship struct {
	UserID     string    `db:"user_id"`
	FriendID   string    `db:"friend_id"`
	CreateTime time.Time `db:"create_time"`
}

type FriendRequest struct {
	ID         int64     `db:"id"`
	SenderID   string    `db:"sender_id"`
	ReceiverID string    `db:"receiver_id"`
	Status     int       `db:"status"`
	CreateTime time.Time `db:"create_time"`
}

type Group struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	OwnerID    string    `db:"owner_id"`
	CreateTime time.Time `db:"create_time"`
}

type GroupMember struct {
	GroupID string `db:"group_id"`
	UserID  string `db:"user_id"`
}

// Message is a persisted chat message. Delivered is false only for direct
// messages whose receiver was offline at send time; those are replayed on
// the receiver's next login.
type Message struct {
	ID           string `db:"id"`
	SenderID     string `db:"sender_id"`
	ReceiverID   string `db:"receiver_id"` // user id, or group id when IsGroup
	Content      string `db:"content"`
	SendTime     int64  `db:"send_time"` // unix milliseconds
	IsGroup      bool   `db:"is_group"`
	Type         int32  `db:"type"`
	SenderName   string `db:"sender_name"`
	SenderAvatar string `db:"sender_avatar"`
	FileName     string `db:"file_name"`
	FileSize     int64  `db:"file_size"`
	Delivered    bool   `db:"delivered"`
}
