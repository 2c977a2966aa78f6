package protocol

// Payload messages. One struct per packet type; field names follow the
// entities they describe, not the storage schema.

type LoginReq struct {
	Account  string `msgpack:"account"`
	Password string `msgpack:"password"`
}

type LoginResp struct {
	IsSuccess bool   `msgpack:"is_success"`
	Message   string `msgpack:"message"`
	UserID    string `msgpack:"user_id"`
	Nickname  string `msgpack:"nickname"`
	Avatar    string `msgpack:"avatar"`
}

type RegisterReq struct {
	Account  string `msgpack:"account"`
	Password string `msgpack:"password"`
	Nickname string `msgpack:"nickname"`
}

type RegisterResp struct {
	IsSuccess bool   `msgpack:"is_success"`
	Message   string `msgpack:"message"`
	NewUserID string `msgpack:"new_user_id"`
}

// ChatMsg travels in both directions: inbound from the sender and forwarded
// verbatim to receivers. AIStream chunks share one ID for the whole reply.
type ChatMsg struct {
	ID           string `msgpack:"id"`
	SenderID     string `msgpack:"sender_id"`
	ReceiverID   string `msgpack:"receiver_id"`
	Content      string `msgpack:"content"`
	SendTime     int64  `msgpack:"send_time"`
	IsGroup      bool   `msgpack:"is_group"`
	Type         int32  `msgpack:"type"`
	SenderName   string `msgpack:"sender_name"`
	SenderAvatar string `msgpack:"sender_avatar"`
	FileName     string `msgpack:"file_name"`
	FileSize     int64  `msgpack:"file_size"`
}

type SearchUserReq struct {
	Account string `msgpack:"account"`
}

type SearchUserResp struct {
	IsSuccess bool   `msgpack:"is_success"`
	UserID    string `msgpack:"user_id"`
	Account   string `msgpack:"account"`
	Nickname  string `msgpack:"nickname"`
}

type AddFriendReq struct {
	MyUserID     string `msgpack:"my_user_id"`
	FriendUserID string `msgpack:"friend_user_id"`
}

type AddFriendResp struct {
	IsSuccess bool   `msgpack:"is_success"`
	Message   string `msgpack:"message"`
}

type FriendRequestNotification struct {
	SenderID       string `msgpack:"sender_id"`
	SenderNickname string `msgpack:"sender_nickname"`
}

type HandleFriendRequestReq struct {
	RequesterID string `msgpack:"requester_id"`
	IsAccept    bool   `msgpack:"is_accept"`
}

type HandleFriendRequestResp struct {
	IsSuccess bool   `msgpack:"is_success"`
	Message   string `msgpack:"message"`
	FriendID  string `msgpack:"friend_id"`
}

type GetFriendListReq struct {
	UserID string `msgpack:"user_id"`
}

type FriendInfo struct {
	UserID   string `msgpack:"user_id"`
	Nickname string `msgpack:"nickname"`
	Avatar   string `msgpack:"avatar"`
	IsOnline bool   `msgpack:"is_online"`
}

type GetFriendListResp struct {
	Friends []FriendInfo `msgpack:"friends"`
}

type FriendStatusNotice struct {
	FriendID string `msgpack:"friend_id"`
	IsOnline bool   `msgpack:"is_online"`
}

type CreateGroupReq struct {
	GroupName string   `msgpack:"group_name"`
	MemberIDs []string `msgpack:"member_ids"`
}

type CreateGroupResp struct {
	IsSuccess bool   `msgpack:"is_success"`
	Message   string `msgpack:"message"`
	GroupID   string `msgpack:"group_id"`
	GroupName string `msgpack:"group_name"`
}

type GetGroupListReq struct {
	UserID string `msgpack:"user_id"`
}

type GroupInfo struct {
	GroupID   string `msgpack:"group_id"`
	GroupName string `msgpack:"group_name"`
	OwnerID   string `msgpack:"owner_id"`
}

type GetGroupListResp struct {
	Groups []GroupInfo `msgpack:"groups"`
}

type GetGroupMembersReq struct {
	GroupID string `msgpack:"group_id"`
}

type GroupMemberInfo struct {
	UserID   string `msgpack:"user_id"`
	Nickname string `msgpack:"nickname"`
	Avatar   string `msgpack:"avatar"`
	IsOnline bool   `msgpack:"is_online"`
}

type GetGroupMembersResp struct {
	GroupID string            `msgpack:"group_id"`
	Members []GroupMemberInfo `msgpack:"members"`
}

type ResetPasswordReq struct {
	Account     string `msgpack:"account"`
	Nickname    string `msgpack:"nickname"`
	NewPassword string `msgpack:"new_password"`
}

type ResetPasswordResp struct {
	IsSuccess bool   `msgpack:"is_success"`
	Message   string `msgpack:"message"`
}

type UpdateUserInfoReq struct {
	UserID   string `msgpack:"user_id"`
	Nickname string `msgpack:"nickname"`
	Avatar   string `msgpack:"avatar"`
}

type UpdateUserInfoResp struct {
	IsSuccess bool   `msgpack:"is_success"`
	Message   string `msgpack:"message"`
}

type FriendInfoUpdateNotice struct {
	FriendID string `msgpack:"friend_id"`
	Nickname string `msgpack:"nickname"`
	Avatar   string `msgpack:"avatar"`
}

type GroupInvitationNotification struct {
	GroupID   string `msgpack:"group_id"`
	GroupName string `msgpack:"group_name"`
	InviterID string `msgpack:"inviter_id"`
}

type KickNotice struct {
	Reason string `msgpack:"reason"`
}
