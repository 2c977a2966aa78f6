package protocol

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Type tags select the payload schema of a Packet. Client and server agree
// on this enumeration out of band; there is no version negotiation.
type PacketType int32

const (
	TypeUnknown                     PacketType = 0
	TypeLoginRequest                PacketType = 1
	TypeLoginResponse               PacketType = 2
	TypeRegisterRequest             PacketType = 3
	TypeRegisterResponse            PacketType = 4
	TypeChatMessage                 PacketType = 5
	TypeSearchUserRequest           PacketType = 6
	TypeSearchUserResponse          PacketType = 7
	TypeAddFriendRequest            PacketType = 8
	TypeAddFriendResponse           PacketType = 9
	TypeFriendRequestNotification   PacketType = 10
	TypeHandleFriendRequestRequest  PacketType = 11
	TypeHandleFriendRequestResponse PacketType = 12
	TypeGetFriendListRequest        PacketType = 13
	TypeGetFriendListResponse       PacketType = 14
	TypeFriendStatusNotice          PacketType = 15
	TypeCreateGroupRequest          PacketType = 16
	TypeCreateGroupResponse         PacketType = 17
	TypeGetGroupListRequest         PacketType = 18
	TypeGetGroupListResponse        PacketType = 19
	TypeGetGroupMembersRequest      PacketType = 20
	TypeGetGroupMembersResponse     PacketType = 21
	TypeResetPasswordRequest        PacketType = 22
	TypeResetPasswordResponse       PacketType = 23
	TypeUpdateUserInfoRequest       PacketType = 24
	TypeUpdateUserInfoResponse      PacketType = 25
	TypeFriendInfoUpdateNotice      PacketType = 26
	TypeGroupInvitationNotification PacketType = 27
	TypeKickNotice                  PacketType = 28
)

// Packet is the typed envelope exchanged over the wire. On the stream it is
// preceded by a 4-byte little-endian length covering the serialized envelope.
type Packet struct {
	Type      PacketType `msgpack:"type"`
	Payload   []byte     `msgpack:"payload"`
	Timestamp int64      `msgpack:"ts"` // unix milliseconds
}

// NewPacket serializes payload and wraps it into an envelope stamped with the
// current time.
func NewPacket(t PacketType, payload interface{}) (*Packet, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Packet{Type: t, Payload: body, Timestamp: time.Now().UnixMilli()}, nil
}

// Decode deserializes the packet payload into out.
func (p *Packet) Decode(out interface{}) error {
	return msgpack.Unmarshal(p.Payload, out)
}
