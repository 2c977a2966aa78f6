package server

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"mychat/db"
	"mychat/models"
	"mychat/protocol"
)

// handlePacket dispatches one decoded packet on the connection's receive
// goroutine. Handlers run to completion before the next packet on the same
// connection; different connections are handled fully in parallel.
func (s *Server) handlePacket(c *Conn, pkt *protocol.Packet) {
	switch pkt.Type {
	case protocol.TypeLoginRequest:
		s.handleLogin(c, pkt)
	case protocol.TypeRegisterRequest:
		s.handleRegister(c, pkt)
	case protocol.TypeChatMessage:
		s.handleChatMessage(c, pkt)
	case protocol.TypeSearchUserRequest:
		s.handleSearchUser(c, pkt)
	case protocol.TypeAddFriendRequest:
		s.handleAddFriend(c, pkt)
	case protocol.TypeHandleFriendRequestRequest:
		s.handleFriendRequestDecision(c, pkt)
	case protocol.TypeGetFriendListRequest:
		s.handleGetFriendList(c, pkt)
	case protocol.TypeCreateGroupRequest:
		s.handleCreateGroup(c, pkt)
	case protocol.TypeGetGroupListRequest:
		s.handleGetGroupList(c, pkt)
	case protocol.TypeGetGroupMembersRequest:
		s.handleGetGroupMembers(c, pkt)
	case protocol.TypeResetPasswordRequest:
		s.handleResetPassword(c, pkt)
	case protocol.TypeUpdateUserInfoRequest:
		s.handleUpdateUserInfo(c, pkt)
	default:
		log.Printf("unknown packet type %d from %s", pkt.Type, c.RemoteAddr())
	}
}

// respond wraps payload into a packet and sends it on c.
func (s *Server) respond(c *Conn, t protocol.PacketType, payload interface{}) {
	pkt, err := protocol.NewPacket(t, payload)
	if err != nil {
		log.Printf("encode response type %d: %v", t, err)
		return
	}
	c.send(pkt)
}

// pushTo delivers an unsolicited notice to userID if currently registered.
func (s *Server) pushTo(userID string, t protocol.PacketType, payload interface{}) {
	target, ok := s.registry.Lookup(userID)
	if !ok {
		return
	}
	pkt, err := protocol.NewPacket(t, payload)
	if err != nil {
		log.Printf("encode notice type %d: %v", t, err)
		return
	}
	target.send(pkt)
}

func (s *Server) handleLogin(c *Conn, pkt *protocol.Packet) {
	var req protocol.LoginReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("login decode error: %v", err)
		s.respond(c, protocol.TypeLoginResponse, &protocol.LoginResp{Message: "bad request"})
		return
	}

	resp := &protocol.LoginResp{}
	user, err := s.db.FindUserByAccount(req.Account)
	switch {
	case errors.Is(err, db.ErrNoRows):
		resp.Message = "account does not exist"
	case err != nil:
		log.Printf("login lookup error: %v", err)
		resp.Message = "internal error"
	case !s.db.CheckPassword(user, req.Password):
		resp.Message = "wrong password"
	case c.UserID() != "" && c.UserID() != user.ID:
		// The registry would map the new id to this connection while the
		// disconnect cleanup only clears the first one.
		resp.Message = "connection already logged in as another account"
	default:
		resp.IsSuccess = true
		resp.Message = "login ok"
		resp.UserID = user.ID
		resp.Nickname = user.Nickname
		resp.Avatar = user.Avatar
	}

	if resp.IsSuccess {
		s.registry.RegisterUser(user.ID, c)
		// Presence broadcast and replay must not delay the response.
		go s.afterLogin(user.ID)
	}

	s.respond(c, protocol.TypeLoginResponse, resp)
}

func (s *Server) handleRegister(c *Conn, pkt *protocol.Packet) {
	var req protocol.RegisterReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("register decode error: %v", err)
		s.respond(c, protocol.TypeRegisterResponse, &protocol.RegisterResp{Message: "bad request"})
		return
	}

	resp := &protocol.RegisterResp{}

	if _, err := s.db.FindUserByAccount(req.Account); err == nil {
		resp.Message = "account already exists"
		s.respond(c, protocol.TypeRegisterResponse, resp)
		return
	} else if !errors.Is(err, db.ErrNoRows) {
		log.Printf("register lookup error: %v", err)
		resp.Message = "internal error"
		s.respond(c, protocol.TypeRegisterResponse, resp)
		return
	}

	newUser := &models.User{
		ID:         newShortID(),
		Account:    req.Account,
		Nickname:   req.Nickname,
		Avatar:     randomAvatar(),
		CreateTime: time.Now().UTC(),
	}

	if err := s.db.CreateUser(newUser, req.Password); err != nil {
		log.Printf("register insert error: %v", err)
		resp.Message = "internal error"
		s.respond(c, protocol.TypeRegisterResponse, resp)
		return
	}

	// New users are friended with the admin account right away, so the
	// directory is never empty on first login.
	if err := s.db.AddFriendship(newUser.ID, s.config.AdminUserID); err != nil {
		log.Printf("register auto-friend error: %v", err)
	}
	if err := s.db.AddFriendship(s.config.AdminUserID, newUser.ID); err != nil {
		log.Printf("register auto-friend error: %v", err)
	}
	s.pushFriendList(s.config.AdminUserID)

	resp.IsSuccess = true
	resp.Message = "registered"
	resp.NewUserID = newUser.ID
	s.respond(c, protocol.TypeRegisterResponse, resp)
}

func (s *Server) handleChatMessage(c *Conn, pkt *protocol.Packet) {
	var msg protocol.ChatMsg
	if err := pkt.Decode(&msg); err != nil {
		log.Printf("chat decode error: %v", err)
		return
	}

	// In-band admin commands never reach the normal persist/forward path.
	if cmd, args, ok := parseAdminCommand(msg.Content); ok && s.isAdmin(msg.SenderID) {
		s.runAdminCommand(cmd, args)
		return
	}

	record := &models.Message{
		ID:           msg.ID,
		SenderID:     msg.SenderID,
		ReceiverID:   msg.ReceiverID,
		Content:      msg.Content,
		SendTime:     msg.SendTime,
		IsGroup:      msg.IsGroup,
		Type:         msg.Type,
		SenderName:   msg.SenderName,
		SenderAvatar: msg.SenderAvatar,
		FileName:     msg.FileName,
		FileSize:     msg.FileSize,
	}

	switch {
	case msg.ReceiverID == s.config.BotUserID:
		// The reply stream carries the visible content; the inbound
		// record is considered delivered immediately.
		record.Delivered = true
		go s.relayAIReply(c, msg)

	case msg.IsGroup:
		// Best effort to whoever is online now; group messages are not
		// queued per offline member.
		record.Delivered = true
		memberIDs, err := s.db.GroupMemberIDs(msg.ReceiverID)
		if err != nil {
			log.Printf("group member lookup error: %v", err)
			break
		}
		for _, memberID := range memberIDs {
			if memberID == msg.SenderID {
				continue
			}
			if member, ok := s.registry.Lookup(memberID); ok {
				member.send(pkt)
			}
		}

	default:
		if receiver, ok := s.registry.Lookup(msg.ReceiverID); ok {
			receiver.send(pkt)
			record.Delivered = true
		}
	}

	if err := s.db.SaveMessage(record); err != nil {
		log.Printf("persist message %s error: %v", record.ID, err)
	}
}

func (s *Server) handleSearchUser(c *Conn, pkt *protocol.Packet) {
	var req protocol.SearchUserReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("search decode error: %v", err)
		s.respond(c, protocol.TypeSearchUserResponse, &protocol.SearchUserResp{})
		return
	}

	resp := &protocol.SearchUserResp{}
	user, err := s.db.FindUserByAccount(req.Account)
	if err == nil {
		resp.IsSuccess = true
		resp.UserID = user.ID
		resp.Account = user.Account
		resp.Nickname = user.Nickname
	} else if !errors.Is(err, db.ErrNoRows) {
		log.Printf("search error: %v", err)
	}

	s.respond(c, protocol.TypeSearchUserResponse, resp)
}

func (s *Server) handleAddFriend(c *Conn, pkt *protocol.Packet) {
	var req protocol.AddFriendReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("add friend decode error: %v", err)
		s.respond(c, protocol.TypeAddFriendResponse, &protocol.AddFriendResp{Message: "bad request"})
		return
	}

	already, err := s.db.AreFriends(req.MyUserID, req.FriendUserID)
	if err != nil {
		log.Printf("add friend check error: %v", err)
		s.respond(c, protocol.TypeAddFriendResponse, &protocol.AddFriendResp{Message: "internal error"})
		return
	}
	if already {
		s.respond(c, protocol.TypeAddFriendResponse, &protocol.AddFriendResp{Message: "already friends"})
		return
	}

	// At most one pending request per ordered (sender, receiver) pair; a
	// duplicate submission is acknowledged without a second record.
	pending, err := s.db.HasPendingRequest(req.MyUserID, req.FriendUserID)
	if err != nil {
		log.Printf("add friend pending check error: %v", err)
		s.respond(c, protocol.TypeAddFriendResponse, &protocol.AddFriendResp{Message: "internal error"})
		return
	}

	if !pending {
		if err := s.db.CreateFriendRequest(req.MyUserID, req.FriendUserID); err != nil {
			log.Printf("add friend insert error: %v", err)
			s.respond(c, protocol.TypeAddFriendResponse, &protocol.AddFriendResp{Message: "internal error"})
			return
		}

		nickname := "unknown"
		if sender, err := s.db.FindUserByID(req.MyUserID); err == nil {
			nickname = sender.Nickname
		}
		s.pushTo(req.FriendUserID, protocol.TypeFriendRequestNotification, &protocol.FriendRequestNotification{
			SenderID:       req.MyUserID,
			SenderNickname: nickname,
		})
	}

	s.respond(c, protocol.TypeAddFriendResponse, &protocol.AddFriendResp{
		IsSuccess: true,
		Message:   "friend request sent",
	})
}

func (s *Server) handleFriendRequestDecision(c *Conn, pkt *protocol.Packet) {
	var req protocol.HandleFriendRequestReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("friend decision decode error: %v", err)
		s.respond(c, protocol.TypeHandleFriendRequestResponse, &protocol.HandleFriendRequestResp{Message: "bad request"})
		return
	}

	// Only the receiver of the request may action it.
	myID := c.UserID()
	if myID == "" {
		s.respond(c, protocol.TypeHandleFriendRequestResponse, &protocol.HandleFriendRequestResp{Message: "not authenticated"})
		return
	}

	status := models.RequestRejected
	if req.IsAccept {
		status = models.RequestAccepted
	}

	err := s.db.ResolveFriendRequest(req.RequesterID, myID, status)
	if errors.Is(err, db.ErrNoRows) {
		s.respond(c, protocol.TypeHandleFriendRequestResponse, &protocol.HandleFriendRequestResp{
			Message:  "no pending request",
			FriendID: req.RequesterID,
		})
		return
	}
	if err != nil {
		log.Printf("friend decision update error: %v", err)
		s.respond(c, protocol.TypeHandleFriendRequestResponse, &protocol.HandleFriendRequestResp{
			Message:  "internal error",
			FriendID: req.RequesterID,
		})
		return
	}

	message := "rejected"
	if req.IsAccept {
		message = "accepted"
		// The friendship is symmetric: both directed edges are created.
		if err := s.db.AddFriendship(req.RequesterID, myID); err != nil {
			log.Printf("friendship insert error: %v", err)
		}
		if err := s.db.AddFriendship(myID, req.RequesterID); err != nil {
			log.Printf("friendship insert error: %v", err)
		}

		myNickname := "your request"
		if me, err := s.db.FindUserByID(myID); err == nil {
			myNickname = me.Nickname
		}
		s.pushTo(req.RequesterID, protocol.TypeHandleFriendRequestResponse, &protocol.HandleFriendRequestResp{
			IsSuccess: true,
			Message:   myNickname + " accepted your request",
			FriendID:  myID,
		})
	}

	s.respond(c, protocol.TypeHandleFriendRequestResponse, &protocol.HandleFriendRequestResp{
		IsSuccess: true,
		Message:   message,
		FriendID:  req.RequesterID,
	})
}

func (s *Server) handleGetFriendList(c *Conn, pkt *protocol.Packet) {
	var req protocol.GetFriendListReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("friend list decode error: %v", err)
		s.respond(c, protocol.TypeGetFriendListResponse, &protocol.GetFriendListResp{})
		return
	}

	// Every user gets the AI bot in their list; one directed edge is
	// enough, the bot answers without a reverse edge.
	if already, err := s.db.AreFriends(req.UserID, s.config.BotUserID); err == nil && !already {
		if err := s.db.AddFriendship(req.UserID, s.config.BotUserID); err != nil {
			log.Printf("bot auto-friend error: %v", err)
		}
	}

	resp := &protocol.GetFriendListResp{}
	friends, err := s.db.Friends(req.UserID)
	if err != nil {
		log.Printf("friend list error: %v", err)
		s.respond(c, protocol.TypeGetFriendListResponse, resp)
		return
	}

	for _, friend := range friends {
		_, online := s.registry.Lookup(friend.ID)
		resp.Friends = append(resp.Friends, protocol.FriendInfo{
			UserID:   friend.ID,
			Nickname: friend.Nickname,
			Avatar:   friend.Avatar,
			IsOnline: online || friend.ID == s.config.BotUserID,
		})
	}

	s.respond(c, protocol.TypeGetFriendListResponse, resp)
}

func (s *Server) handleCreateGroup(c *Conn, pkt *protocol.Packet) {
	var req protocol.CreateGroupReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("create group decode error: %v", err)
		s.respond(c, protocol.TypeCreateGroupResponse, &protocol.CreateGroupResp{Message: "bad request"})
		return
	}

	ownerID := c.UserID()
	if ownerID == "" {
		s.respond(c, protocol.TypeCreateGroupResponse, &protocol.CreateGroupResp{Message: "not authenticated"})
		return
	}

	group := &models.Group{
		ID:         newShortID(),
		Name:       req.GroupName,
		OwnerID:    ownerID,
		CreateTime: time.Now().UTC(),
	}

	memberIDs := append([]string{ownerID}, req.MemberIDs...)
	if err := s.db.CreateGroup(group, memberIDs); err != nil {
		log.Printf("create group error: %v", err)
		s.respond(c, protocol.TypeCreateGroupResponse, &protocol.CreateGroupResp{Message: "internal error"})
		return
	}

	for _, memberID := range req.MemberIDs {
		if memberID == ownerID {
			continue
		}
		s.pushTo(memberID, protocol.TypeGroupInvitationNotification, &protocol.GroupInvitationNotification{
			GroupID:   group.ID,
			GroupName: group.Name,
			InviterID: ownerID,
		})
	}

	s.respond(c, protocol.TypeCreateGroupResponse, &protocol.CreateGroupResp{
		IsSuccess: true,
		Message:   "group created",
		GroupID:   group.ID,
		GroupName: group.Name,
	})
}

func (s *Server) handleGetGroupList(c *Conn, pkt *protocol.Packet) {
	var req protocol.GetGroupListReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("group list decode error: %v", err)
		s.respond(c, protocol.TypeGetGroupListResponse, &protocol.GetGroupListResp{})
		return
	}

	resp := &protocol.GetGroupListResp{}
	groups, err := s.db.GroupsFor(req.UserID)
	if err != nil {
		log.Printf("group list error: %v", err)
	}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, protocol.GroupInfo{
			GroupID:   g.ID,
			GroupName: g.Name,
			OwnerID:   g.OwnerID,
		})
	}

	s.respond(c, protocol.TypeGetGroupListResponse, resp)
}

func (s *Server) handleGetGroupMembers(c *Conn, pkt *protocol.Packet) {
	var req protocol.GetGroupMembersReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("group members decode error: %v", err)
		s.respond(c, protocol.TypeGetGroupMembersResponse, &protocol.GetGroupMembersResp{})
		return
	}

	resp := &protocol.GetGroupMembersResp{GroupID: req.GroupID}
	members, err := s.db.GroupMembers(req.GroupID)
	if err != nil {
		log.Printf("group members error: %v", err)
	}
	for _, member := range members {
		_, online := s.registry.Lookup(member.ID)
		resp.Members = append(resp.Members, protocol.GroupMemberInfo{
			UserID:   member.ID,
			Nickname: member.Nickname,
			Avatar:   member.Avatar,
			IsOnline: online,
		})
	}

	s.respond(c, protocol.TypeGetGroupMembersResponse, resp)
}

func (s *Server) handleResetPassword(c *Conn, pkt *protocol.Packet) {
	var req protocol.ResetPasswordReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("reset password decode error: %v", err)
		s.respond(c, protocol.TypeResetPasswordResponse, &protocol.ResetPasswordResp{Message: "bad request"})
		return
	}

	resp := &protocol.ResetPasswordResp{}
	user, err := s.db.FindUserByAccount(req.Account)
	switch {
	case errors.Is(err, db.ErrNoRows):
		resp.Message = "account does not exist"
	case err != nil:
		log.Printf("reset password lookup error: %v", err)
		resp.Message = "internal error"
	case user.Nickname != req.Nickname:
		resp.Message = "identity check failed"
	default:
		if err := s.db.UpdatePassword(user.ID, req.NewPassword); err != nil {
			log.Printf("reset password update error: %v", err)
			resp.Message = "internal error"
		} else {
			resp.IsSuccess = true
			resp.Message = "password reset"
		}
	}

	s.respond(c, protocol.TypeResetPasswordResponse, resp)
}

func (s *Server) handleUpdateUserInfo(c *Conn, pkt *protocol.Packet) {
	var req protocol.UpdateUserInfoReq
	if err := pkt.Decode(&req); err != nil {
		log.Printf("update info decode error: %v", err)
		s.respond(c, protocol.TypeUpdateUserInfoResponse, &protocol.UpdateUserInfoResp{Message: "bad request"})
		return
	}

	// A connection may only update the identity it authenticated as.
	if c.UserID() == "" || c.UserID() != req.UserID {
		s.respond(c, protocol.TypeUpdateUserInfoResponse, &protocol.UpdateUserInfoResp{Message: "not authorized"})
		return
	}

	if err := s.db.UpdateUserInfo(req.UserID, req.Nickname, req.Avatar); err != nil {
		log.Printf("update info error: %v", err)
		s.respond(c, protocol.TypeUpdateUserInfoResponse, &protocol.UpdateUserInfoResp{Message: "internal error"})
		return
	}

	// Online friends see the change without a refresh round trip.
	if friendIDs, err := s.db.FriendIDs(req.UserID); err == nil {
		for _, friendID := range friendIDs {
			s.pushTo(friendID, protocol.TypeFriendInfoUpdateNotice, &protocol.FriendInfoUpdateNotice{
				FriendID: req.UserID,
				Nickname: req.Nickname,
				Avatar:   req.Avatar,
			})
		}
	}

	s.respond(c, protocol.TypeUpdateUserInfoResponse, &protocol.UpdateUserInfoResp{
		IsSuccess: true,
		Message:   "updated",
	})
}

// pushFriendList sends a refreshed friend list to userID if online.
func (s *Server) pushFriendList(userID string) {
	if _, ok := s.registry.Lookup(userID); !ok {
		return
	}

	resp := &protocol.GetFriendListResp{}
	friends, err := s.db.Friends(userID)
	if err != nil {
		log.Printf("friend list push error: %v", err)
		return
	}
	for _, friend := range friends {
		_, online := s.registry.Lookup(friend.ID)
		resp.Friends = append(resp.Friends, protocol.FriendInfo{
			UserID:   friend.ID,
			Nickname: friend.Nickname,
			Avatar:   friend.Avatar,
			IsOnline: online || friend.ID == s.config.BotUserID,
		})
	}
	s.pushTo(userID, protocol.TypeGetFriendListResponse, resp)
}

// newShortID returns the 8-char ids used for users and groups.
func newShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// randomAvatar picks a color-coded default avatar for new accounts.
func randomAvatar() string {
	return fmt.Sprintf("#%06X", rand.Intn(0xF00000)+0x100000)
}
