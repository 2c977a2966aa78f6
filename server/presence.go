package server

import (
	"log"

	"mychat/protocol"
)

// afterLogin runs off the login handler's goroutine so the response is
// never delayed: presence broadcast, ordered offline replay, and replay of
// pending friend requests.
func (s *Server) afterLogin(userID string) {
	s.notifyFriendsStatus(userID, true)
	s.replayOfflineMessages(userID)
	s.replayPendingRequests(userID)
}

// notifyFriendsStatus pushes an online/offline notice to every friend that
// is currently registered.
func (s *Server) notifyFriendsStatus(userID string, online bool) {
	friendIDs, err := s.db.FriendIDs(userID)
	if err != nil {
		log.Printf("presence friend lookup error: %v", err)
		return
	}

	for _, friendID := range friendIDs {
		s.pushTo(friendID, protocol.TypeFriendStatusNotice, &protocol.FriendStatusNotice{
			FriendID: userID,
			IsOnline: online,
		})
	}
}

// replayOfflineMessages flushes queued direct messages in ascending
// send-time order. Each one is marked delivered as it goes out, so a
// second replay cannot duplicate delivery.
func (s *Server) replayOfflineMessages(userID string) {
	msgs, err := s.db.UndeliveredMessages(userID)
	if err != nil {
		log.Printf("offline replay query error: %v", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	target, ok := s.registry.Lookup(userID)
	if !ok {
		// Already gone again; the queue stays intact for the next login.
		return
	}

	log.Printf("replaying %d offline messages to %s", len(msgs), userID)
	for _, m := range msgs {
		pkt, err := protocol.NewPacket(protocol.TypeChatMessage, &protocol.ChatMsg{
			ID:           m.ID,
			SenderID:     m.SenderID,
			ReceiverID:   m.ReceiverID,
			Content:      m.Content,
			SendTime:     m.SendTime,
			IsGroup:      m.IsGroup,
			Type:         m.Type,
			SenderName:   m.SenderName,
			SenderAvatar: m.SenderAvatar,
			FileName:     m.FileName,
			FileSize:     m.FileSize,
		})
		if err != nil {
			log.Printf("offline replay encode error: %v", err)
			continue
		}
		if err := target.Send(pkt); err != nil {
			// The rest stays queued for the next login.
			log.Printf("offline replay aborted for %s: %v", userID, err)
			return
		}
		if err := s.db.MarkDelivered(m.ID); err != nil {
			log.Printf("offline replay mark error: %v", err)
		}
	}
}

// replayPendingRequests re-pushes friend requests that arrived while the
// user was offline.
func (s *Server) replayPendingRequests(userID string) {
	reqs, err := s.db.PendingRequestsFor(userID)
	if err != nil {
		log.Printf("pending request query error: %v", err)
		return
	}

	for _, req := range reqs {
		nickname := "unknown"
		if sender, err := s.db.FindUserByID(req.SenderID); err == nil {
			nickname = sender.Nickname
		}
		s.pushTo(userID, protocol.TypeFriendRequestNotification, &protocol.FriendRequestNotification{
			SenderID:       req.SenderID,
			SenderNickname: nickname,
		})
	}
}
