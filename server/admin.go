package server

import (
	"log"
	"strings"
	"time"

	"mychat/protocol"
)

const (
	cmdBroadcast = "/broadcast"
	cmdKick      = "/kick"
)

// parseAdminCommand recognizes the in-band textual commands carried inside
// an ordinary chat message.
func parseAdminCommand(content string) (cmd, args string, ok bool) {
	for _, known := range []string{cmdBroadcast, cmdKick} {
		if content == known {
			return known, "", true
		}
		if strings.HasPrefix(content, known+" ") {
			return known, strings.TrimSpace(content[len(known)+1:]), true
		}
	}
	return "", "", false
}

// isAdmin is the single authorization point for admin commands: the
// configured admin id, or a persisted nickname matching the admin marker.
// The nickname rule is legacy behavior; tighten it here when needed.
func (s *Server) isAdmin(senderID string) bool {
	if senderID == s.config.AdminUserID {
		return true
	}

	user, err := s.db.FindUserByID(senderID)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(user.Nickname), strings.ToLower(s.config.AdminMarker))
}

func (s *Server) runAdminCommand(cmd, args string) {
	switch cmd {
	case cmdBroadcast:
		s.Broadcast(args)
	case cmdKick:
		s.Kick(args)
	}
}

// Broadcast fans a system chat message out to every registered connection.
func (s *Server) Broadcast(text string) {
	pkt, err := protocol.NewPacket(protocol.TypeChatMessage, &protocol.ChatMsg{
		ID:         newShortID(),
		SenderID:   s.config.AdminUserID,
		Content:    text,
		SendTime:   time.Now().UnixMilli(),
		SenderName: "System",
	})
	if err != nil {
		log.Printf("broadcast encode error: %v", err)
		return
	}

	conns := s.registry.Connections()
	for _, c := range conns {
		c.send(pkt)
	}
	log.Printf("broadcast to %d connections: %s", len(conns), text)
}

// Kick sends one notice to the target user, then disconnects them and
// removes them from the registry.
func (s *Server) Kick(userID string) {
	c := s.registry.RemoveUser(userID)
	if c == nil {
		log.Printf("kick: user %s is not online", userID)
		return
	}

	if pkt, err := protocol.NewPacket(protocol.TypeKickNotice, &protocol.KickNotice{
		Reason: "removed by administrator",
	}); err == nil {
		c.send(pkt)
	}
	c.Close()
	log.Printf("kicked user %s", userID)
}
