package server

import (
	"log"
	"time"

	"github.com/google/uuid"

	"mychat/models"
	"mychat/protocol"
)

// relayAIReply bridges the streaming completion collaborator to the wire:
// every increment goes out as an AIStream chat message sharing one reply
// id, and exactly one consolidated Text record is persisted at the end.
// It runs on its own goroutine under the originating connection's context,
// so a disconnect cancels the in-flight completion call.
func (s *Server) relayAIReply(c *Conn, inbound protocol.ChatMsg) {
	if s.ai == nil {
		log.Printf("ai relay: no completer configured, dropping message from %s", inbound.SenderID)
		return
	}

	replyID := uuid.NewString()

	sendChunk := func(chunk string) error {
		// Looked up per chunk: the sender may have reconnected on a
		// different connection mid-stream.
		target, ok := s.registry.Lookup(inbound.SenderID)
		if !ok {
			return nil
		}
		pkt, err := protocol.NewPacket(protocol.TypeChatMessage, &protocol.ChatMsg{
			ID:           replyID,
			SenderID:     s.config.BotUserID,
			ReceiverID:   inbound.SenderID,
			Content:      chunk,
			SendTime:     time.Now().UnixMilli(),
			Type:         models.MsgAIStream,
			SenderName:   "AI Assistant",
			SenderAvatar: "#00B894",
		})
		if err != nil {
			return err
		}
		target.send(pkt)
		return nil
	}

	full, err := s.ai.StreamReply(c.Context(), inbound.Content, sendChunk)
	if err != nil {
		log.Printf("ai relay error for %s: %v", inbound.SenderID, err)
		errNotice := "\n[system] AI connection interrupted."
		if err := sendChunk(errNotice); err != nil {
			log.Printf("ai relay error notice failed: %v", err)
		}
		full += errNotice
	}

	// The intermediate chunks are never persisted; the reply is stored
	// once, as an ordinary text message.
	record := &models.Message{
		ID:           replyID,
		SenderID:     s.config.BotUserID,
		ReceiverID:   inbound.SenderID,
		Content:      full,
		SendTime:     time.Now().UnixMilli(),
		Type:         models.MsgText,
		SenderName:   "AI Assistant",
		SenderAvatar: "#00B894",
		Delivered:    true,
	}
	if err := s.db.SaveMessage(record); err != nil {
		log.Printf("ai relay persist error: %v", err)
	}
}
