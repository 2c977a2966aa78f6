package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"time"

	"mychat/db"
	"mychat/models"
	"mychat/protocol"
)

// Completer is the streaming text-generation collaborator. onChunk is
// invoked for every increment; the full concatenated reply is returned.
type Completer interface {
	StreamReply(ctx context.Context, prompt string, onChunk func(string) error) (string, error)
}

type Server struct {
	db       *db.DB
	config   *ServerConfig
	registry *Registry
	ai       Completer

	listener net.Listener
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFrameSize int

	AdminUserID string
	AdminMarker string
	BotUserID   string
}

func New(database *db.DB, config *ServerConfig, completer Completer) *Server {
	if config.MaxFrameSize == 0 {
		config.MaxFrameSize = 1 << 20
	}
	if config.AdminMarker == "" {
		config.AdminMarker = "admin"
	}

	return &Server{
		db:       database,
		config:   config,
		registry: NewRegistry(),
		ai:       completer,
	}
}

// Registry exposes the session registry for the control surface.
func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) Start() error {
	if err := s.seedAccounts(); err != nil {
		return fmt.Errorf("seed accounts: %w", err)
	}

	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.Port))
	if err != nil {
		return err
	}
	s.listener = listener
	defer listener.Close()

	log.Printf("mychat server started on port %d", s.config.Port)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// seedAccounts makes sure the admin and AI bot users exist so that the
// admin auto-friend policy and the AI relay always have a target.
func (s *Server) seedAccounts() error {
	seeds := []struct {
		user     *models.User
		password string
	}{
		{
			user: &models.User{
				ID:         s.config.AdminUserID,
				Account:    "admin",
				Nickname:   "Administrator",
				Avatar:     "#5B60F6",
				CreateTime: time.Now().UTC(),
			},
			password: "admin123",
		},
		{
			user: &models.User{
				ID:         s.config.BotUserID,
				Account:    "assistant",
				Nickname:   "AI Assistant",
				Avatar:     "#00B894",
				CreateTime: time.Now().UTC(),
			},
			password: "assistant",
		},
	}

	for _, seed := range seeds {
		if _, err := s.db.FindUserByID(seed.user.ID); err == nil {
			continue
		} else if !errors.Is(err, db.ErrNoRows) {
			return err
		}
		if err := s.db.CreateUser(seed.user, seed.password); err != nil {
			return err
		}
		log.Printf("seeded account %s (id %s)", seed.user.Account, seed.user.ID)
	}

	return nil
}

// handleConnection runs the receive loop for one socket. It exits on EOF,
// read error or kick, and performs disconnect cleanup exactly once.
func (s *Server) handleConnection(netConn net.Conn) {
	c := newConn(netConn, s.config.WriteTimeout)
	s.registry.Add(c)

	remoteAddr := c.RemoteAddr()
	log.Printf("client connected from %s", remoteAddr)

	defer func() {
		c.Close()
		s.registry.Remove(c)
		if uid := c.UserID(); uid != "" {
			// A re-login may have moved the identity to a newer connection;
			// only a user with no registered session left is reported offline.
			if _, still := s.registry.Lookup(uid); !still {
				s.notifyFriendsStatus(uid, false)
			}
			log.Printf("client %s disconnected from %s", uid, remoteAddr)
		} else {
			log.Printf("client disconnected from %s", remoteAddr)
		}
	}()

	decoder := protocol.NewDecoder(netConn, s.config.MaxFrameSize)

	for {
		netConn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		pkt, err := decoder.Next()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrBadPacket):
				// One frame was garbage; the stream is still framed.
				log.Printf("dropping malformed packet from %s: %v", remoteAddr, err)
				continue
			case errors.Is(err, protocol.ErrFrameTooLarge):
				log.Printf("disconnecting %s: %v", remoteAddr, err)
				return
			case errors.Is(err, io.EOF):
				return
			default:
				if !errors.Is(err, net.ErrClosed) {
					log.Printf("read error from %s: %v", remoteAddr, err)
				}
				return
			}
		}

		s.handlePacket(c, pkt)
	}
}

// Shutdown notifies every connection and closes it, then stops the
// listener.
func (s *Server) Shutdown(reason string) {
	if reason == "" {
		reason = "server shutting down"
	}

	for _, c := range s.registry.Connections() {
		if pkt, err := protocol.NewPacket(protocol.TypeKickNotice, &protocol.KickNotice{Reason: reason}); err == nil {
			c.send(pkt)
		}
		c.Close()
		s.registry.Remove(c)
	}

	if s.listener != nil {
		s.listener.Close()
	}
}

// GetStats returns server statistics as a formatted string.
func (s *Server) GetStats() string {
	conns, users := s.registry.Counts()
	return "connections=" + strconv.Itoa(conns) + ",users=" + strconv.Itoa(users)
}
