package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/notifmoo/notif/internal/observability"
)

// AuditLog records subscription lifecycle rows for domain-authenticated
// sockets. Failures are swallowed by the session: audit is best-effort
// telemetry.
type AuditLog interface {
	SubscriptionOpened(ctx context.Context, channelName string, domainID uuid.UUID, socketID string, connectedUser *string) error
	SubscriptionClosed(ctx context.Context, socketID, channelName string) error
	SocketClosed(ctx context.Context, socketID string) error
}

// NewSocketID generates a socket id of the form <process-id>.<random-token>,
// stable for the lifetime of one WebSocket.
func NewSocketID() string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%d.%s", os.Getpid(), token)
}

// Session drives one WebSocket connection: the handshake, inbound frame
// dispatch, the subscribed-channel set, and cleanup on disconnect.
type Session struct {
	SocketID string
	DomainID *uuid.UUID

	conn    *websocket.Conn
	hub     *Hub
	roster  *Roster
	signer  *Signer
	audit   AuditLog
	metrics *observability.Metrics

	out *frameQueue
	ctx context.Context
	// cancel stops every forwarder spawned by this session.
	cancel context.CancelFunc

	// subscribed maps each channel to the cancel func of its forwarder.
	// Sessions are single-threaded: only the receive loop touches it.
	subscribed map[string]context.CancelFunc

	writerDone chan struct{}
}

// NewSession creates a session for an upgraded socket. domainID is non-nil
// iff the upgrade was API-key authenticated.
func NewSession(conn *websocket.Conn, domainID *uuid.UUID, hub *Hub, roster *Roster, signer *Signer, audit AuditLog) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		SocketID:   NewSocketID(),
		DomainID:   domainID,
		conn:       conn,
		hub:        hub,
		roster:     roster,
		signer:     signer,
		audit:      audit,
		out:        newFrameQueue(),
		ctx:        ctx,
		cancel:     cancel,
		subscribed: make(map[string]context.CancelFunc),
		writerDone: make(chan struct{}),
	}
}

// SetMetrics attaches metrics recording. Optional.
func (s *Session) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Run drives the session until the socket closes. It blocks.
func (s *Session) Run() {
	log.Info().Str("socket_id", s.SocketID).Msg("WebSocket connected")
	if s.metrics != nil {
		s.metrics.Connections.Inc()
		defer s.metrics.Connections.Dec()
	}

	// Connecting -> Established: the handshake frame goes straight to the
	// socket; a failure here means the session never starts.
	established := connectionEstablishedFrame(s.SocketID)
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(established)); err != nil {
		log.Debug().Err(err).Str("socket_id", s.SocketID).Msg("Handshake send failed")
		return
	}

	go s.writer()
	defer s.teardown()

	for {
		messageType, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("socket_id", s.SocketID).Msg("WebSocket read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := ParseClientMessage(raw)
		if err != nil {
			// Unparseable frames are silently ignored.
			continue
		}
		s.dispatch(msg)
	}
}

// writer drains the outbound queue and writes each frame to the socket.
// On a send error it exits; the receive loop observes closure next.
func (s *Session) writer() {
	defer close(s.writerDone)
	for {
		frame, ok := s.out.Pop()
		if !ok {
			return
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			log.Debug().Err(err).Str("socket_id", s.SocketID).Msg("Writer send failed")
			return
		}
	}
}

func (s *Session) dispatch(msg *ClientMessage) {
	switch msg.Event {
	case EventSubscribe:
		var payload SubscribePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Channel == "" {
			return
		}
		s.handleSubscribe(payload)

	case EventUnsubscribe:
		var payload UnsubscribePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Channel == "" {
			return
		}
		s.handleUnsubscribe(payload.Channel)

	case EventPing:
		s.out.Push(pongFrame())

	default:
		// Unknown discriminators are dropped.
	}
}

func (s *Session) handleSubscribe(payload SubscribePayload) {
	channel := payload.Channel
	channelType := ChannelTypeOf(channel)
	channelData := normalizeChannelData(payload.ChannelData)

	if err := s.signer.Verify(channel, s.SocketID, payload.Auth, channelData); err != nil {
		s.out.Push(errorFrame("Auth failed for channel"))
		return
	}

	receiver, err := s.hub.Subscribe(channel)
	if err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("Subscribe failed")
		s.out.Push(errorFrame(fmt.Sprintf("Subscribe failed: %v", err)))
		return
	}

	// A re-subscribe replaces the previous forwarder so the session owns
	// exactly one receiver per subscribed channel.
	cancelPrev, resubscribe := s.subscribed[channel]
	if resubscribe {
		cancelPrev()
	}
	forwardCtx, cancelForward := context.WithCancel(s.ctx)
	s.subscribed[channel] = cancelForward
	if s.metrics != nil && !resubscribe {
		s.metrics.Subscriptions.Inc()
	}

	if s.DomainID != nil {
		connectedUser := channelDataUserID(payload.ChannelData)
		if err := s.audit.SubscriptionOpened(s.ctx, channel, *s.DomainID, s.SocketID, connectedUser); err != nil {
			log.Debug().Err(err).Str("channel", channel).Msg("Audit insert failed")
		}
	}

	if channelType == ChannelPresence {
		userID := "anonymous"
		if u := channelDataUserID(payload.ChannelData); u != nil {
			userID = *u
		}
		if err := s.roster.AddMember(s.ctx, channel, s.SocketID, userID, payload.ChannelData); err == nil {
			members, err := s.roster.ListMembers(s.ctx, channel)
			if err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("Presence list failed")
			}
			ids := make([]string, 0, len(members))
			for _, m := range members {
				ids = append(ids, m.UserID)
			}
			s.out.Push(presenceSubscriptionSucceededFrame(channel, ids))
		} else {
			log.Warn().Err(err).Str("channel", channel).Msg("Presence add failed")
		}
	} else {
		s.out.Push(subscriptionSucceededFrame(channel))
	}

	go s.forwardChannel(forwardCtx, receiver)

	log.Info().
		Str("socket_id", s.SocketID).
		Str("channel", channel).
		Str("type", channelType.String()).
		Msg("Subscribed")
}

// forwardChannel copies hub payloads into the outbound queue until the
// receiver closes or the forwarder is cancelled.
func (s *Session) forwardChannel(ctx context.Context, receiver *Receiver) {
	defer receiver.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-receiver.C:
			if !ok {
				return
			}
			s.out.Push(payload)
		}
	}
}

func (s *Session) handleUnsubscribe(channel string) {
	if ChannelTypeOf(channel) == ChannelPresence {
		if err := s.roster.RemoveMember(s.ctx, channel, s.SocketID); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("Presence remove failed")
		}
	}
	if s.DomainID != nil {
		if err := s.audit.SubscriptionClosed(s.ctx, s.SocketID, channel); err != nil {
			log.Debug().Err(err).Str("channel", channel).Msg("Audit update failed")
		}
	}
	if cancelForward, ok := s.subscribed[channel]; ok {
		cancelForward()
		delete(s.subscribed, channel)
		if s.metrics != nil {
			s.metrics.Subscriptions.Dec()
		}
	}
	log.Debug().Str("socket_id", s.SocketID).Str("channel", channel).Msg("Unsubscribed")
}

// teardown runs Closing -> Closed: presence memberships are removed before
// the session is released, audit rows are closed, and the writer and all
// forwarders are stopped.
func (s *Session) teardown() {
	ctx := context.Background()

	for channel := range s.subscribed {
		if ChannelTypeOf(channel) == ChannelPresence {
			if err := s.roster.RemoveMember(ctx, channel, s.SocketID); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("Presence cleanup failed")
			}
		}
	}
	if s.DomainID != nil {
		if err := s.audit.SocketClosed(ctx, s.SocketID); err != nil {
			log.Debug().Err(err).Str("socket_id", s.SocketID).Msg("Audit disconnect failed")
		}
	}

	if s.metrics != nil {
		s.metrics.Subscriptions.Sub(float64(len(s.subscribed)))
	}

	s.cancel()
	s.out.Close()
	<-s.writerDone

	log.Info().Str("socket_id", s.SocketID).Msg("WebSocket disconnected")
}

// channelDataUserID extracts channel_data.user_id if present.
func channelDataUserID(channelData json.RawMessage) *string {
	if len(channelData) == 0 {
		return nil
	}
	var data struct {
		UserID *string `json:"user_id"`
	}
	if err := json.Unmarshal(channelData, &data); err != nil {
		return nil
	}
	return data.UserID
}
