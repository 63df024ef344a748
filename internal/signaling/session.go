package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/BioHazard786/droprelay/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	handshakeCallback = 0
	subscribeCallback = 1

	eventBuffer = 64
)

// Config describes how a Session reaches its room.
type Config struct {
	// URL is the websocket endpoint of the pub/sub service.
	URL string

	// ChannelID is the fixed application credential sent in the handshake.
	ChannelID string

	// ClientName is advertised to other members as clientData.name.
	ClientName string

	Names Names

	// Dialer overrides the default dialer. Tests use it to reach
	// httptest servers directly.
	Dialer *websocket.Dialer
}

// Session owns one subscription to one room. It connects in the background
// and reports everything that happens as Events.
type Session struct {
	cfg    Config
	client *Client
	events chan Event

	// members is only touched by the run goroutine.
	members []protocol.Member

	mu       sync.RWMutex
	clientID string
}

// Open starts connecting to the room described by cfg and returns at once.
// Connection and subscription failures are not returned: they arrive as
// EventOpened or EventSubscriptionOpened with Err set, and the session then
// produces no further events. There is no retry.
func Open(ctx context.Context, cfg Config) *Session {
	s := &Session{
		cfg:    cfg,
		client: NewClient(cfg.URL, cfg.Dialer),
		events: make(chan Event, eventBuffer),
	}
	go s.run(ctx)
	return s
}

// Events returns the room event stream. It is closed when the connection
// ends or fails to open.
func (s *Session) Events() <-chan Event {
	return s.events
}

// ClientID returns the identifier the service assigned in the handshake, or
// "" before the session has opened.
func (s *Session) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

// Names returns the channel names of the session's room.
func (s *Session) Names() Names {
	return s.cfg.Names
}

// Publish sends message to the plain room name. Messages published before
// the handshake completes are queued. It returns ErrNotConnected once the
// connection has failed or closed.
func (s *Session) Publish(message json.RawMessage) error {
	err := s.client.Send(&protocol.Message{
		Type:    protocol.MessageTypePublish,
		Room:    s.cfg.Names.Room,
		Message: message,
	})
	if errors.Is(err, ErrClosed) {
		return NewError("publish", ErrNotConnected)
	}
	return err
}

// Close disconnects from the service.
func (s *Session) Close() {
	s.client.Close()
}

func (s *Session) run(ctx context.Context) {
	defer close(s.events)

	clientID, err := s.open(ctx)
	if err != nil {
		s.emit(Event{Kind: EventOpened, Err: err})
		s.client.abort()
		return
	}

	s.mu.Lock()
	s.clientID = clientID
	s.mu.Unlock()

	slog.Debug("connected to pub/sub service", "client_id", clientID, "url", s.cfg.URL)
	s.emit(Event{Kind: EventOpened, ClientID: clientID})

	s.client.Start()
	if err := s.subscribe(); err != nil {
		s.emit(Event{Kind: EventSubscriptionOpened, Err: err})
		return
	}

	for msg := range s.client.Incoming() {
		s.handle(msg)
	}
	slog.Debug("pub/sub connection closed", "client_id", clientID)

	if err := s.client.Err(); err != nil {
		s.emit(Event{Kind: EventClosed, Err: NewError("receive", err)})
	}
}

// open dials the service and performs the handshake, returning the
// assigned client id.
func (s *Session) open(ctx context.Context) (string, error) {
	if err := s.client.Connect(ctx); err != nil {
		return "", NewError("connect", err)
	}

	clientData, err := json.Marshal(map[string]string{"name": s.cfg.ClientName})
	if err != nil {
		return "", NewError("handshake", err)
	}

	reply, err := s.client.Call(&protocol.Message{
		Type:       protocol.MessageTypeHandshake,
		Channel:    s.cfg.ChannelID,
		ClientData: clientData,
	}, handshakeCallback)
	if err != nil {
		return "", NewError("handshake", err)
	}
	if reply.Error != "" {
		return "", WrapError("handshake", ErrHandshake, reply.Error)
	}
	if reply.ClientID == "" {
		return "", WrapError("handshake", ErrHandshake, "no client id in reply")
	}

	return reply.ClientID, nil
}

func (s *Session) subscribe() error {
	err := s.client.Send(&protocol.Message{
		Type:     protocol.MessageTypeSubscribe,
		Room:     s.cfg.Names.Observable,
		Callback: protocol.CallbackID(subscribeCallback),
	})
	if err != nil {
		return NewError("subscribe", err)
	}
	return nil
}

// handle turns one server frame into at most one event.
func (s *Session) handle(msg *protocol.Message) {
	if msg.IsReply(subscribeCallback) {
		if msg.Error != "" {
			s.client.Close()
			s.emit(Event{Kind: EventSubscriptionOpened, Err: WrapError("subscribe", ErrSubscribe, msg.Error)})
			return
		}
		s.emit(Event{Kind: EventSubscriptionOpened})
		return
	}

	if msg.Type != "" && msg.Room != s.cfg.Names.Observable {
		slog.Debug("ignoring frame for another room", "type", msg.Type, "room", msg.Room)
		return
	}

	switch msg.Type {
	case protocol.MessageTypeObservableMembers:
		var members []protocol.Member
		if err := json.Unmarshal(msg.Data, &members); err != nil {
			slog.Warn("malformed members snapshot", "error", err)
			return
		}
		s.members = append([]protocol.Member(nil), members...)
		s.emit(Event{Kind: EventMembersSnapshot, Members: members})

	case protocol.MessageTypeObservableMemberJoin:
		var member protocol.Member
		if err := json.Unmarshal(msg.Data, &member); err != nil {
			slog.Warn("malformed member join", "error", err)
			return
		}
		s.members = append(s.members, member)
		s.emit(Event{Kind: EventMemberJoined, Member: member})

	case protocol.MessageTypeObservableMemberLeave:
		var member protocol.Member
		if err := json.Unmarshal(msg.Data, &member); err != nil {
			slog.Warn("malformed member leave", "error", err)
			return
		}
		s.removeMember(member.ID)
		s.emit(Event{Kind: EventMemberLeft, Member: member})

	case protocol.MessageTypePublish:
		s.emit(Event{
			Kind:    EventDataReceived,
			Payload: msg.Message,
			Member:  s.lookupMember(msg.ClientID),
		})

	case "":
		if msg.Error != "" {
			slog.Warn("pub/sub service error", "error", msg.Error)
		}

	default:
		slog.Debug("ignoring frame", "type", msg.Type)
	}
}

// lookupMember resolves the sender of a publish. Senders outside the
// tracked membership are reported by id alone.
func (s *Session) lookupMember(clientID string) protocol.Member {
	for _, m := range s.members {
		if m.ID == clientID {
			return m
		}
	}
	return protocol.Member{ID: clientID}
}

func (s *Session) removeMember(id string) {
	for i, m := range s.members {
		if m.ID == id {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return
		}
	}
}

// emit delivers ev, giving up only once the client has shut down and the
// buffer is full.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
		return
	default:
	}

	select {
	case s.events <- ev:
	case <-s.client.Done():
	}
}
