package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BioHazard786/droprelay/internal/protocol"
	"github.com/google/uuid"
)

// Room is a named channel and its subscribers in subscription order.
type Room struct {
	Name        string
	Subscribers []*Client
}

// Observable reports whether membership changes in the room are broadcast
// to its subscribers.
func (r *Room) Observable() bool {
	return strings.HasPrefix(r.Name, protocol.ObservablePrefix)
}

func (r *Room) members() []protocol.Member {
	members := make([]protocol.Member, len(r.Subscribers))
	for i, c := range r.Subscribers {
		members[i] = c.member
	}
	return members
}

func (r *Room) remove(c *Client) bool {
	for i, sub := range r.Subscribers {
		if sub == c {
			r.Subscribers = append(r.Subscribers[:i], r.Subscribers[i+1:]...)
			return true
		}
	}
	return false
}

// RoomInfo is a point-in-time view of a room.
type RoomInfo struct {
	Name       string
	Members    int
	Observable bool
}

type inbound struct {
	client *Client
	msg    *protocol.Message
}

// Hub owns every room and client of the broker. All state is confined to
// the goroutine running Run; other goroutines talk to it over channels.
type Hub struct {
	channelID string

	rooms   map[string]*Room
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan *inbound
	listRooms  chan chan []RoomInfo
	done       chan struct{}
}

// NewHub creates a hub that accepts handshakes for channelID only.
func NewHub(channelID string) *Hub {
	return &Hub{
		channelID:  channelID,
		rooms:      make(map[string]*Room),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inbound),
		listRooms:  make(chan chan []RoomInfo),
		done:       make(chan struct{}),
	}
}

// Run processes hub traffic until ctx is cancelled. It always returns nil.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.register:
			h.clients[c] = true
			slog.Debug("client registered", "remote", c.conn.RemoteAddr())

		case c := <-h.unregister:
			h.removeClient(c)

		case in := <-h.inbound:
			h.handle(in.client, in.msg)

		case reply := <-h.listRooms:
			reply <- h.roomInfos()
		}
	}
}

// Rooms returns the current rooms sorted by name.
func (h *Hub) Rooms(ctx context.Context) ([]RoomInfo, error) {
	reply := make(chan []RoomInfo, 1)
	select {
	case h.listRooms <- reply:
	case <-h.done:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return <-reply, nil
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) submit(in *inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) removeClient(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)

	for name := range c.rooms {
		h.leave(c, name)
	}

	close(c.send)
	slog.Debug("client unregistered", "remote", c.conn.RemoteAddr(), "client_id", c.member.ID)
}

func (h *Hub) handle(c *Client, msg *protocol.Message) {
	if msg.Type != protocol.MessageTypeHandshake && c.member.ID == "" {
		h.replyError(c, msg, "handshake required")
		return
	}

	switch msg.Type {
	case protocol.MessageTypeHandshake:
		h.handshake(c, msg)

	case protocol.MessageTypeSubscribe:
		if msg.Room == "" {
			h.replyError(c, msg, "room name required")
			return
		}
		h.reply(c, msg)
		h.join(c, msg.Room)

	case protocol.MessageTypeUnsubscribe:
		if c.rooms[msg.Room] {
			h.leave(c, msg.Room)
		}
		h.reply(c, msg)

	case protocol.MessageTypePublish:
		if msg.Room == "" {
			h.replyError(c, msg, "room name required")
			return
		}
		h.publish(c, msg)
		if msg.Callback != nil {
			h.reply(c, msg)
		}

	default:
		h.replyError(c, msg, "unknown message type: "+msg.Type)
	}
}

func (h *Hub) handshake(c *Client, msg *protocol.Message) {
	if c.member.ID != "" {
		h.replyError(c, msg, "handshake already completed")
		return
	}
	if msg.Channel != h.channelID {
		slog.Info("handshake rejected", "channel", msg.Channel, "remote", c.conn.RemoteAddr())
		h.replyError(c, msg, "invalid channel")
		return
	}

	c.member = protocol.Member{
		ID:         uuid.NewString(),
		ClientData: msg.ClientData,
	}
	h.deliver(c, &protocol.Message{Callback: msg.Callback, ClientID: c.member.ID})
	slog.Debug("handshake completed", "client_id", c.member.ID)
}

// join subscribes c to the named room. In observable rooms the subscriber
// gets the full member list, itself included, and everyone else is told
// about the newcomer.
func (h *Hub) join(c *Client, name string) {
	if c.rooms[name] {
		return
	}

	room, ok := h.rooms[name]
	if !ok {
		room = &Room{Name: name}
		h.rooms[name] = room
	}
	room.Subscribers = append(room.Subscribers, c)
	c.rooms[name] = true

	if !room.Observable() {
		return
	}

	h.deliver(c, &protocol.Message{
		Type: protocol.MessageTypeObservableMembers,
		Room: name,
		Data: mustMarshal(room.members()),
	})

	joined := mustMarshal(c.member)
	for _, other := range room.Subscribers {
		if other == c {
			continue
		}
		h.deliver(other, &protocol.Message{
			Type: protocol.MessageTypeObservableMemberJoin,
			Room: name,
			Data: joined,
		})
	}
}

func (h *Hub) leave(c *Client, name string) {
	delete(c.rooms, name)

	room, ok := h.rooms[name]
	if !ok || !room.remove(c) {
		return
	}

	if len(room.Subscribers) == 0 {
		delete(h.rooms, name)
		return
	}

	if !room.Observable() {
		return
	}

	left := mustMarshal(c.member)
	for _, other := range room.Subscribers {
		h.deliver(other, &protocol.Message{
			Type: protocol.MessageTypeObservableMemberLeave,
			Room: name,
			Data: left,
		})
	}
}

// publish fans msg out to every subscriber of its room, the sender
// included when subscribed.
func (h *Hub) publish(c *Client, msg *protocol.Message) {
	room, ok := h.rooms[msg.Room]
	if !ok {
		return
	}

	out := &protocol.Message{
		Type:      protocol.MessageTypePublish,
		Room:      msg.Room,
		Message:   msg.Message,
		ClientID:  c.member.ID,
		ID:        uuid.NewString(),
		Timestamp: time.Now().Unix(),
	}
	for _, sub := range room.Subscribers {
		h.deliver(sub, out)
	}
}

func (h *Hub) reply(c *Client, req *protocol.Message) {
	if req.Callback == nil {
		return
	}
	h.deliver(c, &protocol.Message{Callback: req.Callback})
}

func (h *Hub) replyError(c *Client, req *protocol.Message, reason string) {
	h.deliver(c, &protocol.Message{Callback: req.Callback, Error: reason})
}

// deliver queues msg for c, dropping it when the client is too slow.
func (h *Hub) deliver(c *Client, msg *protocol.Message) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("client buffer full, dropping message", "client_id", c.member.ID, "type", msg.Type)
	}
}

func (h *Hub) roomInfos() []RoomInfo {
	infos := make([]RoomInfo, 0, len(h.rooms))
	for _, room := range h.rooms {
		infos = append(infos, RoomInfo{
			Name:       room.Name,
			Members:    len(room.Subscribers),
			Observable: room.Observable(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode broker payload", "error", err)
		return nil
	}
	return data
}
