package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BioHazard786/droprelay/internal/broker"
	"github.com/BioHazard786/droprelay/internal/protocol"
	"github.com/gorilla/websocket"
)

const testChannel = "test-channel"

func startBroker(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := broker.NewHub(testChannel)
	go hub.Run(ctx)

	srv := httptest.NewServer(broker.Handler(hub))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http") + broker.WebsocketPath
}

func openSession(t *testing.T, url, channel, hash string) *Session {
	t.Helper()

	s := Open(context.Background(), Config{
		URL:        url,
		ChannelID:  channel,
		ClientName: "server",
		Names:      RoomNames(hash),
		Dialer:     websocket.DefaultDialer,
	})
	t.Cleanup(s.Close)
	return s
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()

	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("event stream closed")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func expectKind(t *testing.T, s *Session, kind EventKind) Event {
	t.Helper()

	ev := nextEvent(t, s)
	if ev.Kind != kind {
		t.Fatalf("expected %s event, got %s (err %v)", kind, ev.Kind, ev.Err)
	}
	if ev.Err != nil {
		t.Fatalf("unexpected %s error: %v", kind, ev.Err)
	}
	return ev
}

func expectClosed(t *testing.T, s *Session) {
	t.Helper()

	select {
	case ev, ok := <-s.Events():
		if ok {
			t.Fatalf("expected closed event stream, got %s", ev.Kind)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event stream to close")
	}
}

// peer is a bare protocol client standing in for a browser.
type peer struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dialPeer(t *testing.T, url, name string) *peer {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	p := &peer{t: t, conn: conn}
	reply := p.call(&protocol.Message{
		Type:       protocol.MessageTypeHandshake,
		Channel:    testChannel,
		ClientData: json.RawMessage(`{"name":"` + name + `"}`),
	}, 0)
	if reply.Error != "" {
		t.Fatalf("handshake: %s", reply.Error)
	}
	p.id = reply.ClientID
	return p
}

func (p *peer) call(msg *protocol.Message, id int) *protocol.Message {
	p.t.Helper()

	msg.Callback = protocol.CallbackID(id)
	if err := p.conn.WriteJSON(msg); err != nil {
		p.t.Fatalf("write %s: %v", msg.Type, err)
	}
	for {
		reply := p.read()
		if reply.IsReply(id) {
			return reply
		}
	}
}

func (p *peer) subscribe(room string, id int) {
	p.t.Helper()

	if reply := p.call(&protocol.Message{Type: protocol.MessageTypeSubscribe, Room: room}, id); reply.Error != "" {
		p.t.Fatalf("subscribe %s: %s", room, reply.Error)
	}
}

func (p *peer) publish(room string, message string) {
	p.t.Helper()

	err := p.conn.WriteJSON(&protocol.Message{
		Type:    protocol.MessageTypePublish,
		Room:    room,
		Message: json.RawMessage(message),
	})
	if err != nil {
		p.t.Fatalf("publish: %v", err)
	}
}

func (p *peer) read() *protocol.Message {
	p.t.Helper()

	p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg protocol.Message
	if err := p.conn.ReadJSON(&msg); err != nil {
		p.t.Fatalf("read: %v", err)
	}
	return &msg
}

func (p *peer) readUntil(typ string) *protocol.Message {
	p.t.Helper()

	for {
		msg := p.read()
		if msg.Type == typ {
			return msg
		}
	}
}

func TestSessionJoinsRoom(t *testing.T) {
	url := startBroker(t)
	s := openSession(t, url, testChannel, "abc")

	opened := expectKind(t, s, EventOpened)
	if opened.ClientID == "" {
		t.Fatal("expected a client id")
	}
	if s.ClientID() != opened.ClientID {
		t.Fatalf("expected ClientID %q, got %q", opened.ClientID, s.ClientID())
	}

	expectKind(t, s, EventSubscriptionOpened)

	snapshot := expectKind(t, s, EventMembersSnapshot)
	if len(snapshot.Members) != 1 || snapshot.Members[0].ID != opened.ClientID {
		t.Fatalf("expected snapshot with only ourselves, got %+v", snapshot.Members)
	}
	if string(snapshot.Members[0].ClientData) != `{"name":"server"}` {
		t.Fatalf("unexpected client data: %s", snapshot.Members[0].ClientData)
	}
}

func TestSessionTracksMembersAndData(t *testing.T) {
	url := startBroker(t)
	names := RoomNames("abc")
	s := openSession(t, url, testChannel, "abc")

	opened := expectKind(t, s, EventOpened)
	expectKind(t, s, EventSubscriptionOpened)
	expectKind(t, s, EventMembersSnapshot)

	browser := dialPeer(t, url, "browser")
	browser.subscribe(names.Observable, 1)

	joined := expectKind(t, s, EventMemberJoined)
	if joined.Member.ID != browser.id {
		t.Fatalf("expected member %q, got %q", browser.id, joined.Member.ID)
	}

	payload := `{"targetId":"` + opened.ClientID + `","sdp":{"type":"offer","sdp":"v=0"}}`
	browser.publish(names.Observable, payload)

	data := expectKind(t, s, EventDataReceived)
	if string(data.Payload) != payload {
		t.Fatalf("expected payload %s, got %s", payload, data.Payload)
	}
	if data.Member.ID != browser.id {
		t.Fatalf("expected sender %q, got %q", browser.id, data.Member.ID)
	}
	if string(data.Member.ClientData) != `{"name":"browser"}` {
		t.Fatalf("expected sender client data, got %s", data.Member.ClientData)
	}

	browser.conn.Close()

	left := expectKind(t, s, EventMemberLeft)
	if left.Member.ID != browser.id {
		t.Fatalf("expected member %q to leave, got %q", browser.id, left.Member.ID)
	}
}

func TestSessionPublishesToPlainRoom(t *testing.T) {
	url := startBroker(t)
	names := RoomNames("abc")

	browser := dialPeer(t, url, "browser")
	browser.subscribe(names.Room, 1)

	s := openSession(t, url, testChannel, "abc")

	// Queued before the handshake completes.
	if err := s.Publish(json.RawMessage(`{"targetId":"peer","foo":1}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	opened := expectKind(t, s, EventOpened)

	msg := browser.readUntil(protocol.MessageTypePublish)
	if msg.Room != names.Room {
		t.Fatalf("expected room %q, got %q", names.Room, msg.Room)
	}
	if msg.ClientID != opened.ClientID {
		t.Fatalf("expected sender %q, got %q", opened.ClientID, msg.ClientID)
	}
	if string(msg.Message) != `{"targetId":"peer","foo":1}` {
		t.Fatalf("unexpected message: %s", msg.Message)
	}
}

func TestSessionRejectedHandshake(t *testing.T) {
	url := startBroker(t)
	s := openSession(t, url, "wrong-channel", "abc")

	ev := nextEvent(t, s)
	if ev.Kind != EventOpened {
		t.Fatalf("expected opened event, got %s", ev.Kind)
	}
	if !errors.Is(ev.Err, ErrHandshake) {
		t.Fatalf("expected handshake rejection, got %v", ev.Err)
	}
	if !strings.Contains(ev.Err.Error(), "invalid channel") {
		t.Fatalf("expected server reason in error, got %v", ev.Err)
	}

	expectClosed(t, s)

	if err := s.Publish(json.RawMessage(`{}`)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSessionUnreachable(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + broker.WebsocketPath
	srv.Close()

	s := openSession(t, url, testChannel, "abc")

	ev := nextEvent(t, s)
	if ev.Kind != EventOpened || ev.Err == nil {
		t.Fatalf("expected opened event with error, got %s (err %v)", ev.Kind, ev.Err)
	}
	var opErr *OpError
	if !errors.As(ev.Err, &opErr) || opErr.Op != "connect" {
		t.Fatalf("expected connect error, got %v", ev.Err)
	}

	expectClosed(t, s)
}

// scriptedServer accepts one websocket connection, answers the handshake
// with clientID and hands the connection to script.
func scriptedServer(t *testing.T, clientID string, script func(conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var hello protocol.Message
		if err := conn.ReadJSON(&hello); err != nil {
			t.Errorf("read handshake: %v", err)
			return
		}
		if err := conn.WriteJSON(&protocol.Message{Callback: hello.Callback, ClientID: clientID}); err != nil {
			t.Errorf("write handshake reply: %v", err)
			return
		}
		script(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionRejectedSubscription(t *testing.T) {
	url := scriptedServer(t, "X", func(conn *websocket.Conn) {
		var sub protocol.Message
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if sub.Type != protocol.MessageTypeSubscribe || sub.Room != "observable-videostream-abc" {
			t.Errorf("unexpected subscribe frame: %+v", sub)
		}
		conn.WriteJSON(&protocol.Message{Callback: sub.Callback, Error: "denied"})

		// Hold the connection until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := openSession(t, url, testChannel, "abc")

	if opened := expectKind(t, s, EventOpened); opened.ClientID != "X" {
		t.Fatalf("expected client id X, got %q", opened.ClientID)
	}

	ev := nextEvent(t, s)
	if ev.Kind != EventSubscriptionOpened {
		t.Fatalf("expected subscription event, got %s", ev.Kind)
	}
	if !errors.Is(ev.Err, ErrSubscribe) {
		t.Fatalf("expected ErrSubscribe, got %v", ev.Err)
	}
	var opErr *OpError
	if !errors.As(ev.Err, &opErr) || opErr.Details != "denied" {
		t.Fatalf("expected server reason in error, got %v", ev.Err)
	}

	expectClosed(t, s)
}

func TestSessionReportsLostConnection(t *testing.T) {
	url := scriptedServer(t, "X", func(conn *websocket.Conn) {
		var sub protocol.Message
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		conn.WriteJSON(&protocol.Message{Callback: sub.Callback})
		// Returning drops the TCP connection without a close frame.
	})

	s := openSession(t, url, testChannel, "abc")

	expectKind(t, s, EventOpened)
	expectKind(t, s, EventSubscriptionOpened)

	ev := nextEvent(t, s)
	if ev.Kind != EventClosed || ev.Err == nil {
		t.Fatalf("expected closed event with error, got %s (err %v)", ev.Kind, ev.Err)
	}
	var opErr *OpError
	if !errors.As(ev.Err, &opErr) || opErr.Op != "receive" {
		t.Fatalf("expected receive error, got %v", ev.Err)
	}

	expectClosed(t, s)
}

func TestSessionCloseIsQuiet(t *testing.T) {
	url := startBroker(t)
	s := openSession(t, url, testChannel, "abc")

	expectKind(t, s, EventOpened)
	expectKind(t, s, EventSubscriptionOpened)
	expectKind(t, s, EventMembersSnapshot)

	s.Close()
	expectClosed(t, s)
}
