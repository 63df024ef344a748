// Package broker is a small local stand-in for the hosted pub/sub service.
//
// It speaks the same websocket protocol the relay uses in production:
// a handshake against a fixed channel id, subscribe/unsubscribe, publish
// fan-out with the sender's client id, and membership snapshots, joins and
// leaves for rooms whose name starts with "observable-". Everything lives
// in memory; a room is forgotten when its last subscriber leaves.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/sync/errgroup"
)

// WebsocketPath is where clients connect, matching the hosted service.
const WebsocketPath = "/v3/websocket"

const shutdownTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The broker is a development tool; any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler returns the broker's HTTP routes: the websocket endpoint, a
// health check and a plain-text room listing.
func Handler(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /rooms", roomsHandler(hub))
	mux.HandleFunc(WebsocketPath, ServeWs(hub))
	return mux
}

// ServeWs upgrades requests to websocket connections owned by hub.
func ServeWs(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "error", err)
			return
		}

		client := newClient(hub, conn)
		if !hub.registerClient(client) {
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Broker is healthy."))
}

func roomsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := hub.Rooms(r.Context())
		if err != nil {
			http.Error(w, "broker unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(RenderRooms(rooms)))
	}
}

// RenderRooms formats rooms as a text table.
func RenderRooms(rooms []RoomInfo) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Room", "Members", "Observable"})
	for _, room := range rooms {
		t.AppendRow(table.Row{room.Name, room.Members, strconv.FormatBool(room.Observable)})
	}
	t.AppendFooter(table.Row{"Total", len(rooms), ""})
	return t.Render() + "\n"
}

// Serve runs a broker for channelID on ln until ctx is cancelled, then
// shuts the HTTP server down gracefully.
func Serve(ctx context.Context, ln net.Listener, channelID string) error {
	hub := NewHub(channelID)
	srv := &http.Server{
		Handler:           Handler(hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		slog.Info("starting broker", "addr", ln.Addr().String(), "path", WebsocketPath)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("broker serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
