// Memory Game
//
// A 52-card concentration game: flip two cards, keep them when the ranks
// match. Played alone, or against one other player in a shared room.
//
// Features:
// - One WebSocket endpoint: $path/ws; the first message picks the mode
// - Solo practice (start_solo) and two-player rooms (join_duel with a room code)
// - Server owns the deck; face-down cards never leave the server
// - Mismatched pairs are hidden again after a configurable reveal delay
// - Turn passes on a miss, stays on a match; rematches by mutual vote
// - Rooms are torn down when a player leaves; the peer is told
// - Idle sessions reaped after a configurable timeout
// - Random 8-char room codes via crypto/rand, with server-side collision check
// - QR code per room to share it, backed by go-qrcode

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/nrtkKodama/memory-game/memory"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. Its id is transient and only lives
// as long as the socket.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any
}

func (c *Client) ID() string { return c.id }

// Send queues v without blocking; a full queue drops the event.
func (c *Client) Send(v any) bool {
	select {
	case c.send <- v:
		return true
	default:
		return false
	}
}

// Close drops the socket; readPump then fails and disconnects the client.
func (c *Client) Close() {
	_ = c.conn.Close()
}

func (c *Client) readPump(cfg *Config, rt *memory.Router) {
	defer func() {
		rt.Disconnect(c.id)
		close(c.send)
		_ = c.conn.Close()
		logf(cfg, "GAMES: Connection %s closed", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg memory.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logf(cfg, "ERROR: Connection %s: %v", c.id, err)
			}
			return
		}

		// rejections are logged by the router and are safe to re-issue
		_ = rt.Handle(c.id, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func serveWS(cfg *Config, rt *memory.Router) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrade from %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, sendBuffer),
		}
		logf(cfg, "GAMES: Connection %s opened from %s", client.id, realIP(r))

		rt.Connect(client)

		go client.writePump()
		client.readPump(cfg, rt)
	}
}

// redirectNewRoom handles GET $path by picking a fresh room code and
// redirecting to its page.
func redirectNewRoom(cfg *Config, path string, reg *memory.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := reg.NewRoomCode()
		logf(cfg, "GAMES: Issued room code %s", code)
		http.Redirect(w, r, cfg.prefix+path+"/room/"+code, http.StatusTemporaryRedirect)
	}
}

func serveRoomPage(cfg *Config, path string, reg *memory.Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("room")

		status := "open"
		if s := reg.Room(code); s != nil {
			status = fmt.Sprintf("%d/2 players", len(s.Snapshot().Members))
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		body := fmt.Sprintf("Room %s (%s). Connect to %s%s/ws and send {\"type\":\"join_duel\",\"room\":%q}.",
			code, status, cfg.prefix, path, code)
		_, _ = w.Write([]byte(newPage("Memory: "+code, body)))
	}
}

// registerMemoryGame sets up routes so that:
//   - $path                  → redirects to a new random room
//   - $path/ws               → WebSocket for every session
//   - $path/room/:room       → room page
//   - $path/room/:room/qr    → PNG QR code for that room page
func registerMemoryGame(cfg *Config, path string, mux *httprouter.Router, rt *memory.Router) {
	reg := rt.Registry()

	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, reg))

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, rt))

	mux.GET(cfg.prefix+path+"/room/:room", serveRoomPage(cfg, path, reg))

	mux.GET(cfg.prefix+path+"/room/:room/qr", serveQR(cfg))
}
