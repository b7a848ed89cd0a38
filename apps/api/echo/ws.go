package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/doubt"
	"github.com/trezcool/darasa/core/user"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 4 << 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // auth is JWT, not origin
}

type (
	// wsFrame is what clients receive.
	wsFrame struct {
		Event string      `json:"event"`
		Room  string      `json:"room"`
		Data  interface{} `json:"data"`
	}

	// wsCommand is what clients send: subscription changes only, chat
	// messages go through the REST API.
	wsCommand struct {
		Action    string `json:"action"` // "join" | "leave"
		SessionID string `json:"session_id"`
	}
)

// wsHub tracks which client subscribes to which room and fans relayed
// events out to them.
type wsHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{rooms: make(map[string]map[*wsClient]struct{})}
}

func (h *wsHub) join(c *wsClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*wsClient]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *wsHub) leave(c *wsClient, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, room)
}

// remove drops the client from every room it joined.
func (h *wsHub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range c.rooms {
		h.removeLocked(c, room)
	}
	close(c.send)
}

func (h *wsHub) removeLocked(c *wsClient, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// broadcast delivers a relayed event to every member of its room. Clients
// that cannot keep up are skipped rather than blocking the hub.
func (h *wsHub) broadcast(event core.Event) {
	payload, err := json.Marshal(wsFrame{Event: event.Name, Room: event.Room, Data: event.Data})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[event.Room] {
		select {
		case c.send <- payload:
		default:
		}
	}
}

type wsClient struct {
	hub   *wsHub
	conn  *websocket.Conn
	usr   user.User
	send  chan []byte
	rooms map[string]struct{} // guarded by hub.mu
}

type wsGateway struct {
	hub      *wsHub
	usrSvc   user.ServiceInterface
	doubtSvc doubt.ServiceInterface
	logger   core.Logger
}

func (g *wsGateway) handle(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, g.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	conn, err := wsUpgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}

	c := &wsClient{
		hub:   g.hub,
		conn:  conn,
		usr:   ctxUsr,
		send:  make(chan []byte, 64),
		rooms: make(map[string]struct{}),
	}
	// notifications addressed to the user arrive without an explicit join
	g.hub.join(c, core.PersonalRoom(ctxUsr.ID))

	go c.writePump()
	go c.readPump(g)
	return nil
}

func (c *wsClient) readPump(g *wsGateway) {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug(fmt.Sprintf("ws: closing connection of %s: %v", c.usr.Username, err))
			}
			return
		}

		var cmd wsCommand
		if err = json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "join":
			// only participants (or admins) may watch a session room
			if _, err = g.doubtSvc.Get(context.Background(), c.usr, cmd.SessionID); err != nil {
				continue
			}
			c.hub.join(c, core.SessionRoom(cmd.SessionID))
		case "leave":
			c.hub.leave(c, core.SessionRoom(cmd.SessionID))
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
