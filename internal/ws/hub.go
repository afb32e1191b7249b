package ws

import (
	"context"
	"net/http"

	"log/slog"

	"github.com/Absterrg0/Excalidraw/internal/queue"
	"github.com/Absterrg0/Excalidraw/pkg/auth"
	"github.com/Absterrg0/Excalidraw/pkg/metrics"
)

// Hub is the transport listener and broadcast router: it accepts
// websocket connections, decodes their frames, and fans accepted
// messages out to the sender's room. Relay and persistence are
// independent — the write-behind queue never delays a broadcast.
type Hub struct {
	log   *slog.Logger
	jwt   *auth.JWT
	reg   *Registry
	queue *queue.Queue
	bus   *Bus // nil when cross-instance relay is disabled
}

func NewHub(log *slog.Logger, jwt *auth.JWT, reg *Registry, q *queue.Queue, bus *Bus) *Hub {
	return &Hub{log: log, jwt: jwt, reg: reg, queue: q, bus: bus}
}

// Run relays bus traffic from other instances into local rooms until
// ctx is cancelled. Messages that originated here are skipped by the
// bus itself.
func (h *Hub) Run(ctx context.Context) {
	if h.bus == nil {
		<-ctx.Done()
		return
	}
	go h.bus.Subscribe(ctx, func(m BusMessage) {
		h.deliver(m.RoomID, nil, messageFrame(m.RoomID, m.Body, m.UserID))
	})
	<-ctx.Done()
}

// ServeWS handles a new /ws connection. The identity token arrives as a
// query parameter and must verify before the upgrade.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	uid, err := h.jwt.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sock, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := NewConn(sock, uid)
	metrics.ActiveConns.Inc()
	h.log.Debug("ws.connected", "user", uid)

	go c.WriteLoop(ctx)

	for {
		raw, ok := c.Read(ctx)
		if !ok {
			break
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			// Bad frames are diagnostic, never fatal to the connection
			h.log.Debug("ws.frame.rejected", "user", uid, "err", err)
			c.TrySend(errorFrame(err.Error()))
			continue
		}
		h.handle(c, ev)
	}

	h.reg.RemoveEverywhere(c)
	_ = c.Close()
	metrics.ActiveConns.Dec()
	h.log.Debug("ws.disconnected", "user", uid)
}

func (h *Hub) handle(c *Conn, ev Event) {
	switch ev := ev.(type) {
	case JoinRoom:
		if h.reg.Join(ev.RoomID, c) {
			c.TrySend(ackFrame(typeJoined, ev.RoomID))
		} else {
			c.TrySend(errorFrame("already joined " + ev.RoomID))
		}
	case LeaveRoom:
		h.reg.Leave(ev.RoomID, c)
		c.TrySend(ackFrame(typeLeft, ev.RoomID))
	case Message:
		h.broadcast(c, ev.RoomID, ev.Body)
	}
}

// broadcast relays body to every other open member of the room, then
// enqueues it for durable write. Non-members get an error frame and
// nothing is relayed or enqueued.
func (h *Hub) broadcast(sender *Conn, roomID, body string) {
	if !h.reg.IsMember(roomID, sender) {
		sender.TrySend(errorFrame("not a member of " + roomID))
		return
	}

	h.deliver(roomID, sender, messageFrame(roomID, body, sender.UserID()))
	metrics.BroadcastsTotal.Inc()

	h.queue.Enqueue(queue.Message{RoomID: roomID, UserID: sender.UserID(), Body: body})

	if h.bus != nil {
		if err := h.bus.Publish(context.Background(), roomID, sender.UserID(), body); err != nil {
			h.log.Debug("bus.publish", "room", roomID, "err", err)
		}
	}
}

// deliver fans a frame out to the room's current members, skipping the
// sender. Each recipient is independent: a full or dead peer drops its
// copy without affecting the rest.
func (h *Hub) deliver(roomID string, sender *Conn, frame []byte) {
	for _, m := range h.reg.MembersOf(roomID) {
		if m == sender || !m.Open() {
			continue
		}
		if !m.TrySend(frame) {
			h.log.Debug("ws.send.dropped", "room", roomID, "user", m.UserID())
		}
	}
}
