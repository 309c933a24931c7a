package ws

import (
	"context"
	"log"

	"github.com/gorilla/websocket"

	"collabsync/backend/internal/presence"
	"collabsync/backend/internal/room"
)

// Conn 是一条已鉴权的 WebSocket 连接。一条连接可以同时加入多个房间。
type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	mgr      *room.Manager
	identity presence.Identity
	clientID string
	// 本连接已加入的房间集合，断开时逐个 leave
	joined map[string]struct{}
	// goroutine 之间的出站队列；writeLoop 消费
	send chan any
}

func NewConn(ws *websocket.Conn, hub *Hub, mgr *room.Manager, identity presence.Identity, clientID string) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		mgr:      mgr,
		identity: identity,
		clientID: clientID,
		joined:   make(map[string]struct{}),
		send:     make(chan any, 32),
	}
}

func (c *Conn) enqueue(msg any) {
	select {
	case c.send <- msg:
	default:
		// 队列满了则丢弃，慢消费者不拖慢广播
	}
}

func (c *Conn) reply(msg ServerMessage) {
	c.enqueue(msg)
}

func (c *Conn) readLoop(ctx context.Context) {
	// 读循环退出 = 连接断开：对已加入的每个房间补 leave
	defer func() {
		for docID := range c.joined {
			_ = c.mgr.OnLeave(ctx, docID, c.identity.UserID, c.clientID)
			c.hub.Leave(docID, c)
		}
		close(c.send)
	}()

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			log.Printf("read json error (user=%d client=%s): %v", c.identity.UserID, c.clientID, err)
			return
		}
		if msg.DocID == "" {
			c.reply(ServerMessage{Type: "error", Reason: "missing docId"})
			continue
		}

		switch msg.Type {
		case MsgJoin:
			state, err := c.mgr.OnJoin(ctx, msg.DocID, c.identity, c.clientID)
			if err != nil {
				c.reply(ServerMessage{Type: "error", DocID: msg.DocID, Reason: err.Error()})
				continue
			}
			c.hub.Join(msg.DocID, c)
			c.joined[msg.DocID] = struct{}{}
			c.reply(ServerMessage{
				Type:         "state",
				DocID:        msg.DocID,
				Content:      state.Content,
				Version:      state.Version,
				Participants: state.Participants,
			})

		case MsgLeave:
			_ = c.mgr.OnLeave(ctx, msg.DocID, c.identity.UserID, c.clientID)
			c.hub.Leave(msg.DocID, c)
			delete(c.joined, msg.DocID)

		case MsgOperation:
			if msg.Operation == nil {
				c.reply(ServerMessage{Type: "operation-rejected", DocID: msg.DocID, Reason: "missing operation"})
				continue
			}
			op := *msg.Operation
			// clientId 以连接为准，不信客户端报的
			op.ClientID = c.clientID
			committed, err := c.mgr.OnOperation(ctx, msg.DocID, c.identity.UserID, op)
			if err != nil {
				// 只回给提交方，不广播
				c.reply(ServerMessage{Type: "operation-rejected", DocID: msg.DocID, Reason: err.Error()})
				continue
			}
			// ack：提交方拿到 appliedVersion 才能推进本地 base
			c.reply(ServerMessage{
				Type:      "operation-committed",
				DocID:     msg.DocID,
				Version:   committed.AppliedVersion,
				Operation: &committed,
			})

		case MsgCursor:
			if msg.Cursor != nil {
				c.mgr.OnCursor(ctx, msg.DocID, c.identity.UserID, c.clientID, *msg.Cursor)
			}

		case MsgSelection:
			if msg.Selection != nil {
				c.mgr.OnSelection(ctx, msg.DocID, c.identity.UserID, c.clientID, *msg.Selection)
			}

		case MsgTypingStart:
			c.mgr.OnTypingStart(ctx, msg.DocID, c.identity.UserID, c.clientID)

		case MsgTypingStop:
			c.mgr.OnTypingStop(ctx, msg.DocID, c.identity.UserID, c.clientID)

		default:
			c.reply(ServerMessage{Type: "ignored", Reason: "unknown message type"})
		}
	}
}

func (c *Conn) writeLoop() {
	// 持续消费出站队列直到 readLoop 关掉它
	for msg := range c.send {
		_ = c.ws.WriteJSON(msg)
	}
}
