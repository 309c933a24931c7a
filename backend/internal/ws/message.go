package ws

import (
	"collabsync/backend/internal/ot"
	"collabsync/backend/internal/presence"
)

// 入站消息类型（客户端 -> 服务端）
const (
	MsgJoin        = "join"
	MsgLeave       = "leave"
	MsgOperation   = "operation"
	MsgCursor      = "cursor"
	MsgSelection   = "selection"
	MsgTypingStart = "typing-start"
	MsgTypingStop  = "typing-stop"
)

type ClientMessage struct {
	Type      string              `json:"type"`
	DocID     string              `json:"docId"`
	Operation *ot.Operation       `json:"operation,omitempty"`
	Cursor    *presence.Position  `json:"cursor,omitempty"`
	Selection *presence.Selection `json:"selection,omitempty"`
}

// ServerMessage 是只回给发送方本人的应答（state / 确认 / 错误）。
// 房间广播走 room.Event。
type ServerMessage struct {
	Type         string                  `json:"type"`
	DocID        string                  `json:"docId,omitempty"`
	Content      string                  `json:"content,omitempty"`
	Version      uint64                  `json:"version,omitempty"`
	Participants []presence.UserPresence `json:"participants,omitempty"`
	Operation    *ot.Operation           `json:"operation,omitempty"`
	Reason       string                  `json:"reason,omitempty"`
}
