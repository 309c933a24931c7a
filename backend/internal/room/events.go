package room

import (
	"collabsync/backend/internal/ot"
	"collabsync/backend/internal/presence"
)

// 广播事件类型（服务端 -> 房间内其他连接）
const (
	EventJoined             = "joined"
	EventLeft               = "left"
	EventOperationCommitted = "operation-committed"
	EventCursorMoved        = "cursor-moved"
	EventSelectionChanged   = "selection-changed"
	EventTypingStarted      = "typing-started"
	EventTypingStopped      = "typing-stopped"
)

// Event 是 Manager 通过 Broadcaster 推送给房间的消息体。
// 按 Type 取对应字段，其余为空。
type Event struct {
	Type        string                 `json:"type"`
	DocID       string                 `json:"docId"`
	UserID      uint64                 `json:"userId,omitempty"`
	Participant *presence.UserPresence `json:"participant,omitempty"`
	Operation   *ot.Operation          `json:"operation,omitempty"`
	Version     uint64                 `json:"version,omitempty"`
	Cursor      *presence.Position     `json:"cursor,omitempty"`
	Selection   *presence.Selection    `json:"selection,omitempty"`
}

// Broadcaster 由传输层实现（ws.Hub）。广播相对提交方是 fire-and-forget，
// Manager 不等待任何对端确认。
type Broadcaster interface {
	// ToOthers 发给 docID 房间内除 exceptClientID 以外的所有连接。
	// exceptClientID 为空串时发给所有连接。
	ToOthers(docID string, exceptClientID string, evt Event)
}

// JoinState 是 join 的应答：权威快照 + 当前参与者列表，只回给加入者本人。
type JoinState struct {
	Content      string                  `json:"content"`
	Version      uint64                  `json:"version"`
	Participants []presence.UserPresence `json:"participants"`
}
