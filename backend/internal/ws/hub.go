package ws

import (
	"sync"

	"collabsync/backend/internal/room"
)

// Hub 维护 docID -> 连接集合，replay room.Manager 的广播到具体连接。
// 房间里存的是连接而不是 userID：一个用户可开多个标签页/设备，
// 广播要逐连接发。
type Hub struct {
	mu sync.RWMutex
	// docID -> set of connections
	rooms map[string]map[*Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Conn]struct{})}
}

func (h *Hub) Join(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
}

func (h *Hub) Leave(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// ToOthers 实现 room.Broadcaster。发送是 fire-and-forget：
// 某个连接的队列满了就丢，不拖慢别人。
func (h *Hub) ToOthers(docID string, exceptClientID string, evt room.Event) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		if exceptClientID != "" && c.clientID == exceptClientID {
			continue
		}
		c.enqueue(evt)
	}
}
