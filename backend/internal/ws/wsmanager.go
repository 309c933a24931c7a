package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"collabsync/backend/internal/presence"
	"collabsync/backend/internal/room"
)

// 全局的 WebSocket upgrader（允许本地开发环境的来源）
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" { // 一些环境可能不发送 Origin，或为 "null"
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

type Manager struct {
	hub *Hub
	mgr *room.Manager
}

func NewManager(hub *Hub, mgr *room.Manager) *Manager {
	return &Manager{hub: hub, mgr: mgr}
}

// WebSocketConnect 升级连接并进入读写循环。身份由鉴权中间件校验后
// 写入 gin context，这里只取用，不再做任何认证。
func (m *Manager) WebSocketConnect(c *gin.Context) {
	identity := presence.Identity{
		UserID:      c.GetUint64("userId"),
		DisplayName: c.GetString("username"),
		Avatar:      c.GetString("avatar"),
	}
	// 客户端实例标识，同一用户多端/多标签页各不相同
	clientID := strings.TrimSpace(c.Query("clientId"))
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	wsConn := NewConn(conn, m.hub, m.mgr, identity, clientID)

	// 先启动写循环，确保 readLoop 里入队的应答能被及时发出去
	go wsConn.writeLoop()
	wsConn.reply(ServerMessage{Type: "welcome"})

	// 读循环阻塞至连接关闭
	wsConn.readLoop(c.Request.Context())
}
