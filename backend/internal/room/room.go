package room

import (
	"sync"
	"time"

	"collabsync/backend/internal/collab"
	"collabsync/backend/internal/presence"
)

// Room 是一个文档的活跃协作单元：变换引擎 + 在场表 + 定时器。
// 首次 join 时惰性创建（从 PersistenceGateway 加载初始内容），
// 在场表清空或闲置超时后销毁。
type Room struct {
	docID   string
	engine  *collab.Engine
	tracker *presence.Tracker

	mu           sync.Mutex // 保护以下字段
	lastActivity time.Time
	dirty        bool // 有未落库的提交
	saveTimer    *time.Timer
	typingTimers map[uint64]*time.Timer
}

func newRoom(docID, content string, historyLimit int) *Room {
	return &Room{
		docID:        docID,
		engine:       collab.NewEngine(content, historyLimit),
		tracker:      presence.NewTracker(),
		lastActivity: time.Now(),
		typingTimers: make(map[uint64]*time.Timer),
	}
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActivity = time.Now()
	r.mu.Unlock()
}

func (r *Room) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// markDirty 记录有未保存内容并重置防抖定时器：
// 每次提交都把窗口推后，一阵连续编辑只落一次库。
func (r *Room) markDirty(d time.Duration, save func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirty = true
	if r.saveTimer != nil {
		r.saveTimer.Stop()
	}
	r.saveTimer = time.AfterFunc(d, save)
}

func (r *Room) clearDirtyIfVersion(v uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// 保存期间又有新提交的话保持 dirty，下个防抖周期重写
	if r.engine.Version() == v {
		r.dirty = false
	}
}

func (r *Room) isDirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// resetTypingTimer 给用户挂 2 秒自动清除的输入中定时器。
func (r *Room) resetTypingTimer(userID uint64, d time.Duration, clear func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.typingTimers[userID]; ok {
		t.Stop()
	}
	r.typingTimers[userID] = time.AfterFunc(d, clear)
}

func (r *Room) stopTypingTimer(userID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.typingTimers[userID]; ok {
		t.Stop()
		delete(r.typingTimers, userID)
	}
}

// stopTimers 在房间销毁时停掉所有定时器。
func (r *Room) stopTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveTimer != nil {
		r.saveTimer.Stop()
		r.saveTimer = nil
	}
	for id, t := range r.typingTimers {
		t.Stop()
		delete(r.typingTimers, id)
	}
}
