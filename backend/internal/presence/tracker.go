package presence

import (
	"sort"
	"sync"
	"time"
)

// Position 是 {行, 列} 形式的光标位置（前端编辑器坐标，引擎不换算）。
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Selection struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Identity 由鉴权层校验后注入，这里只透传。
type Identity struct {
	UserID      uint64 `json:"userId"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
}

// UserPresence 是房间内一个参与者的瞬态状态，随连接生灭，不落库。
type UserPresence struct {
	UserID      uint64     `json:"userId"`
	DisplayName string     `json:"displayName"`
	Avatar      string     `json:"avatar,omitempty"`
	Cursor      *Position  `json:"cursor,omitempty"`
	Selection   *Selection `json:"selection,omitempty"`
	LastSeen    time.Time  `json:"lastSeen"`
	Typing      bool       `json:"typing"`
}

// Tracker 维护一个房间 userId -> UserPresence 的映射。
type Tracker struct {
	mu      sync.RWMutex
	members map[uint64]*UserPresence
}

func NewTracker() *Tracker {
	return &Tracker{members: make(map[uint64]*UserPresence)}
}

// Join 登记参与者。重复加入（多标签页重连）时覆盖身份字段、
// 清掉旧的光标/选区，不保留任何旧状态。
func (t *Tracker) Join(id Identity) UserPresence {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &UserPresence{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Avatar:      id.Avatar,
		LastSeen:    time.Now(),
	}
	t.members[id.UserID] = p
	return *p
}

// UpdateCursor 更新光标；用户不在房间时是 no-op，返回 false。
func (t *Tracker) UpdateCursor(userID uint64, cur Position) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.members[userID]
	if !ok {
		return false
	}
	c := cur
	p.Cursor = &c
	p.LastSeen = time.Now()
	return true
}

func (t *Tracker) UpdateSelection(userID uint64, sel Selection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.members[userID]
	if !ok {
		return false
	}
	s := sel
	p.Selection = &s
	p.LastSeen = time.Now()
	return true
}

// SetTyping 设置输入中标记。2 秒自动清除的定时器由调用方负责。
func (t *Tracker) SetTyping(userID uint64, typing bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.members[userID]
	if !ok {
		return false
	}
	p.Typing = typing
	p.LastSeen = time.Now()
	return true
}

// Touch 只刷新 lastSeen（任何来自该用户的事件都算活跃）。
func (t *Tracker) Touch(userID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.members[userID]; ok {
		p.LastSeen = time.Now()
	}
}

// Leave 移除参与者，返回房间是否因此变空。
func (t *Tracker) Leave(userID uint64) (empty bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.members, userID)
	return len(t.members) == 0
}

func (t *Tracker) Contains(userID uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.members[userID]
	return ok
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

// Members 返回按 userId 排序的参与者快照。
func (t *Tracker) Members() []UserPresence {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]UserPresence, 0, len(t.members))
	for _, p := range t.members {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
