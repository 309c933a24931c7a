package room

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"collabsync/backend/internal/collab"
	"collabsync/backend/internal/ot"
	"collabsync/backend/internal/presence"
)

var ErrRoomNotFound = errors.New("ROOM_NOT_FOUND")

// PersistenceGateway 是文档初始内容的来源和防抖保存的去处。
// Save 失败只打日志，下个防抖周期重试，绝不同步重试阻塞房间。
type PersistenceGateway interface {
	Load(ctx context.Context, docID string) (string, error)
	Save(ctx context.Context, docID, content string, version uint64) error
}

// PresenceMirror 把房间成员/光标镜像到进程外的共享存储（Redis），
// 多实例部署时别的进程也能看到在线状态。可为 nil。
type PresenceMirror interface {
	AddMember(ctx context.Context, docID string, userID uint64, username string, ttl time.Duration) error
	RemoveMember(ctx context.Context, docID string, userID uint64) error
	SetCursor(ctx context.Context, docID string, userID uint64, jsonData []byte, ttl time.Duration) error
}

// EventSink 消费提交成功的操作事件（Kafka dispatcher）。可为 nil。
type EventSink interface {
	Enqueue(ctx context.Context, evt collab.OpCommittedEvent) error
}

type Options struct {
	IdleThreshold time.Duration // 闲置多久后被清扫，默认 30 分钟
	SweepInterval time.Duration // 清扫周期，默认 5 分钟
	SaveDebounce  time.Duration // 保存防抖窗口，默认 5 秒
	TypingTimeout time.Duration // typing 自动清除，默认 2 秒
	HistoryLimit  int           // 每文档 history 保留条数，默认 1000
	MirrorTTL     time.Duration // 镜像条目的逻辑 TTL，默认 10 分钟
}

func (o *Options) fillDefaults() {
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = 30 * time.Minute
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
	if o.SaveDebounce <= 0 {
		o.SaveDebounce = 5 * time.Second
	}
	if o.TypingTimeout <= 0 {
		o.TypingTimeout = 2 * time.Second
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = collab.DefaultHistoryLimit
	}
	if o.MirrorTTL <= 0 {
		o.MirrorTTL = 10 * time.Minute
	}
}

// Manager 是唯一接收传输层事件的组件：按 docID 路由到房间、
// 对外广播、调度防抖保存、回收闲置房间。
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	gateway PersistenceGateway
	bc      Broadcaster
	mirror  PresenceMirror // 可为 nil
	events  EventSink      // 可为 nil

	// 并发 join 同一文档时只回源加载一次
	sf  singleflight.Group
	opt Options

	stop chan struct{}
}

func NewManager(gateway PersistenceGateway, bc Broadcaster, mirror PresenceMirror, events EventSink, opt Options) *Manager {
	opt.fillDefaults()
	return &Manager{
		rooms:   make(map[string]*Room),
		gateway: gateway,
		bc:      bc,
		mirror:  mirror,
		events:  events,
		opt:     opt,
		stop:    make(chan struct{}),
	}
}

// Start 启动周期清扫。清扫只是兜底回收，不是正确性来源：
// 被误清的房间下次 join 会从 PersistenceGateway 重建。
func (m *Manager) Start() {
	go func() {
		ticker := time.NewTicker(m.opt.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	close(m.stop)
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.opt.IdleThreshold)
	m.mu.RLock()
	var idle []string
	for docID, r := range m.rooms {
		if r.idleSince().Before(cutoff) {
			idle = append(idle, docID)
		}
	}
	m.mu.RUnlock()
	for _, docID := range idle {
		// 在场表非空也照样清，僵尸连接当作已断开
		m.removeRoom(docID)
	}
}

func (m *Manager) lookup(docID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[docID]
}

// getOrCreate 惰性建房。Load 只在创建时调用一次，singleflight
// 保证同一文档的并发首次 join 不会重复回源。
func (m *Manager) getOrCreate(ctx context.Context, docID string) (*Room, error) {
	if r := m.lookup(docID); r != nil {
		return r, nil
	}
	v, err, _ := m.sf.Do(docID, func() (any, error) {
		if r := m.lookup(docID); r != nil {
			return r, nil
		}
		content, err := m.gateway.Load(ctx, docID)
		if err != nil {
			return nil, err
		}
		r := newRoom(docID, content, m.opt.HistoryLimit)
		m.mu.Lock()
		m.rooms[docID] = r
		m.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Room), nil
}

// removeRoom 把房间摘掉：停定时器，有脏数据先落一次库。
func (m *Manager) removeRoom(docID string) {
	m.mu.Lock()
	r := m.rooms[docID]
	delete(m.rooms, docID)
	m.mu.Unlock()
	if r == nil {
		return
	}
	r.stopTimers()
	if r.isDirty() {
		m.flush(r)
	}
}

// flush 把当前内容写入 PersistenceGateway。失败只打日志，
// dirty 保持为真，等下一个防抖周期重试。
func (m *Manager) flush(r *Room) {
	snap := r.engine.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.gateway.Save(ctx, r.docID, snap.Content, snap.Version); err != nil {
		log.Printf("save failed doc=%s ver=%d: %v", r.docID, snap.Version, err)
		return
	}
	r.clearDirtyIfVersion(snap.Version)
}

// OnJoin 建房（如果还没有）、登记在场、把快照回给加入者本人，
// 并向房间其他人广播 joined。
func (m *Manager) OnJoin(ctx context.Context, docID string, id presence.Identity, clientID string) (JoinState, error) {
	r, err := m.getOrCreate(ctx, docID)
	if err != nil {
		return JoinState{}, err
	}
	p := r.tracker.Join(id)
	r.touch()

	if m.mirror != nil {
		if err := m.mirror.AddMember(ctx, docID, id.UserID, id.DisplayName, m.opt.MirrorTTL); err != nil {
			log.Printf("presence mirror add failed doc=%s user=%d: %v", docID, id.UserID, err)
		}
	}

	m.bc.ToOthers(docID, clientID, Event{Type: EventJoined, DocID: docID, UserID: id.UserID, Participant: &p})

	snap := r.engine.Snapshot()
	return JoinState{
		Content:      snap.Content,
		Version:      snap.Version,
		Participants: r.tracker.Members(),
	}, nil
}

// OnLeave 注销在场并广播 left；在场表清空时立即删房，没有宽限期。
func (m *Manager) OnLeave(ctx context.Context, docID string, userID uint64, clientID string) error {
	r := m.lookup(docID)
	if r == nil {
		return ErrRoomNotFound
	}
	r.stopTypingTimer(userID)
	empty := r.tracker.Leave(userID)
	r.touch()

	if m.mirror != nil {
		if err := m.mirror.RemoveMember(ctx, docID, userID); err != nil {
			log.Printf("presence mirror remove failed doc=%s user=%d: %v", docID, userID, err)
		}
	}

	m.bc.ToOthers(docID, clientID, Event{Type: EventLeft, DocID: docID, UserID: userID})

	if empty {
		m.removeRoom(docID)
	}
	return nil
}

// OnOperation 把操作交给引擎提交。成功则广播变换后的操作给其他参与者、
// 重置防抖保存、投递事件流；失败只把错误还给提交方，不广播。
func (m *Manager) OnOperation(ctx context.Context, docID string, userID uint64, op ot.Operation) (ot.Operation, error) {
	r := m.lookup(docID)
	if r == nil {
		return ot.Operation{}, ErrRoomNotFound
	}

	committed, err := r.engine.Commit(op)
	if err != nil {
		return ot.Operation{}, err
	}
	r.tracker.Touch(userID)
	r.touch()

	m.bc.ToOthers(docID, committed.ClientID, Event{
		Type:      EventOperationCommitted,
		DocID:     docID,
		UserID:    userID,
		Operation: &committed,
		Version:   committed.AppliedVersion,
	})

	r.markDirty(m.opt.SaveDebounce, func() { m.flush(r) })

	if m.events != nil {
		evtCtx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		if err := m.events.Enqueue(evtCtx, collab.OpCommittedEvent{
			EventType:   "OP_COMMITTED",
			DocID:       docID,
			OperationID: committed.ID,
			Version:     committed.AppliedVersion,
			UserID:      userID,
			ClientID:    committed.ClientID,
			BaseVersion: committed.BaseVersion,
			Edits:       committed.Edits,
			CommittedAt: committed.Timestamp,
		}); err != nil {
			log.Printf("event enqueue dropped doc=%s op=%s: %v", docID, committed.ID, err)
		}
	}

	return committed, nil
}

// OnCursor 更新光标并广播。用户不在房间时静默忽略。
func (m *Manager) OnCursor(ctx context.Context, docID string, userID uint64, clientID string, cur presence.Position) {
	r := m.lookup(docID)
	if r == nil {
		return
	}
	if !r.tracker.UpdateCursor(userID, cur) {
		return
	}
	r.touch()

	if m.mirror != nil {
		if b, err := json.Marshal(cur); err == nil {
			if err := m.mirror.SetCursor(ctx, docID, userID, b, m.opt.MirrorTTL); err != nil {
				log.Printf("presence mirror cursor failed doc=%s user=%d: %v", docID, userID, err)
			}
		}
	}

	m.bc.ToOthers(docID, clientID, Event{Type: EventCursorMoved, DocID: docID, UserID: userID, Cursor: &cur})
}

func (m *Manager) OnSelection(ctx context.Context, docID string, userID uint64, clientID string, sel presence.Selection) {
	r := m.lookup(docID)
	if r == nil {
		return
	}
	if !r.tracker.UpdateSelection(userID, sel) {
		return
	}
	r.touch()
	m.bc.ToOthers(docID, clientID, Event{Type: EventSelectionChanged, DocID: docID, UserID: userID, Selection: &sel})
}

// OnTypingStart 置位 typing 并挂自动清除定时器；每次开始输入都重置窗口。
func (m *Manager) OnTypingStart(ctx context.Context, docID string, userID uint64, clientID string) {
	r := m.lookup(docID)
	if r == nil {
		return
	}
	if !r.tracker.SetTyping(userID, true) {
		return
	}
	r.touch()
	m.bc.ToOthers(docID, clientID, Event{Type: EventTypingStarted, DocID: docID, UserID: userID})

	r.resetTypingTimer(userID, m.opt.TypingTimeout, func() {
		if r.tracker.SetTyping(userID, false) {
			// 超时清除是服务端行为，连提交方自己也要知道
			m.bc.ToOthers(docID, "", Event{Type: EventTypingStopped, DocID: docID, UserID: userID})
		}
	})
}

func (m *Manager) OnTypingStop(ctx context.Context, docID string, userID uint64, clientID string) {
	r := m.lookup(docID)
	if r == nil {
		return
	}
	r.stopTypingTimer(userID)
	if !r.tracker.SetTyping(userID, false) {
		return
	}
	r.touch()
	m.bc.ToOthers(docID, clientID, Event{Type: EventTypingStopped, DocID: docID, UserID: userID})
}

// OnDisconnect 把连接断开当作对该用户所在每个房间的 leave。
func (m *Manager) OnDisconnect(ctx context.Context, userID uint64, clientID string) {
	m.mu.RLock()
	var joined []string
	for docID, r := range m.rooms {
		if r.tracker.Contains(userID) {
			joined = append(joined, docID)
		}
	}
	m.mu.RUnlock()
	for _, docID := range joined {
		_ = m.OnLeave(ctx, docID, userID, clientID)
	}
}

// RoomCount 当前活跃房间数。
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
