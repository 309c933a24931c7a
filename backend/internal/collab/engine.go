package collab

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"collabsync/backend/internal/ot"
)

var (
	// 客户端的 baseVersion 早于 history 还保留的范围，只能走快照重同步
	ErrSnapshotRequired = errors.New("SNAPSHOT_REQUIRED")
)

// DefaultHistoryLimit 是 history 的保留上限，超过后最老的提交被逐出。
const DefaultHistoryLimit = 1000

// Snapshot 是文档的权威 {内容, 版本} 对，用于首次加入和重同步。
type Snapshot struct {
	Content string `json:"content"`
	Version uint64 `json:"version"`
}

// Engine 持有单个文档的权威状态：内容缓冲、版本号、已提交操作日志。
// content/version/history 只允许本引擎改动，Room 层不直接碰。
//
// 并发模型：mu 保证同一文档的 Commit 严格串行（OT 变换只有在
// 两次 Commit 不交错读写同一段 history 时才正确）。不同文档各有
// 自己的 Engine，天然并行。
type Engine struct {
	mu      sync.RWMutex
	buf     Buffer
	version uint64
	history []ot.Operation
	limit   int
}

func NewEngine(initial string, historyLimit int) *Engine {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Engine{
		buf:     NewPieceTable(initial),
		history: make([]ot.Operation, 0, historyLimit),
		limit:   historyLimit,
	}
}

// Commit 把一个客户端操作提交到文档上：
//  1. 结构校验，失败不动任何状态
//  2. 收集 baseVersion 之后由其他 client 提交的操作（并发集）
//  3. 把 op.Edits 逐个变换到并发集之后的坐标系
//  4. 按位置从大到小应用到内容
//  5. version+1 赋给 appliedVersion，追加 history 并逐出超限的最老条目
//
// 返回的 Operation 携带变换后的 edits 和 appliedVersion，直接用于广播。
func (e *Engine) Commit(op ot.Operation) (ot.Operation, error) {
	if err := ot.Validate(op); err != nil {
		return ot.Operation{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if op.BaseVersion > e.version {
		return ot.Operation{}, fmt.Errorf("%w: base version %d ahead of document version %d",
			ot.ErrMalformedOperation, op.BaseVersion, e.version)
	}
	// history 覆盖 (version-len, version]；base 落在被逐出的区间就无法变换了
	if op.BaseVersion < e.version-uint64(len(e.history)) {
		return ot.Operation{}, fmt.Errorf("%w: base version %d evicted from history",
			ErrSnapshotRequired, op.BaseVersion)
	}

	edits := make([]ot.TextOperation, len(op.Edits))
	copy(edits, op.Edits)
	for _, committed := range e.history {
		if committed.AppliedVersion <= op.BaseVersion || committed.ClientID == op.ClientID {
			continue
		}
		edits = ot.TransformEdits(edits, committed.Edits)
	}

	// 位置从大到小应用，前面的编辑不会挪动后面编辑的下标。
	// 同一次提交内的原语由客户端保证互不重叠、已排序。
	order := make([]int, len(edits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return edits[order[i]].Position > edits[order[j]].Position
	})

	// 先整体核一遍边界再动内容，保证拒绝时状态原样
	docLen := e.buf.Len()
	for _, i := range order {
		ed := edits[i]
		switch ed.Kind {
		case ot.KindInsert:
			if ed.Position > docLen {
				return ot.Operation{}, fmt.Errorf("%w: insert at %d beyond length %d",
					ot.ErrMalformedOperation, ed.Position, docLen)
			}
		case ot.KindDelete:
			if ed.Position+ed.Length > docLen {
				return ot.Operation{}, fmt.Errorf("%w: delete [%d,%d) beyond length %d",
					ot.ErrMalformedOperation, ed.Position, ed.Position+ed.Length, docLen)
			}
		}
	}

	for _, i := range order {
		ed := edits[i]
		switch ed.Kind {
		case ot.KindInsert:
			if err := e.buf.InsertAt(ed.Position, ed.Text); err != nil {
				return ot.Operation{}, fmt.Errorf("%w: %v", ot.ErrMalformedOperation, err)
			}
		case ot.KindDelete:
			if ed.Length == 0 {
				// 变换把区间整个吃掉了，跳过
				continue
			}
			if err := e.buf.DeleteAt(ed.Position, ed.Length); err != nil {
				return ot.Operation{}, fmt.Errorf("%w: %v", ot.ErrMalformedOperation, err)
			}
		}
	}

	e.version++
	committed := op
	committed.Edits = edits
	committed.AppliedVersion = e.version
	committed.Timestamp = time.Now()
	if committed.ID == "" {
		committed.ID = uuid.NewString()
	}

	if len(e.history) == e.limit {
		copy(e.history, e.history[1:])
		e.history = e.history[:len(e.history)-1]
	}
	e.history = append(e.history, committed)

	return committed, nil
}

// Snapshot 只读，无副作用。
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{Content: e.buf.String(), Version: e.version}
}

// Version 返回当前文档版本。
func (e *Engine) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.version
}
