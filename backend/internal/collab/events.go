package collab

import (
	"time"

	"collabsync/backend/internal/ot"
)

// OpCommittedEvent 是提交成功后投递到 Kafka 的事件，
// 下游（索引、审计、统计）按 docId 分区顺序消费。
type OpCommittedEvent struct {
	EventType   string             `json:"eventType"` // 固定 "OP_COMMITTED"
	DocID       string             `json:"docId"`
	OperationID string             `json:"operationId"`
	Version     uint64             `json:"version"`
	UserID      uint64             `json:"userId"`
	ClientID    string             `json:"clientId"`
	BaseVersion uint64             `json:"baseVersion"`
	Edits       []ot.TextOperation `json:"edits"`
	CommittedAt time.Time          `json:"committedAt"`
}
