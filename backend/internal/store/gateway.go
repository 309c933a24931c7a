package store

import (
	"context"
	"log"
)

// Gateway 实现房间层的 PersistenceGateway：
// Load 读 documents 表，Save 更新 documents 并顺手追加一条快照审计行。
// 快照写失败不影响主保存（审计是尽力而为）。
type Gateway struct {
	docs  *DocumentStore
	snaps *SnapshotStore // 可为 nil
}

func NewGateway(docs *DocumentStore, snaps *SnapshotStore) *Gateway {
	return &Gateway{docs: docs, snaps: snaps}
}

func (g *Gateway) Load(ctx context.Context, docID string) (string, error) {
	return g.docs.LoadContent(ctx, docID)
}

func (g *Gateway) Save(ctx context.Context, docID, content string, version uint64) error {
	if err := g.docs.SaveContent(ctx, docID, content, version); err != nil {
		return err
	}
	if g.snaps != nil {
		if err := g.snaps.SaveDocumentSnapshot(ctx, docID, version, content); err != nil {
			log.Printf("snapshot append failed doc=%s rev=%d: %v", docID, version, err)
		}
	}
	return nil
}
