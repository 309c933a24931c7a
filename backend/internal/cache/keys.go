package cache

import "fmt"

// 键语义：
// - roomKey(docID):   房间在线成员（ZSet<userId, expireAtUnix>，score=expireAt）
// - namesKey(docID):  房间内 userId→displayName 映射（Hash）
// - cursorKey(...):   单个成员的光标 JSON（String，带 TTL）

const (
	keyRoomFmt   = "presence:room:{docID:%s}"       // ZSet<userId, expireAtUnix>
	keyNamesFmt  = "presence:room:names:{docID:%s}" // Hash<userId -> displayName>
	keyCursorFmt = "presence:cursor:%s:%d"          // String(JSON)
)

func roomKey(docID string) string                  { return fmt.Sprintf(keyRoomFmt, docID) }
func namesKey(docID string) string                 { return fmt.Sprintf(keyNamesFmt, docID) }
func cursorKey(docID string, userID uint64) string { return fmt.Sprintf(keyCursorFmt, docID, userID) }
