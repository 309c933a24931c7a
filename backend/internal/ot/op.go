package ot

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

type Kind string

const (
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
	KindRetain Kind = "retain"
)

// 单条文本编辑原语。位置与长度均以 rune 计（与 PieceTable 保持一致），
// 不是字节偏移。
type TextOperation struct {
	Kind     Kind           `json:"kind"`               // "insert" / "delete" / "retain"
	Position int            `json:"position"`           // insert/delete 的起始偏移
	Length   int            `json:"length,omitempty"`   // delete/retain 的长度
	Text     string         `json:"text,omitempty"`     // insert 的文本
	Attrs    map[string]any `json:"attrs,omitempty"`    // 样式属性（粗体/颜色等），引擎不解析
}

// 客户端提交的一次变更集。Edits 可含多条原语（比如“替换”= delete + insert），
// 约定由客户端保证同一次提交内的原语互不重叠、已按位置排好。
type Operation struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"clientId"`
	Edits          []TextOperation `json:"edits"`
	BaseVersion    uint64          `json:"baseVersion"`
	AppliedVersion uint64          `json:"appliedVersion,omitempty"` // 提交成功后由引擎赋值
	Timestamp      time.Time       `json:"timestamp,omitempty"`      // 服务端提交时间
}

var ErrMalformedOperation = errors.New("MALFORMED_OPERATION")

// Validate 只做结构校验，不读不写任何文档状态。
// 必须在引擎改动状态之前调用。
func Validate(op Operation) error {
	if len(op.Edits) == 0 {
		return fmt.Errorf("%w: empty edits", ErrMalformedOperation)
	}
	for i, e := range op.Edits {
		switch e.Kind {
		case KindInsert:
			if e.Text == "" {
				return fmt.Errorf("%w: edit[%d] insert without text", ErrMalformedOperation, i)
			}
			if e.Position < 0 {
				return fmt.Errorf("%w: edit[%d] negative position", ErrMalformedOperation, i)
			}
		case KindDelete:
			if e.Position < 0 {
				return fmt.Errorf("%w: edit[%d] negative position", ErrMalformedOperation, i)
			}
			if e.Length <= 0 {
				return fmt.Errorf("%w: edit[%d] delete without length", ErrMalformedOperation, i)
			}
		case KindRetain:
			if e.Length <= 0 {
				return fmt.Errorf("%w: edit[%d] retain without length", ErrMalformedOperation, i)
			}
		default:
			return fmt.Errorf("%w: edit[%d] unknown kind %q", ErrMalformedOperation, i, e.Kind)
		}
	}
	return nil
}

// TextLen 返回 insert 文本的 rune 数。
func (e TextOperation) TextLen() int {
	return utf8.RuneCountInString(e.Text)
}
