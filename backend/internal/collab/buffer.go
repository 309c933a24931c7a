package collab

// 抽象文档内容缓冲区接口。位置与长度都按 rune 计。
//
// 与常见的 delta 风格（retain 游标 + 顺序应用）不同，这里用绝对偏移：
// 引擎把一次提交里的原语按位置从大到小应用，先应用的不会影响后面
// 原语的下标，所以缓冲区只需要支持“在 pos 插入 / 从 pos 删 n 个”。
type Buffer interface {
	Len() int
	InsertAt(pos int, text string) error
	DeleteAt(pos, n int) error
	String() string
}
