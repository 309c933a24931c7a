package ot

// 成对变换：a 是尚未应用的原语，b 是已经应用到文档上的原语，
// 两者基于同一坐标系。返回把 a 挪到 b 之后坐标系里的结果。
// retain 不带位置语义，任何涉及 retain 的组合都原样返回。
func TransformEdit(a, b TextOperation) TextOperation {
	if a.Kind == KindRetain || b.Kind == KindRetain {
		return a
	}
	switch a.Kind {
	case KindInsert:
		switch b.Kind {
		case KindInsert:
			// 位置相同时约定先到者靠前，后来的 insert 往后挪
			if b.Position <= a.Position {
				a.Position += b.TextLen()
			}
		case KindDelete:
			if b.Position <= a.Position {
				a.Position = maxInt(b.Position, a.Position-b.Length)
			}
		}
	case KindDelete:
		switch b.Kind {
		case KindInsert:
			if b.Position <= a.Position {
				a.Position += b.TextLen()
			}
		case KindDelete:
			aEnd := a.Position + a.Length
			bEnd := b.Position + b.Length
			if bEnd <= a.Position {
				// b 整段在 a 之前，a 整体前移
				a.Position -= b.Length
			} else if b.Position < aEnd {
				// 区间重叠：重叠部分已被 b 删掉，a 只剩余量，长度不允许为负
				overlap := minInt(aEnd, bEnd) - maxInt(a.Position, b.Position)
				a.Length -= overlap
				if a.Length < 0 {
					a.Length = 0
				}
				if b.Position < a.Position {
					a.Position = b.Position
				}
			}
		}
	}
	return a
}

// TransformEdits 把一个编辑序列整体变换到 committed（某个已提交操作的编辑序列）之后。
func TransformEdits(edits, committed []TextOperation) []TextOperation {
	out := make([]TextOperation, len(edits))
	copy(out, edits)
	for _, b := range committed {
		for i := range out {
			out[i] = TransformEdit(out[i], b)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
