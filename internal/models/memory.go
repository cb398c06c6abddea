// internal/models/memory.go
package models

// MemoryType 表示一种记忆特质
type MemoryType string

const (
	// MemoryNone 表示选项不影响任何特质
	MemoryNone MemoryType = ""

	MemoryKindness  MemoryType = "kindness"
	MemoryObsession MemoryType = "obsession"
	MemoryTruth     MemoryType = "truth"
	MemoryTrust     MemoryType = "trust"
)

const (
	// MemoryValueMin / MemoryValueMax 特质数值边界
	MemoryValueMin = 0
	MemoryValueMax = 100
)

// RecognizedTraits 引擎识别的全部特质，顺序固定
var RecognizedTraits = []MemoryType{
	MemoryKindness,
	MemoryObsession,
	MemoryTruth,
	MemoryTrust,
}

// IsRecognizedTrait 检查特质名是否被引擎识别
func IsRecognizedTrait(t MemoryType) bool {
	for _, known := range RecognizedTraits {
		if t == known {
			return true
		}
	}
	return false
}

// MemoryState 表示一个会话的记忆特质向量
// alignment 永远即时推导，从不单独存储
type MemoryState struct {
	Values map[MemoryType]int `json:"values"`
}

// NewMemoryState 创建全部特质为默认值 0 的记忆状态
func NewMemoryState() *MemoryState {
	values := make(map[MemoryType]int, len(RecognizedTraits))
	for _, t := range RecognizedTraits {
		values[t] = MemoryValueMin
	}
	return &MemoryState{Values: values}
}

// Clone 返回记忆状态的深拷贝
func (m *MemoryState) Clone() *MemoryState {
	values := make(map[MemoryType]int, len(m.Values))
	for t, v := range m.Values {
		values[t] = v
	}
	return &MemoryState{Values: values}
}

// Get 读取某个特质的当前值，未记录的识别特质按 0 处理
func (m *MemoryState) Get(t MemoryType) int {
	return m.Values[t]
}

// clampMemoryValue 把特质值收敛到 [0, 100]
func clampMemoryValue(v int) int {
	if v < MemoryValueMin {
		return MemoryValueMin
	}
	if v > MemoryValueMax {
		return MemoryValueMax
	}
	return v
}

// ApplyDelta 把增量累加到指定特质并收敛到边界
// 调用前必须通过 IsRecognizedTrait 校验，未识别的特质由上层返回 InvalidTraitError
func (m *MemoryState) ApplyDelta(t MemoryType, delta int) {
	m.Values[t] = clampMemoryValue(m.Values[t] + delta)
}

// AlignmentRule 表示一条倾向判定规则
type AlignmentRule struct {
	Trait         MemoryType `json:"trait"`
	HighThreshold int        `json:"high_threshold"`
	Label         string     `json:"label"`
}

// AlignmentNeutral 所有特质都未达到阈值时的默认倾向
const AlignmentNeutral = "Neutral"

// DefaultAlignmentRules 默认倾向阈值表
// 表顺序即优先级：并列时前面的特质获胜
var DefaultAlignmentRules = []AlignmentRule{
	{Trait: MemoryKindness, HighThreshold: 20, Label: "Kind"},
	{Trait: MemoryObsession, HighThreshold: 20, Label: "Obsessed"},
	{Trait: MemoryTruth, HighThreshold: 20, Label: "Truth-Seeker"},
	{Trait: MemoryTrust, HighThreshold: 20, Label: "Trusting"},
}

// DeriveAlignment 根据特质向量推导倾向标签
// 纯函数：只依赖当前值，与达到该值的路径无关。
// 判定：找出最大特质值，按规则表顺序返回第一条
// "特质值等于最大值且达到阈值" 的规则标签。
func DeriveAlignment(m *MemoryState, rules []AlignmentRule) string {
	if m == nil || len(m.Values) == 0 {
		return AlignmentNeutral
	}

	maxValue := MemoryValueMin
	for _, v := range m.Values {
		if v > maxValue {
			maxValue = v
		}
	}

	for _, rule := range rules {
		if m.Get(rule.Trait) == maxValue && maxValue >= rule.HighThreshold {
			return rule.Label
		}
	}

	return AlignmentNeutral
}
