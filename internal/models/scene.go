// internal/models/scene.go
package models

// Dialogue 表示场景中的一句台词
type Dialogue struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Emotion string `json:"emotion,omitempty"` // neutral, melancholic, determined 等
}

// Choice 表示场景中的一个选项
// MemoryDelta 为作者逐选项定义的数值，不是引擎常量
type Choice struct {
	Text        string     `json:"text"`
	MemoryType  MemoryType `json:"memory_type"` // 空串表示该选项不影响记忆
	MemoryDelta int        `json:"memory_delta"`
	NextSceneID int        `json:"next_scene_id"`
	Consequence string     `json:"consequence,omitempty"` // 选择后的反馈文本
}

// HasMemoryEffect 判断该选项是否影响记忆特质
func (c *Choice) HasMemoryEffect() bool {
	return c.MemoryType != MemoryNone
}

// Scene 表示剧本图中的一个场景节点
// background/audio 等字段对引擎不透明，仅透传给表现层
type Scene struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Background    string     `json:"background"`
	Dialogues     []Dialogue `json:"dialogues"`
	Choices       []Choice   `json:"choices"` // 顺序即表现层展示顺序
	AudioTrack    string     `json:"audio_track,omitempty"`
	AmbientSound  string     `json:"ambient_sound,omitempty"`
	Lighting      string     `json:"lighting,omitempty"` // normal, dim, bright, eerie
	WeatherEffect string     `json:"weather_effect,omitempty"`
	CameraEffect  string     `json:"camera_effect,omitempty"`
}

// IsTerminal 判断是否为终局场景（没有任何选项）
func (s *Scene) IsTerminal() bool {
	return len(s.Choices) == 0
}

// DialogueText 把台词拼接为表现层可直接展示的文本
func (s *Scene) DialogueText() string {
	text := ""
	for i, d := range s.Dialogues {
		if i > 0 {
			text += "\n\n"
		}
		if d.Speaker != "" {
			text += d.Speaker + ": " + d.Text
		} else {
			text += d.Text
		}
	}
	return text
}

// StoryGraph 表示完整的剧本图定义
// 启动时加载一次，运行期只读
type StoryGraph struct {
	Title        string  `json:"title"`
	StartSceneID int     `json:"start_scene_id"`
	Scenes       []Scene `json:"scenes"`
}

// SceneSummary 用于场景列表展示
type SceneSummary struct {
	ID         int    `json:"scene_id"`
	Title      string `json:"title"`
	Background string `json:"background"`
	Watched    bool   `json:"watched"`
}
