// internal/models/session.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry 记录一次已做出的选择，供审计与回放
type HistoryEntry struct {
	SceneID     int        `json:"scene_id"`
	ChoiceIndex int        `json:"choice_index"`
	ChoiceText  string     `json:"choice_text"`
	MemoryType  MemoryType `json:"memory_type,omitempty"`
	MemoryDelta int        `json:"memory_delta,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// SessionState 表示一个玩家会话的完整可变状态
// 每次变更后整体持久化，重置时整体替换
type SessionState struct {
	ID             string         `json:"id"`
	CurrentSceneID int            `json:"current_scene_id"`
	Memory         *MemoryState   `json:"memory"`
	History        []HistoryEntry `json:"history,omitempty"`
	WatchedScenes  []int          `json:"watched_scenes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewSessionState 创建初始会话：起始场景 + 全零特质
func NewSessionState(startSceneID int) *SessionState {
	now := time.Now()
	return &SessionState{
		ID:             uuid.NewString(),
		CurrentSceneID: startSceneID,
		Memory:         NewMemoryState(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone 返回会话状态的深拷贝，用于写时复制的变更流程
func (s *SessionState) Clone() *SessionState {
	cloned := &SessionState{
		ID:             s.ID,
		CurrentSceneID: s.CurrentSceneID,
		Memory:         s.Memory.Clone(),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if len(s.History) > 0 {
		cloned.History = make([]HistoryEntry, len(s.History))
		copy(cloned.History, s.History)
	}
	if len(s.WatchedScenes) > 0 {
		cloned.WatchedScenes = make([]int, len(s.WatchedScenes))
		copy(cloned.WatchedScenes, s.WatchedScenes)
	}
	return cloned
}

// HasWatched 判断场景是否已被访问过
func (s *SessionState) HasWatched(sceneID int) bool {
	for _, id := range s.WatchedScenes {
		if id == sceneID {
			return true
		}
	}
	return false
}

// MarkWatched 把场景加入已访问列表（幂等）
func (s *SessionState) MarkWatched(sceneID int) {
	if !s.HasWatched(sceneID) {
		s.WatchedScenes = append(s.WatchedScenes, sceneID)
	}
}

// SaveSlotInfo 描述一个存档槽位的元数据
type SaveSlotInfo struct {
	Slot         int       `json:"slot"`
	Exists       bool      `json:"exists"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
	CurrentScene int       `json:"current_scene"`
	Alignment    string    `json:"alignment,omitempty"`
	ChoicesMade  int       `json:"choices_made"`
}
