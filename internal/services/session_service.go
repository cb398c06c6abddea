// internal/services/session_service.go
package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/Corphon/IntoTheDarkMCP/internal/errors"
	"github.com/Corphon/IntoTheDarkMCP/internal/models"
	"github.com/Corphon/IntoTheDarkMCP/internal/utils"
)

// StateUpdate 会话状态变更通知，推送给表现层订阅者
type StateUpdate struct {
	SessionID    string                    `json:"session_id"`
	SceneID      int                       `json:"scene_id"`
	Memory       map[models.MemoryType]int `json:"memory"`
	Alignment    string                    `json:"alignment"`
	IsTerminal   bool                      `json:"is_terminal"`
	TotalChoices int                       `json:"total_choices"`
	Timestamp    time.Time                 `json:"timestamp"`
}

// MemoryData get_memory 命令的完整数据
type MemoryData struct {
	Values       map[models.MemoryType]int `json:"values"`
	Alignment    string                    `json:"alignment"`
	TotalChoices int                       `json:"total_choices"`
	Insights     MemoryInsights            `json:"insights"`
}

// MemoryInsights 玩家选择模式洞察
type MemoryInsights struct {
	ChoiceCounts map[models.MemoryType]int `json:"choice_counts"`
	PlayStyle    string                    `json:"play_style"`
}

// ChoiceResult make_choice 命令的结果
type ChoiceResult struct {
	SceneID     int    `json:"scene_id"`
	Consequence string `json:"consequence"`
	IsTerminal  bool   `json:"is_terminal"`
}

// SessionService 持有当前会话并实现选择应用算法
// 会话只通过 MakeChoice / Reset / RestoreSlot 变更，每次变更先落盘再生效
type SessionService struct {
	Graph *GraphService
	Saves *SaveService

	lockManager    *LockManager
	alignmentRules []models.AlignmentRule

	// sessionMutex 只保护 session 指针本身；
	// 命令级互斥由 lockManager 按会话ID提供
	sessionMutex sync.RWMutex
	session      *models.SessionState

	subscriberMutex sync.RWMutex
	subscribers     []func(StateUpdate)
}

// NewSessionService 创建会话服务并恢复或新建会话
// 自动存档损坏时退回全新会话，绝不尝试修复内容
func NewSessionService(graph *GraphService, saves *SaveService, alignmentRules []models.AlignmentRule) (*SessionService, error) {
	s := &SessionService{
		Graph:          graph,
		Saves:          saves,
		lockManager:    NewLockManager(),
		alignmentRules: alignmentRules,
	}

	logger := utils.GetLogger()

	session, err := saves.Load()
	switch {
	case err == nil:
		s.session = session
	case apperrors.IsNotFoundError(err):
		// 首次运行：创建并持久化全新会话
		session, err = saves.Reset()
		if err != nil {
			return nil, err
		}
		s.session = session
	case apperrors.IsCorruptDataError(err):
		logger.Warnf("自动存档损坏，退回全新会话: %v", err)
		session, err = saves.Reset()
		if err != nil {
			return nil, err
		}
		s.session = session
	default:
		return nil, err
	}

	return s, nil
}

// currentSession 读取当前会话指针
func (s *SessionService) currentSession() *models.SessionState {
	s.sessionMutex.RLock()
	defer s.sessionMutex.RUnlock()
	return s.session
}

// setSession 替换当前会话指针
// 必须在持有该会话命令锁的前提下调用
func (s *SessionService) setSession(session *models.SessionState) {
	s.sessionMutex.Lock()
	s.session = session
	s.sessionMutex.Unlock()
}

// errSessionReplaced 表示锁住的会话已被替换
var errSessionReplaced = errors.New("会话已被替换")

// withSessionLock 在当前会话的写锁内执行 fn
// Reset/RestoreSlot 会替换会话并更换锁，因此取锁后必须复核指针：
// 发现会话已被替换时放弃本次加锁，对新会话重试
func (s *SessionService) withSessionLock(fn func(session *models.SessionState) error) error {
	for {
		session := s.currentSession()
		err := s.lockManager.ExecuteWithSessionLock(session.ID, func() error {
			if s.currentSession() != session {
				return errSessionReplaced
			}
			return fn(session)
		})
		if errors.Is(err, errSessionReplaced) {
			continue
		}
		return err
	}
}

// withSessionReadLock 在当前会话的读锁内执行 fn，带同样的替换复核
func (s *SessionService) withSessionReadLock(fn func(session *models.SessionState) error) error {
	for {
		session := s.currentSession()
		err := s.lockManager.ExecuteWithSessionReadLock(session.ID, func() error {
			if s.currentSession() != session {
				return errSessionReplaced
			}
			return fn(session)
		})
		if errors.Is(err, errSessionReplaced) {
			continue
		}
		return err
	}
}

// Subscribe 注册状态变更订阅者
func (s *SessionService) Subscribe(fn func(StateUpdate)) {
	s.subscriberMutex.Lock()
	defer s.subscriberMutex.Unlock()

	s.subscribers = append(s.subscribers, fn)
}

// notifySubscribers 向所有订阅者推送变更后的状态
func (s *SessionService) notifySubscribers(session *models.SessionState) {
	scene, err := s.Graph.GetScene(session.CurrentSceneID)
	if err != nil {
		return
	}

	update := StateUpdate{
		SessionID:    session.ID,
		SceneID:      session.CurrentSceneID,
		Memory:       session.Memory.Clone().Values,
		Alignment:    models.DeriveAlignment(session.Memory, s.alignmentRules),
		IsTerminal:   scene.IsTerminal(),
		TotalChoices: len(session.History),
		Timestamp:    time.Now(),
	}

	s.subscriberMutex.RLock()
	subscribers := make([]func(StateUpdate), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.subscriberMutex.RUnlock()

	for _, fn := range subscribers {
		fn(update)
	}
}

// CurrentScene 返回当前场景
func (s *SessionService) CurrentScene() (*models.Scene, error) {
	var scene *models.Scene
	err := s.withSessionReadLock(func(session *models.SessionState) error {
		var err error
		scene, err = s.Graph.GetScene(session.CurrentSceneID)
		return err
	})
	return scene, err
}

// SessionSnapshot 返回当前会话的深拷贝（只读用途）
func (s *SessionService) SessionSnapshot() *models.SessionState {
	var snapshot *models.SessionState
	s.withSessionReadLock(func(session *models.SessionState) error {
		snapshot = session.Clone()
		return nil
	})
	return snapshot
}

// GetMemoryData 返回特质向量、倾向与选择洞察
// 倾向每次读取即时推导，保证与特质值永不分叉
func (s *SessionService) GetMemoryData() *MemoryData {
	var data *MemoryData
	s.withSessionReadLock(func(session *models.SessionState) error {
		data = &MemoryData{
			Values:       session.Memory.Clone().Values,
			Alignment:    models.DeriveAlignment(session.Memory, s.alignmentRules),
			TotalChoices: len(session.History),
			Insights:     deriveInsights(session.History),
		}
		return nil
	})
	return data
}

// deriveInsights 根据选择历史统计玩家风格
func deriveInsights(history []models.HistoryEntry) MemoryInsights {
	counts := make(map[models.MemoryType]int)
	for _, entry := range history {
		if entry.MemoryType != models.MemoryNone {
			counts[entry.MemoryType]++
		}
	}

	styleLabels := map[models.MemoryType]string{
		models.MemoryKindness:  "Kind",
		models.MemoryObsession: "Obsessed",
		models.MemoryTruth:     "Truth-Seeker",
		models.MemoryTrust:     "Trusting",
	}

	// 按固定优先级顺序取最多的特质，保证结果确定
	playStyle := "Balanced"
	best := 0
	for _, trait := range models.RecognizedTraits {
		if counts[trait] > best {
			best = counts[trait]
			playStyle = styleLabels[trait]
		}
	}
	if best == 0 {
		playStyle = "Unknown"
	}

	return MemoryInsights{
		ChoiceCounts: counts,
		PlayStyle:    playStyle,
	}
}

// MakeChoice 应用一次玩家选择
// 流程：解析当前场景 -> 校验索引 -> 在副本上累加特质并推进场景
// -> 持久化副本 -> 替换内存会话。持久化失败时内存状态保持不变，
// 选择应用对持久化状态是原子的。
func (s *SessionService) MakeChoice(choiceIndex int) (*ChoiceResult, error) {
	var result *ChoiceResult
	var updated *models.SessionState

	err := s.withSessionLock(func(session *models.SessionState) error {
		scene, err := s.Graph.GetScene(session.CurrentSceneID)
		if err != nil {
			return err
		}

		// 零选项场景是终局信号，表现层应按结局处理
		if scene.IsTerminal() {
			return apperrors.NewNoChoicesError(fmt.Sprintf("场景 %d 是终局场景，没有可用选项", scene.ID))
		}

		if choiceIndex < 0 || choiceIndex >= len(scene.Choices) {
			return apperrors.NewInvalidChoiceError(
				fmt.Sprintf("选项索引越界: %d（场景 %d 共 %d 个选项）", choiceIndex, scene.ID, len(scene.Choices)))
		}

		choice := scene.Choices[choiceIndex]

		// 在副本上变更，持久化成功后才替换当前会话
		updated = session.Clone()

		if choice.HasMemoryEffect() {
			if !models.IsRecognizedTrait(choice.MemoryType) {
				// 加载校验应当已拦截，触发即内容或程序错误
				return apperrors.NewInvalidTraitError(string(choice.MemoryType))
			}
			updated.Memory.ApplyDelta(choice.MemoryType, choice.MemoryDelta)
		}

		updated.MarkWatched(scene.ID)
		updated.History = append(updated.History, models.HistoryEntry{
			SceneID:     scene.ID,
			ChoiceIndex: choiceIndex,
			ChoiceText:  choice.Text,
			MemoryType:  choice.MemoryType,
			MemoryDelta: choice.MemoryDelta,
			Timestamp:   time.Now(),
		})
		updated.CurrentSceneID = choice.NextSceneID
		updated.UpdatedAt = time.Now()

		if err := s.Saves.Save(updated); err != nil {
			// 副本被丢弃，内存与持久化状态都停留在选择之前
			return err
		}

		s.setSession(updated)

		nextScene, err := s.Graph.GetScene(choice.NextSceneID)
		if err != nil {
			return err
		}

		consequence := choice.Consequence
		if consequence == "" {
			consequence = fmt.Sprintf("Choice made: %s", choice.Text)
		}

		result = &ChoiceResult{
			SceneID:     updated.CurrentSceneID,
			Consequence: consequence,
			IsTerminal:  nextScene.IsTerminal(),
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.notifySubscribers(updated)

	return result, nil
}

// Reset 丢弃当前进度，回到起始场景与默认特质
func (s *SessionService) Reset() error {
	var oldID string
	var fresh *models.SessionState

	err := s.withSessionLock(func(session *models.SessionState) error {
		created, err := s.Saves.Reset()
		if err != nil {
			return err
		}

		oldID = session.ID
		fresh = created
		s.setSession(created)
		return nil
	})
	if err != nil {
		return err
	}

	s.lockManager.ReleaseSessionLock(oldID)
	s.notifySubscribers(fresh)

	return nil
}

// SaveToSlot 把当前会话复制到指定存档槽位
func (s *SessionService) SaveToSlot(slot int) error {
	return s.withSessionReadLock(func(session *models.SessionState) error {
		return s.Saves.SaveSlot(session, slot)
	})
}

// RestoreSlot 用指定槽位的存档替换当前会话
// 恢复出的会话立即写回自动存档，保证重启后仍在该进度
func (s *SessionService) RestoreSlot(slot int) error {
	var oldID string
	var restored *models.SessionState

	err := s.withSessionLock(func(session *models.SessionState) error {
		loaded, err := s.Saves.LoadSlot(slot)
		if err != nil {
			return err
		}

		if err := s.Saves.Save(loaded); err != nil {
			return err
		}

		oldID = session.ID
		restored = loaded
		s.setSession(loaded)
		return nil
	})
	if err != nil {
		return err
	}

	if oldID != restored.ID {
		s.lockManager.ReleaseSessionLock(oldID)
	}
	s.notifySubscribers(restored)

	return nil
}

// ListScenes 返回带访问标记的场景列表
func (s *SessionService) ListScenes() []models.SceneSummary {
	var summaries []models.SceneSummary
	s.withSessionReadLock(func(session *models.SessionState) error {
		summaries = s.Graph.ListScenes(session.HasWatched)
		return nil
	})
	return summaries
}

// CompletionPercentage 已访问场景占比
func (s *SessionService) CompletionPercentage() float64 {
	total := s.Graph.SceneCount()
	if total == 0 {
		return 0
	}

	var watched int
	s.withSessionReadLock(func(session *models.SessionState) error {
		watched = len(session.WatchedScenes)
		return nil
	})

	return float64(watched) / float64(total) * 100
}
