// internal/services/save_service.go
package services

import (
	"fmt"
	"os"
	"time"

	apperrors "github.com/Corphon/IntoTheDarkMCP/internal/errors"
	"github.com/Corphon/IntoTheDarkMCP/internal/models"
	"github.com/Corphon/IntoTheDarkMCP/internal/storage"
)

const (
	// AutoSaveSlot 引擎在每次状态变更后写入的槽位
	AutoSaveSlot = 0
	// MaxSaveSlots 可用存档槽位数量
	MaxSaveSlots = 10

	saveDirName = "saves"
)

// saveEnvelope 存档文件的完整结构
// 元数据冗余存储，便于列出槽位时不必完整校验会话
type saveEnvelope struct {
	Version   string               `json:"version"`
	Timestamp time.Time            `json:"timestamp"`
	Session   *models.SessionState `json:"session"`
	Metadata  saveMetadata         `json:"metadata"`
}

type saveMetadata struct {
	CurrentScene int    `json:"current_scene"`
	Alignment    string `json:"alignment"`
	ChoicesMade  int    `json:"choices_made"`
}

const saveVersion = "1.0.0"

// SaveService 管理会话存档的读写
// 写入整体覆盖且崩溃安全：底层存储先写临时文件再改名
type SaveService struct {
	store          *storage.FileStore
	graph          *GraphService
	alignmentRules []models.AlignmentRule
}

// NewSaveService 创建存档服务
func NewSaveService(dataDir string, graph *GraphService, alignmentRules []models.AlignmentRule) (*SaveService, error) {
	store, err := storage.NewFileStore(dataDir)
	if err != nil {
		return nil, apperrors.NewPersistenceError("初始化存档存储失败", err)
	}

	return &SaveService{
		store:          store,
		graph:          graph,
		alignmentRules: alignmentRules,
	}, nil
}

// slotFilename 槽位对应的存档文件名
func slotFilename(slot int) string {
	return fmt.Sprintf("save_slot_%d.json", slot)
}

// validSlot 检查槽位编号
func validSlot(slot int) bool {
	return slot >= 0 && slot < MaxSaveSlots
}

// Save 把会话写入自动存档槽位
func (s *SaveService) Save(session *models.SessionState) error {
	return s.SaveSlot(session, AutoSaveSlot)
}

// SaveSlot 把会话整体写入指定槽位
func (s *SaveService) SaveSlot(session *models.SessionState, slot int) error {
	if !validSlot(slot) {
		return apperrors.NewMalformedArgumentError(fmt.Sprintf("无效的存档槽位: %d", slot))
	}

	envelope := saveEnvelope{
		Version:   saveVersion,
		Timestamp: time.Now(),
		Session:   session,
		Metadata: saveMetadata{
			CurrentScene: session.CurrentSceneID,
			Alignment:    models.DeriveAlignment(session.Memory, s.alignmentRules),
			ChoicesMade:  len(session.History),
		},
	}

	if err := s.store.SaveJSONFile(saveDirName, slotFilename(slot), envelope); err != nil {
		return apperrors.NewPersistenceError(fmt.Sprintf("写入存档槽位 %d 失败", slot), err)
	}

	return nil
}

// Load 从自动存档槽位恢复会话
func (s *SaveService) Load() (*models.SessionState, error) {
	return s.LoadSlot(AutoSaveSlot)
}

// LoadSlot 从指定槽位恢复会话
// 槽位越界返回 MalformedArgumentError；存档不存在返回 NotFoundError；
// 不可解析或内容非法返回 CorruptDataError，
// 调用方的正确做法是退回全新会话，而不是猜测修复
func (s *SaveService) LoadSlot(slot int) (*models.SessionState, error) {
	if !validSlot(slot) {
		return nil, apperrors.NewMalformedArgumentError(fmt.Sprintf("无效的存档槽位: %d", slot))
	}

	if !s.store.FileExists(saveDirName, slotFilename(slot)) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("存档不存在: 槽位 %d", slot), nil)
	}

	var envelope saveEnvelope
	if err := s.store.LoadJSONFile(saveDirName, slotFilename(slot), &envelope); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("存档不存在: 槽位 %d", slot), err)
		}
		return nil, apperrors.NewCorruptDataError(fmt.Sprintf("存档不可读取: 槽位 %d", slot), err)
	}

	if err := s.validateSession(envelope.Session); err != nil {
		return nil, err
	}

	return envelope.Session, nil
}

// validateSession 校验恢复出的会话内容
func (s *SaveService) validateSession(session *models.SessionState) error {
	if session == nil || session.Memory == nil || session.Memory.Values == nil {
		return apperrors.NewCorruptDataError("存档缺少会话数据", nil)
	}

	if !s.graph.HasScene(session.CurrentSceneID) {
		return apperrors.NewCorruptDataError(
			fmt.Sprintf("存档指向不存在的场景: %d", session.CurrentSceneID), nil)
	}

	for trait, value := range session.Memory.Values {
		if !models.IsRecognizedTrait(trait) {
			return apperrors.NewCorruptDataError(fmt.Sprintf("存档包含未识别的特质: %s", trait), nil)
		}
		if value < models.MemoryValueMin || value > models.MemoryValueMax {
			return apperrors.NewCorruptDataError(
				fmt.Sprintf("存档特质值越界: %s=%d", trait, value), nil)
		}
	}

	// 兼容手工编辑过的旧存档：补齐缺失特质为默认值
	for _, trait := range models.RecognizedTraits {
		if _, exists := session.Memory.Values[trait]; !exists {
			session.Memory.Values[trait] = models.MemoryValueMin
		}
	}

	return nil
}

// Reset 丢弃自动存档并返回持久化后的全新会话
func (s *SaveService) Reset() (*models.SessionState, error) {
	session := models.NewSessionState(s.graph.StartSceneID())

	if err := s.Save(session); err != nil {
		return nil, err
	}

	return session, nil
}

// ListSlots 返回全部槽位的元数据
func (s *SaveService) ListSlots() []models.SaveSlotInfo {
	slots := make([]models.SaveSlotInfo, 0, MaxSaveSlots)

	for slot := 0; slot < MaxSaveSlots; slot++ {
		info := models.SaveSlotInfo{Slot: slot}

		if s.store.FileExists(saveDirName, slotFilename(slot)) {
			var envelope saveEnvelope
			if err := s.store.LoadJSONFile(saveDirName, slotFilename(slot), &envelope); err == nil {
				info.Exists = true
				info.Timestamp = envelope.Timestamp
				info.CurrentScene = envelope.Metadata.CurrentScene
				info.Alignment = envelope.Metadata.Alignment
				info.ChoicesMade = envelope.Metadata.ChoicesMade
			}
		}

		slots = append(slots, info)
	}

	return slots
}
