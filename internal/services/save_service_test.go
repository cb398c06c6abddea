package services

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Corphon/IntoTheDarkMCP/internal/errors"
	"github.com/Corphon/IntoTheDarkMCP/internal/models"
)

// newTestSaveService 在临时目录上创建存档服务
func newTestSaveService(t *testing.T) (*SaveService, string) {
	t.Helper()

	graph, err := NewGraphServiceFromGraph(testGraph())
	if err != nil {
		t.Fatalf("创建场景图失败: %v", err)
	}

	dir := t.TempDir()
	svc, err := NewSaveService(dir, graph, models.DefaultAlignmentRules)
	if err != nil {
		t.Fatalf("创建存档服务失败: %v", err)
	}

	return svc, dir
}

// TestSaveLoadRoundTrip 存档写入后应能完整恢复
func TestSaveLoadRoundTrip(t *testing.T) {
	svc, _ := newTestSaveService(t)

	session := models.NewSessionState(1)
	session.Memory.ApplyDelta(models.MemoryKindness, 25)
	session.MarkWatched(1)
	session.History = append(session.History, models.HistoryEntry{
		SceneID: 1, ChoiceIndex: 0, ChoiceText: "Be kind.",
		MemoryType: models.MemoryKindness, MemoryDelta: 5,
	})
	session.CurrentSceneID = 2

	if err := svc.Save(session); err != nil {
		t.Fatalf("写入自动存档失败: %v", err)
	}

	loaded, err := svc.Load()
	if err != nil {
		t.Fatalf("恢复自动存档失败: %v", err)
	}

	if loaded.ID != session.ID {
		t.Fatalf("会话 ID 不匹配: %s != %s", loaded.ID, session.ID)
	}
	if loaded.CurrentSceneID != 2 {
		t.Fatalf("当前场景应为 2，实际为 %d", loaded.CurrentSceneID)
	}
	if loaded.Memory.Get(models.MemoryKindness) != 25 {
		t.Fatalf("kindness 应为 25，实际为 %d", loaded.Memory.Get(models.MemoryKindness))
	}
	if len(loaded.History) != 1 || loaded.History[0].ChoiceText != "Be kind." {
		t.Fatalf("历史记录恢复不完整: %+v", loaded.History)
	}
	if !loaded.HasWatched(1) {
		t.Fatal("访问记录恢复不完整")
	}
}

// TestLoadMissingSave 缺失存档返回未找到错误
func TestLoadMissingSave(t *testing.T) {
	svc, _ := newTestSaveService(t)

	if _, err := svc.Load(); !apperrors.IsNotFoundError(err) {
		t.Fatalf("缺失存档应返回未找到错误，实际为 %v", err)
	}
	if _, err := svc.LoadSlot(3); !apperrors.IsNotFoundError(err) {
		t.Fatalf("缺失槽位应返回未找到错误，实际为 %v", err)
	}
}

// TestLoadCorruptSave 不可解析的存档返回数据损坏错误
func TestLoadCorruptSave(t *testing.T) {
	svc, dir := newTestSaveService(t)

	savePath := filepath.Join(dir, "saves", "save_slot_0.json")
	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		t.Fatalf("创建存档目录失败: %v", err)
	}
	if err := os.WriteFile(savePath, []byte("{not valid json"), 0644); err != nil {
		t.Fatalf("写入损坏存档失败: %v", err)
	}

	if _, err := svc.Load(); !apperrors.IsCorruptDataError(err) {
		t.Fatalf("损坏存档应返回数据损坏错误，实际为 %v", err)
	}
}

// TestLoadInvalidSessionContent 结构合法但内容非法的存档同样视为损坏
func TestLoadInvalidSessionContent(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.SessionState)
	}{
		{"指向不存在的场景", func(s *models.SessionState) { s.CurrentSceneID = 99 }},
		{"特质值越界", func(s *models.SessionState) { s.Memory.Values[models.MemoryTruth] = 250 }},
		{"未识别的特质", func(s *models.SessionState) { s.Memory.Values[models.MemoryType("rage")] = 5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestSaveService(t)

			session := models.NewSessionState(1)
			tc.mutate(session)
			if err := svc.Save(session); err != nil {
				t.Fatalf("写入存档失败: %v", err)
			}

			if _, err := svc.Load(); !apperrors.IsCorruptDataError(err) {
				t.Fatalf("非法内容应返回数据损坏错误，实际为 %v", err)
			}
		})
	}
}

// TestLoadBackfillsMissingTraits 旧存档缺失的特质补齐为默认值
func TestLoadBackfillsMissingTraits(t *testing.T) {
	svc, _ := newTestSaveService(t)

	session := models.NewSessionState(1)
	delete(session.Memory.Values, models.MemoryTrust)
	if err := svc.Save(session); err != nil {
		t.Fatalf("写入存档失败: %v", err)
	}

	loaded, err := svc.Load()
	if err != nil {
		t.Fatalf("恢复存档失败: %v", err)
	}
	if v, exists := loaded.Memory.Values[models.MemoryTrust]; !exists || v != models.MemoryValueMin {
		t.Fatalf("缺失特质应补齐为 %d，实际为 %d（存在=%v）", models.MemoryValueMin, v, exists)
	}
}

// TestSaveSlotBounds 越界槽位在读写两侧都应返回参数格式错误，
// 未找到错误保留给范围内的空槽位
func TestSaveSlotBounds(t *testing.T) {
	svc, _ := newTestSaveService(t)
	session := models.NewSessionState(1)

	if err := svc.SaveSlot(session, -1); !apperrors.IsMalformedArgumentError(err) {
		t.Fatalf("负槽位写入应返回参数格式错误，实际为 %v", err)
	}
	if err := svc.SaveSlot(session, MaxSaveSlots); !apperrors.IsMalformedArgumentError(err) {
		t.Fatalf("越界槽位写入应返回参数格式错误，实际为 %v", err)
	}
	if _, err := svc.LoadSlot(-1); !apperrors.IsMalformedArgumentError(err) {
		t.Fatalf("负槽位读取应返回参数格式错误，实际为 %v", err)
	}
	if _, err := svc.LoadSlot(MaxSaveSlots); !apperrors.IsMalformedArgumentError(err) {
		t.Fatalf("越界槽位读取应返回参数格式错误，实际为 %v", err)
	}
	if _, err := svc.LoadSlot(MaxSaveSlots - 1); !apperrors.IsNotFoundError(err) {
		t.Fatalf("范围内空槽位应返回未找到错误，实际为 %v", err)
	}
}

// TestReset 重置应创建全新会话并写入自动存档
func TestReset(t *testing.T) {
	svc, _ := newTestSaveService(t)

	old := models.NewSessionState(1)
	old.CurrentSceneID = 3
	old.Memory.ApplyDelta(models.MemoryObsession, 50)
	if err := svc.Save(old); err != nil {
		t.Fatalf("写入旧存档失败: %v", err)
	}

	fresh, err := svc.Reset()
	if err != nil {
		t.Fatalf("重置失败: %v", err)
	}
	if fresh.CurrentSceneID != 1 {
		t.Fatalf("重置后应回到起始场景，实际为 %d", fresh.CurrentSceneID)
	}
	if fresh.ID == old.ID {
		t.Fatal("重置应生成新会话 ID")
	}

	loaded, err := svc.Load()
	if err != nil {
		t.Fatalf("恢复重置后存档失败: %v", err)
	}
	if loaded.ID != fresh.ID || loaded.Memory.Get(models.MemoryObsession) != 0 {
		t.Fatal("自动存档应被重置覆盖")
	}
}

// TestListSlots 槽位列表应包含全部槽位并标注元数据
func TestListSlots(t *testing.T) {
	svc, _ := newTestSaveService(t)

	session := models.NewSessionState(1)
	session.Memory.ApplyDelta(models.MemoryTruth, 25)
	session.History = append(session.History, models.HistoryEntry{SceneID: 1, ChoiceIndex: 0})
	session.CurrentSceneID = 2

	if err := svc.SaveSlot(session, 3); err != nil {
		t.Fatalf("写入槽位 3 失败: %v", err)
	}

	slots := svc.ListSlots()
	if len(slots) != MaxSaveSlots {
		t.Fatalf("槽位列表长度应为 %d，实际为 %d", MaxSaveSlots, len(slots))
	}

	for _, info := range slots {
		if info.Slot == 3 {
			if !info.Exists {
				t.Fatal("槽位 3 应标记为存在")
			}
			if info.CurrentScene != 2 || info.ChoicesMade != 1 {
				t.Fatalf("槽位 3 元数据不正确: %+v", info)
			}
			if info.Alignment != "Truth-Seeker" {
				t.Fatalf("槽位 3 倾向应为 Truth-Seeker，实际为 %s", info.Alignment)
			}
		} else if info.Exists {
			t.Fatalf("槽位 %d 不应存在", info.Slot)
		}
	}
}
