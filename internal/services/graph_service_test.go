package services

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Corphon/IntoTheDarkMCP/internal/errors"
	"github.com/Corphon/IntoTheDarkMCP/internal/models"
)

// testGraph 构造一个三场景的最小合法场景图
// 场景 1 -> 2 -> 3，场景 3 为终局
func testGraph() *models.StoryGraph {
	return &models.StoryGraph{
		Title:        "Test Story",
		StartSceneID: 1,
		Scenes: []models.Scene{
			{
				ID:    1,
				Title: "Opening",
				Dialogues: []models.Dialogue{
					{Speaker: "Narrator", Text: "It begins."},
				},
				Choices: []models.Choice{
					{Text: "Be kind.", MemoryType: models.MemoryKindness, MemoryDelta: 5, NextSceneID: 2, Consequence: "Warmth spreads."},
					{Text: "Press on.", MemoryType: models.MemoryObsession, MemoryDelta: 5, NextSceneID: 2},
					{Text: "Just walk.", NextSceneID: 2},
				},
			},
			{
				ID:    2,
				Title: "Middle",
				Dialogues: []models.Dialogue{
					{Speaker: "Narrator", Text: "The path narrows."},
				},
				Choices: []models.Choice{
					{Text: "Seek answers.", MemoryType: models.MemoryTruth, MemoryDelta: 25, NextSceneID: 3},
					{Text: "Trust the dark.", MemoryType: models.MemoryTrust, MemoryDelta: 5, NextSceneID: 3},
				},
			},
			{
				ID:    3,
				Title: "Ending",
				Dialogues: []models.Dialogue{
					{Speaker: "Narrator", Text: "It ends."},
				},
			},
		},
	}
}

// TestNewGraphServiceFromGraph 合法场景图应通过校验
func TestNewGraphServiceFromGraph(t *testing.T) {
	svc, err := NewGraphServiceFromGraph(testGraph())
	if err != nil {
		t.Fatalf("合法场景图校验失败: %v", err)
	}

	if svc.SceneCount() != 3 {
		t.Fatalf("场景数应为 3，实际为 %d", svc.SceneCount())
	}
	if svc.StartSceneID() != 1 {
		t.Fatalf("起始场景应为 1，实际为 %d", svc.StartSceneID())
	}
	if svc.Title() != "Test Story" {
		t.Fatalf("标题不匹配: %s", svc.Title())
	}
}

// TestGraphValidationDuplicateID 重复场景 ID 是内容错误
func TestGraphValidationDuplicateID(t *testing.T) {
	graph := testGraph()
	graph.Scenes = append(graph.Scenes, models.Scene{ID: 2, Title: "Copy"})

	_, err := NewGraphServiceFromGraph(graph)
	if !apperrors.IsContentError(err) {
		t.Fatalf("重复 ID 应返回内容错误，实际为 %v", err)
	}
}

// TestGraphValidationMissingStart 起始场景缺失是内容错误
func TestGraphValidationMissingStart(t *testing.T) {
	graph := testGraph()
	graph.StartSceneID = 99

	_, err := NewGraphServiceFromGraph(graph)
	if !apperrors.IsContentError(err) {
		t.Fatalf("起始场景缺失应返回内容错误，实际为 %v", err)
	}
}

// TestGraphValidationDanglingEdge 选项指向不存在的场景是内容错误
func TestGraphValidationDanglingEdge(t *testing.T) {
	graph := testGraph()
	graph.Scenes[1].Choices[0].NextSceneID = 42

	_, err := NewGraphServiceFromGraph(graph)
	if !apperrors.IsContentError(err) {
		t.Fatalf("悬空边应返回内容错误，实际为 %v", err)
	}
}

// TestGraphValidationUnknownTrait 未认可的特质是内容错误
func TestGraphValidationUnknownTrait(t *testing.T) {
	graph := testGraph()
	graph.Scenes[0].Choices[0].MemoryType = models.MemoryType("courage")

	_, err := NewGraphServiceFromGraph(graph)
	if !apperrors.IsContentError(err) {
		t.Fatalf("未知特质应返回内容错误，实际为 %v", err)
	}
}

// TestGraphValidationEmpty 空场景图是内容错误
func TestGraphValidationEmpty(t *testing.T) {
	_, err := NewGraphServiceFromGraph(&models.StoryGraph{Title: "Empty", StartSceneID: 1})
	if !apperrors.IsContentError(err) {
		t.Fatalf("空场景图应返回内容错误，实际为 %v", err)
	}
}

// TestGetScene 按 ID 查找场景，缺失时返回未找到错误
func TestGetScene(t *testing.T) {
	svc, err := NewGraphServiceFromGraph(testGraph())
	if err != nil {
		t.Fatalf("创建服务失败: %v", err)
	}

	scene, err := svc.GetScene(2)
	if err != nil {
		t.Fatalf("查找场景 2 失败: %v", err)
	}
	if scene.Title != "Middle" {
		t.Fatalf("场景标题不匹配: %s", scene.Title)
	}

	if _, err := svc.GetScene(99); !apperrors.IsNotFoundError(err) {
		t.Fatalf("缺失场景应返回未找到错误，实际为 %v", err)
	}

	if svc.HasScene(99) {
		t.Fatal("HasScene 对缺失场景应返回 false")
	}
}

// TestNewGraphServiceFromFile 从 JSON 文件加载并校验
func TestNewGraphServiceFromFile(t *testing.T) {
	dir := t.TempDir()
	storyPath := filepath.Join(dir, "story.json")

	content := `{
		"title": "File Story",
		"start_scene_id": 1,
		"scenes": [
			{"id": 1, "title": "Only", "dialogues": [], "choices": []}
		]
	}`
	if err := os.WriteFile(storyPath, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试剧本失败: %v", err)
	}

	svc, err := NewGraphService(storyPath)
	if err != nil {
		t.Fatalf("从文件加载场景图失败: %v", err)
	}
	if svc.Title() != "File Story" {
		t.Fatalf("标题不匹配: %s", svc.Title())
	}

	// 文件缺失时应直接失败
	if _, err := NewGraphService(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("缺失剧本文件应返回错误")
	}
}

// TestListScenes 场景列表保持剧本顺序并带访问标记
func TestListScenes(t *testing.T) {
	svc, err := NewGraphServiceFromGraph(testGraph())
	if err != nil {
		t.Fatalf("创建服务失败: %v", err)
	}

	watched := map[int]bool{1: true}
	summaries := svc.ListScenes(func(id int) bool { return watched[id] })

	if len(summaries) != 3 {
		t.Fatalf("列表长度应为 3，实际为 %d", len(summaries))
	}
	for i, s := range summaries {
		if s.ID != i+1 {
			t.Fatalf("列表应保持剧本顺序，第 %d 项为 %d", i, s.ID)
		}
	}
	if !summaries[0].Watched || summaries[1].Watched {
		t.Fatal("访问标记不正确")
	}
}
