// internal/services/graph_service.go
package services

import (
	"fmt"
	"path/filepath"

	apperrors "github.com/Corphon/IntoTheDarkMCP/internal/errors"
	"github.com/Corphon/IntoTheDarkMCP/internal/models"
	"github.com/Corphon/IntoTheDarkMCP/internal/storage"
)

// GraphService 持有只读的剧本图
// 启动时加载并校验一次，运行期间不再变更
type GraphService struct {
	graph  *models.StoryGraph
	scenes map[int]*models.Scene
}

// NewGraphService 从剧本文件加载并校验剧本图
// 校验失败返回 ContentError，引擎应当拒绝启动
func NewGraphService(storyPath string) (*GraphService, error) {
	store, err := storage.NewFileStore(filepath.Dir(storyPath))
	if err != nil {
		return nil, apperrors.NewContentError("初始化剧本存储失败", err)
	}

	var graph models.StoryGraph
	if err := store.LoadJSONFile("", filepath.Base(storyPath), &graph); err != nil {
		return nil, apperrors.NewContentError(fmt.Sprintf("加载剧本文件失败: %s", storyPath), err)
	}

	return NewGraphServiceFromGraph(&graph)
}

// NewGraphServiceFromGraph 从已解析的剧本图构建服务（测试与内嵌内容使用）
func NewGraphServiceFromGraph(graph *models.StoryGraph) (*GraphService, error) {
	if err := validateGraph(graph); err != nil {
		return nil, err
	}

	scenes := make(map[int]*models.Scene, len(graph.Scenes))
	for i := range graph.Scenes {
		scenes[graph.Scenes[i].ID] = &graph.Scenes[i]
	}

	return &GraphService{
		graph:  graph,
		scenes: scenes,
	}, nil
}

// validateGraph 在加载时完成全部内容完整性校验：
// 场景ID唯一、起始场景存在、所有选项指向存在的场景、特质名全部可识别。
// 悬空引用属于内容错误，必须在此拦截而不是等到遍历时才暴露。
func validateGraph(graph *models.StoryGraph) error {
	if graph == nil || len(graph.Scenes) == 0 {
		return apperrors.NewContentError("剧本图为空", nil)
	}

	seen := make(map[int]bool, len(graph.Scenes))
	for _, scene := range graph.Scenes {
		if seen[scene.ID] {
			return apperrors.NewContentError(fmt.Sprintf("场景ID重复: %d", scene.ID), nil)
		}
		seen[scene.ID] = true
	}

	if !seen[graph.StartSceneID] {
		return apperrors.NewContentError(fmt.Sprintf("起始场景不存在: %d", graph.StartSceneID), nil)
	}

	for _, scene := range graph.Scenes {
		for i, choice := range scene.Choices {
			if !seen[choice.NextSceneID] {
				return apperrors.NewContentError(
					fmt.Sprintf("场景 %d 选项 %d 指向不存在的场景: %d", scene.ID, i, choice.NextSceneID), nil)
			}
			if choice.HasMemoryEffect() && !models.IsRecognizedTrait(choice.MemoryType) {
				return apperrors.NewContentError(
					fmt.Sprintf("场景 %d 选项 %d 引用未识别的特质: %s", scene.ID, i, choice.MemoryType), nil)
			}
		}
	}

	return nil
}

// GetScene 按ID获取场景，是引擎内部唯一的读取入口
func (s *GraphService) GetScene(id int) (*models.Scene, error) {
	scene, exists := s.scenes[id]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("场景不存在: %d", id), nil)
	}
	return scene, nil
}

// HasScene 判断场景ID是否存在
func (s *GraphService) HasScene(id int) bool {
	_, exists := s.scenes[id]
	return exists
}

// StartSceneID 返回起始场景ID
func (s *GraphService) StartSceneID() int {
	return s.graph.StartSceneID
}

// SceneCount 返回场景总数
func (s *GraphService) SceneCount() int {
	return len(s.scenes)
}

// Title 返回剧本标题
func (s *GraphService) Title() string {
	return s.graph.Title
}

// ListScenes 返回全部场景摘要，顺序与剧本文件一致
func (s *GraphService) ListScenes(watched func(sceneID int) bool) []models.SceneSummary {
	summaries := make([]models.SceneSummary, 0, len(s.graph.Scenes))
	for _, scene := range s.graph.Scenes {
		summary := models.SceneSummary{
			ID:         scene.ID,
			Title:      scene.Title,
			Background: scene.Background,
		}
		if watched != nil {
			summary.Watched = watched(scene.ID)
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
