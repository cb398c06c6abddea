// internal/app/app.go
package app

import (
	"fmt"
	"sync"

	"github.com/Corphon/IntoTheDarkMCP/internal/config"
	"github.com/Corphon/IntoTheDarkMCP/internal/di"
	"github.com/Corphon/IntoTheDarkMCP/internal/protocol"
	"github.com/Corphon/IntoTheDarkMCP/internal/services"
	"github.com/Corphon/IntoTheDarkMCP/internal/utils"
)

// App 应用程序全局实例
type App struct {
	stopChan chan struct{}
	stopOnce sync.Once
}

var (
	instance *App
	appOnce  sync.Once
)

// GetApp 获取应用单例
func GetApp() *App {
	appOnce.Do(func() {
		instance = &App{
			stopChan: make(chan struct{}),
		}
	})
	return instance
}

// InitServices 按依赖顺序初始化所有服务并注册到容器
// 顺序：场景图 -> 存档 -> 会话 -> 统计 -> 命令分发器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()
	logger := utils.GetLogger()

	// 1. 场景图：加载并校验剧情内容，内容错误直接失败
	graphService, err := services.NewGraphService(cfg.StoryFile)
	if err != nil {
		return fmt.Errorf("加载场景图失败: %w", err)
	}
	container.Register("graph", graphService)
	logger.Infof("场景图加载完成: %s（%d 个场景）", graphService.Title(), graphService.SceneCount())

	// 2. 存档服务
	saveService, err := services.NewSaveService(cfg.DataDir, graphService, cfg.AlignmentRules)
	if err != nil {
		return fmt.Errorf("初始化存档服务失败: %w", err)
	}
	container.Register("saves", saveService)

	// 3. 会话服务：恢复自动存档或新建会话
	sessionService, err := services.NewSessionService(graphService, saveService, cfg.AlignmentRules)
	if err != nil {
		return fmt.Errorf("初始化会话服务失败: %w", err)
	}
	container.Register("session", sessionService)

	// 4. 统计服务
	statsService := services.NewStatsService(cfg.DataDir)
	container.Register("stats", statsService)

	// 5. 命令分发器
	dispatcher := protocol.NewDispatcher(sessionService, statsService)
	container.Register("dispatcher", dispatcher)

	logger.Infof("服务初始化完成，共注册 %d 个服务", len(container.GetNames()))
	return nil
}

// Cleanup 停止后台任务并落盘统计数据
func (a *App) Cleanup() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
	})

	container := di.GetContainer()
	if statsService, ok := container.Get("stats").(*services.StatsService); ok {
		if err := statsService.Close(); err != nil {
			utils.GetLogger().Errorf("关闭统计服务失败: %v", err)
		}
	}
}
