// internal/api/router.go
package api

import (
	"fmt"

	"github.com/Corphon/IntoTheDarkMCP/internal/config"
	"github.com/Corphon/IntoTheDarkMCP/internal/di"
	"github.com/Corphon/IntoTheDarkMCP/internal/protocol"
	"github.com/Corphon/IntoTheDarkMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 只从容器获取服务，不在路由层创建新实例
	container := di.GetContainer()

	sessionService, ok := container.Get("session").(*services.SessionService)
	if !ok {
		return nil, fmt.Errorf("会话服务未正确初始化")
	}

	statsService, ok := container.Get("stats").(*services.StatsService)
	if !ok {
		return nil, fmt.Errorf("统计服务未正确初始化")
	}

	dispatcher, ok := container.Get("dispatcher").(*protocol.Dispatcher)
	if !ok {
		return nil, fmt.Errorf("命令分发器未正确初始化")
	}

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 状态推送中心：会话每次变更都广播给订阅连接
	hub := NewSessionHub()
	sessionService.Subscribe(hub.BroadcastStateUpdate)

	handler := NewHandler(sessionService, statsService, dispatcher, hub)

	r := gin.Default()

	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())

	// WebSocket 支持
	r.GET("/ws/session", hub.HandleSessionSocket)

	// ===============================
	// API路由
	// ===============================
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", handler.HandleHealth)

		// 统一命令入口，与控制台命令同一语义
		apiGroup.POST("/command", handler.HandleCommand)

		apiGroup.GET("/scene", handler.HandleGetScene)
		apiGroup.GET("/memory", handler.HandleGetMemory)
		apiGroup.POST("/choice", handler.HandleMakeChoice)
		apiGroup.POST("/reset", handler.HandleReset)

		apiGroup.GET("/scenes", handler.HandleGetSceneList)

		apiGroup.GET("/saves", handler.HandleGetSaveSlots)
		apiGroup.POST("/saves/:slot", handler.HandleSaveSlot)
		apiGroup.POST("/saves/:slot/load", handler.HandleLoadSlot)

		apiGroup.GET("/analytics", handler.HandleGetAnalytics)
		apiGroup.GET("/stats", handler.HandleGetStats)
	}

	return r, nil
}
